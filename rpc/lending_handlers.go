package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/native/lending"
	"loanledger/observability/metrics"
)

type lendParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type borrowParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type repayParams struct {
	Borrower string `json:"borrower"`
}

type collateralParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type liquidateParams struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
}

type amountParams struct {
	Amount string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

type balanceResult struct {
	Balance string `json:"balance"`
}

type interestRateResult struct {
	InterestRate uint64 `json:"interestRate"`
}

type requiredCollateralResult struct {
	Required string `json:"required"`
}

type positionResult struct {
	Position *lending.Position `json:"position"`
}

type ackResult struct {
	OK bool `json:"ok"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object, got %d", len(req.Params))
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}
	return nil
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func (s *Server) handleLend(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.Lend(from, amount)
	s.mu.Unlock()
	metrics.Lending().RecordOperation("lend", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params borrowParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.Borrow(borrower, amount)
	s.mu.Unlock()
	metrics.Lending().RecordOperation("borrow", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params repayParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.Repay(borrower)
	s.mu.Unlock()
	metrics.Lending().RecordOperation("repay", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params collateralParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.DepositCollateral(from, amount)
	s.mu.Unlock()
	metrics.Lending().RecordOperation("deposit_collateral", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params collateralParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.WithdrawCollateral(from, amount)
	s.mu.Unlock()
	metrics.Lending().RecordOperation("withdraw_collateral", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params liquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	liquidator, err := parseAddress(params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid liquidator address", err.Error())
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.Liquidate(liquidator, borrower)
	s.mu.Unlock()
	metrics.Lending().RecordOperation("liquidate", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleGetTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.mu.Lock()
	balance, err := s.engine.TokenBalance()
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	metrics.Lending().SetPlatformBalance(balance)
	writeResult(w, req.ID, balanceResult{Balance: balance.String()})
}

func (s *Server) handleGetInterestRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, interestRateResult{InterestRate: s.engine.InterestRate()})
}

func (s *Server) handleRequiredCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	required := s.engine.RequiredCollateralForBorrowing(amount)
	writeResult(w, req.ID, requiredCollateralResult{Required: required.String()})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}

	s.mu.Lock()
	position, err := s.engine.Position(addr)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{Position: position})
}

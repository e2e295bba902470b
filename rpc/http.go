package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	nativecommon "loanledger/native/common"
	"loanledger/native/lending"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeEngineRejected = -32050
)

// Server exposes the lending engine over JSON-RPC 2.0. Engine calls are
// serialized behind a mutex so concurrent HTTP requests cannot interleave
// state reads and writes; the engine's own reentrancy guard still protects
// against callback reentry within a single operation.
type Server struct {
	engine *lending.Engine

	mu        sync.Mutex
	authToken string
	log       *slog.Logger
}

// NewServer constructs an RPC server for the given engine. An empty auth
// token disables authentication.
func NewServer(engine *lending.Engine, authToken string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, authToken: strings.TrimSpace(authToken), log: log}
}

// RPCRequest models a single JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError carries a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "unauthorized", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request too large", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	s.dispatch(w, r, &req)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) == 1
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "lending_lend":
		s.handleLend(w, r, req)
	case "lending_borrow":
		s.handleBorrow(w, r, req)
	case "lending_repay":
		s.handleRepay(w, r, req)
	case "lending_depositCollateral":
		s.handleDepositCollateral(w, r, req)
	case "lending_withdrawCollateral":
		s.handleWithdrawCollateral(w, r, req)
	case "lending_liquidate":
		s.handleLiquidate(w, r, req)
	case "lending_getTokenBalance":
		s.handleGetTokenBalance(w, r, req)
	case "lending_getInterestRate":
		s.handleGetInterestRate(w, r, req)
	case "lending_requiredCollateral":
		s.handleRequiredCollateral(w, r, req)
	case "lending_getPosition":
		s.handleGetPosition(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

// engineErrors is the set of stable validation failures callers can match on.
var engineErrors = []error{
	lending.ErrAmountNotPositive,
	lending.ErrMustDepositPositive,
	lending.ErrMustWithdrawPositive,
	lending.ErrLoanAlreadyActive,
	lending.ErrNoActiveLoan,
	lending.ErrInsufficientCollateral,
	lending.ErrInsufficientFunds,
	lending.ErrCollateralLocked,
	lending.ErrCollateralSufficient,
	lending.ErrTransferFailed,
	lending.ErrReentrantCall,
	nativecommon.ErrModulePaused,
}

func (s *Server) writeEngineError(w http.ResponseWriter, id json.RawMessage, err error) {
	for _, known := range engineErrors {
		if errors.Is(err, known) {
			writeError(w, http.StatusBadRequest, id, codeEngineRejected, known.Error(), nil)
			return
		}
	}
	s.log.Error("lending rpc call failed", "error", err)
	writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", nil)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	writeResponse(w, http.StatusOK, rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	writeResponse(w, status, rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func writeResponse(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

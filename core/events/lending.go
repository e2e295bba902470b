package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TypeTokensDeposited     = "lending.tokens_deposited"
	TypeLoanInitiated       = "lending.loan_initiated"
	TypeLoanRepaid          = "lending.loan_repaid"
	TypeCollateralDeposited = "lending.collateral_deposited"
	TypeCollateralWithdrawn = "lending.collateral_withdrawn"
	TypeLoanLiquidated      = "lending.loan_liquidated"
)

// TokensDeposited is emitted when a lender supplies loan-asset liquidity to
// the platform.
type TokensDeposited struct {
	Lender common.Address
	Amount *big.Int
}

func (TokensDeposited) EventType() string { return TypeTokensDeposited }

func (e TokensDeposited) Event() *Payload {
	return &Payload{
		Type: TypeTokensDeposited,
		Attributes: map[string]string{
			"lender": e.Lender.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// LoanInitiated is emitted when a borrower opens a loan against their
// collateral.
type LoanInitiated struct {
	Borrower  common.Address
	Amount    *big.Int
	StartTime int64
}

func (LoanInitiated) EventType() string { return TypeLoanInitiated }

func (e LoanInitiated) Event() *Payload {
	return &Payload{
		Type: TypeLoanInitiated,
		Attributes: map[string]string{
			"borrower":  e.Borrower.Hex(),
			"amount":    formatAmount(e.Amount),
			"startTime": intToString(e.StartTime),
		},
	}
}

// LoanRepaid is emitted when a borrower settles their loan in full, interest
// included.
type LoanRepaid struct {
	Borrower common.Address
	Amount   *big.Int
	EndTime  int64
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

func (e LoanRepaid) Event() *Payload {
	return &Payload{
		Type: TypeLoanRepaid,
		Attributes: map[string]string{
			"borrower": e.Borrower.Hex(),
			"amount":   formatAmount(e.Amount),
			"endTime":  intToString(e.EndTime),
		},
	}
}

// CollateralDeposited is emitted when base-asset collateral is locked for an
// account.
type CollateralDeposited struct {
	User   common.Address
	Amount *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *Payload {
	return &Payload{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"user":   e.User.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// CollateralWithdrawn is emitted when unlocked collateral is released back to
// its owner.
type CollateralWithdrawn struct {
	User   common.Address
	Amount *big.Int
}

func (CollateralWithdrawn) EventType() string { return TypeCollateralWithdrawn }

func (e CollateralWithdrawn) Event() *Payload {
	return &Payload{
		Type: TypeCollateralWithdrawn,
		Attributes: map[string]string{
			"user":   e.User.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// LoanLiquidated is emitted when an under-collateralized loan is forcibly
// closed and the seized collateral is paid to the liquidator.
type LoanLiquidated struct {
	Liquidator common.Address
	Borrower   common.Address
	Debt       *big.Int
	Seized     *big.Int
}

func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

func (e LoanLiquidated) Event() *Payload {
	return &Payload{
		Type: TypeLoanLiquidated,
		Attributes: map[string]string{
			"liquidator": e.Liquidator.Hex(),
			"borrower":   e.Borrower.Hex(),
			"debt":       formatAmount(e.Debt),
			"seized":     formatAmount(e.Seized),
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

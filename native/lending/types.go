package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Loan is the per-account loan record. Amounts are denominated in the loan
// asset's smallest unit and expressed as big integers to match ledger
// precision.
type Loan struct {
	// Borrower is the account the loan was issued to.
	Borrower common.Address `json:"borrower"`
	// Amount is the outstanding principal. Inactive loans always carry a
	// zero amount.
	Amount *big.Int `json:"amount"`
	// StartTime records the unix timestamp of loan initiation; interest
	// accrues from this instant.
	StartTime int64 `json:"startTime"`
	// Active marks whether the record represents a live loan. At most one
	// loan per account may be active at a time.
	Active bool `json:"active"`
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := &Loan{
		Borrower:  l.Borrower,
		StartTime: l.StartTime,
		Active:    l.Active,
	}
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	}
	return clone
}

// Position bundles an account's loan record with its locked collateral for
// read-only queries.
type Position struct {
	Loan       *Loan    `json:"loan,omitempty"`
	Collateral *big.Int `json:"collateral"`
}

package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/storage"
)

// engineState is the persistence surface the engine mutates. The engine is
// the exclusive owner of every record behind it: loans, collateral balances
// and the aggregate platform balance are never written by another component.
type engineState interface {
	GetLoan(addr common.Address) (*Loan, error)
	PutLoan(loan *Loan) error
	DeleteLoan(addr common.Address) error
	GetCollateral(addr common.Address) (*big.Int, error)
	PutCollateral(addr common.Address, amount *big.Int) error
	GetPlatformBalance() (*big.Int, error)
	PutPlatformBalance(amount *big.Int) error
}

const (
	loanKeyPrefix       = "lending/loan/"
	collateralKeyPrefix = "lending/collateral/"
	platformBalanceKey  = "lending/platform"
)

// KVState persists engine state in a key-value store. Loan records are
// JSON-encoded; balances are stored as decimal strings.
type KVState struct {
	db storage.Database
}

// NewKVState wraps the supplied database in a lending state adapter.
func NewKVState(db storage.Database) *KVState {
	return &KVState{db: db}
}

func loanKey(addr common.Address) []byte {
	return append([]byte(loanKeyPrefix), addr.Bytes()...)
}

func collateralKey(addr common.Address) []byte {
	return append([]byte(collateralKeyPrefix), addr.Bytes()...)
}

// GetLoan returns the stored loan record for the address, or nil when the
// account never borrowed.
func (s *KVState) GetLoan(addr common.Address) (*Loan, error) {
	raw, err := s.db.Get(loanKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lending state: load loan: %w", err)
	}
	loan := new(Loan)
	if err := json.Unmarshal(raw, loan); err != nil {
		return nil, fmt.Errorf("lending state: decode loan: %w", err)
	}
	if loan.Amount == nil {
		loan.Amount = big.NewInt(0)
	}
	return loan, nil
}

// PutLoan stores the loan record under the borrower's address.
func (s *KVState) PutLoan(loan *Loan) error {
	if loan == nil {
		return nil
	}
	raw, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("lending state: encode loan: %w", err)
	}
	return s.db.Put(loanKey(loan.Borrower), raw)
}

// DeleteLoan clears the loan record for the address.
func (s *KVState) DeleteLoan(addr common.Address) error {
	return s.db.Delete(loanKey(addr))
}

// GetCollateral returns the locked collateral for the address, zero when the
// account holds none.
func (s *KVState) GetCollateral(addr common.Address) (*big.Int, error) {
	return s.loadBalance(collateralKey(addr))
}

// PutCollateral stores the locked collateral balance for the address.
func (s *KVState) PutCollateral(addr common.Address, amount *big.Int) error {
	return s.storeBalance(collateralKey(addr), amount)
}

// GetPlatformBalance returns the aggregate loan-asset balance held by the
// platform.
func (s *KVState) GetPlatformBalance() (*big.Int, error) {
	return s.loadBalance([]byte(platformBalanceKey))
}

// PutPlatformBalance stores the aggregate loan-asset balance.
func (s *KVState) PutPlatformBalance(amount *big.Int) error {
	return s.storeBalance([]byte(platformBalanceKey), amount)
}

func (s *KVState) loadBalance(key []byte) (*big.Int, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lending state: load balance: %w", err)
	}
	value, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("lending state: corrupt balance record %q", raw)
	}
	return value, nil
}

func (s *KVState) storeBalance(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return s.db.Put(key, []byte(amount.Text(10)))
}

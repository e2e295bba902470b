package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Book is a reference fungible-asset ledger holding balances and allowances
// for a single asset. It exists so the daemon and tests have a concrete
// collaborator; the lending engine itself only ever sees the narrow transfer
// capability exposed through Session.
//
// All mutators report success as a boolean, matching the external ledger
// contract: a failed transfer leaves both balances untouched.
type Book struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewBook constructs an empty ledger for the asset identified by symbol.
func NewBook(symbol string) *Book {
	return &Book{
		symbol:     symbol,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Symbol returns the asset ticker the book accounts for.
func (b *Book) Symbol() string {
	if b == nil {
		return ""
	}
	return b.symbol
}

// Mint credits freshly issued units to the given address. Non-positive
// amounts are ignored.
func (b *Book) Mint(addr common.Address, amount *big.Int) {
	if b == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(addr, amount)
}

// BalanceOf returns a copy of the address's current balance.
func (b *Book) BalanceOf(addr common.Address) *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Approve authorizes spender to pull up to amount from owner's balance. The
// allowance is overwritten, not accumulated.
func (b *Book) Approve(owner, spender common.Address, amount *big.Int) bool {
	if b == nil || amount == nil || amount.Sign() < 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	perOwner, ok := b.allowances[owner]
	if !ok {
		perOwner = make(map[common.Address]*big.Int)
		b.allowances[owner] = perOwner
	}
	perOwner[spender] = new(big.Int).Set(amount)
	return true
}

// Allowance returns the remaining amount spender may pull from owner.
func (b *Book) Allowance(owner, spender common.Address) *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if perOwner, ok := b.allowances[owner]; ok {
		if allowed, ok := perOwner[spender]; ok {
			return new(big.Int).Set(allowed)
		}
	}
	return big.NewInt(0)
}

// Transfer moves amount from one address to another. It fails when the
// source balance is insufficient or the amount is not positive.
func (b *Book) Transfer(from, to common.Address, amount *big.Int) bool {
	if b == nil || amount == nil || amount.Sign() <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.debit(from, amount) {
		return false
	}
	b.credit(to, amount)
	return true
}

// TransferFrom moves amount from the owner to the recipient on behalf of
// spender, consuming the owner's allowance. It fails when the allowance or
// the owner's balance does not cover the amount.
func (b *Book) TransferFrom(spender, from, to common.Address, amount *big.Int) bool {
	if b == nil || amount == nil || amount.Sign() <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	perOwner, ok := b.allowances[from]
	if !ok {
		return false
	}
	allowed, ok := perOwner[spender]
	if !ok || allowed.Cmp(amount) < 0 {
		return false
	}
	if !b.debit(from, amount) {
		return false
	}
	perOwner[spender] = new(big.Int).Sub(allowed, amount)
	b.credit(to, amount)
	return true
}

// Bind returns a transfer capability acting on behalf of owner. The lending
// engine is handed a session bound to its treasury address so its outbound
// pushes debit the platform account and its pulls consume allowances granted
// to that address.
func (b *Book) Bind(owner common.Address) *Session {
	return &Session{book: b, owner: owner}
}

func (b *Book) credit(addr common.Address, amount *big.Int) {
	if bal, ok := b.balances[addr]; ok {
		b.balances[addr] = new(big.Int).Add(bal, amount)
		return
	}
	b.balances[addr] = new(big.Int).Set(amount)
}

func (b *Book) debit(addr common.Address, amount *big.Int) bool {
	bal, ok := b.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return false
	}
	b.balances[addr] = new(big.Int).Sub(bal, amount)
	return true
}

// Session is a Book view bound to a fixed caller identity.
type Session struct {
	book  *Book
	owner common.Address
}

// Transfer pushes funds from the session owner's balance.
func (s *Session) Transfer(to common.Address, amount *big.Int) bool {
	if s == nil || s.book == nil {
		return false
	}
	return s.book.Transfer(s.owner, to, amount)
}

// TransferFrom pulls funds from an owner that previously approved the session
// owner as a spender.
func (s *Session) TransferFrom(from, to common.Address, amount *big.Int) bool {
	if s == nil || s.book == nil {
		return false
	}
	return s.book.TransferFrom(s.owner, from, to, amount)
}

// BalanceOf reports the balance of an arbitrary address.
func (s *Session) BalanceOf(addr common.Address) *big.Int {
	if s == nil || s.book == nil {
		return big.NewInt(0)
	}
	return s.book.BalanceOf(addr)
}

package lending

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/events"
)

type mockState struct {
	loans      map[common.Address]*Loan
	collateral map[common.Address]*big.Int
	platform   *big.Int
}

func newMockState() *mockState {
	return &mockState{
		loans:      make(map[common.Address]*Loan),
		collateral: make(map[common.Address]*big.Int),
		platform:   big.NewInt(0),
	}
}

func (m *mockState) GetLoan(addr common.Address) (*Loan, error) {
	return m.loans[addr].Clone(), nil
}

func (m *mockState) PutLoan(loan *Loan) error {
	if loan == nil {
		return nil
	}
	m.loans[loan.Borrower] = loan.Clone()
	return nil
}

func (m *mockState) DeleteLoan(addr common.Address) error {
	delete(m.loans, addr)
	return nil
}

func (m *mockState) GetCollateral(addr common.Address) (*big.Int, error) {
	if bal, ok := m.collateral[addr]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) PutCollateral(addr common.Address, amount *big.Int) error {
	m.collateral[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) GetPlatformBalance() (*big.Int, error) {
	return new(big.Int).Set(m.platform), nil
}

func (m *mockState) PutPlatformBalance(amount *big.Int) error {
	m.platform = new(big.Int).Set(amount)
	return nil
}

// mockLedger tracks balances for one asset with the engine treasury as the
// implicit owner of outbound pushes. Failure injection and transfer callbacks
// let tests exercise collaborator faults and reentrancy.
type mockLedger struct {
	treasury         common.Address
	balances         map[common.Address]*big.Int
	failTransfer     bool
	failTransferFrom bool
	onTransfer       func(to common.Address, amount *big.Int)
}

func newMockLedger(treasury common.Address) *mockLedger {
	return &mockLedger{
		treasury: treasury,
		balances: make(map[common.Address]*big.Int),
	}
}

func (m *mockLedger) mint(addr common.Address, amount int64) {
	m.balances[addr] = big.NewInt(amount)
}

func (m *mockLedger) balance(addr common.Address) *big.Int {
	if bal, ok := m.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (m *mockLedger) move(from, to common.Address, amount *big.Int) bool {
	src := m.balance(from)
	if src.Cmp(amount) < 0 {
		return false
	}
	m.balances[from] = src.Sub(src, amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return true
}

func (m *mockLedger) Transfer(to common.Address, amount *big.Int) bool {
	if m.failTransfer {
		return false
	}
	if !m.move(m.treasury, to, amount) {
		return false
	}
	if m.onTransfer != nil {
		m.onTransfer(to, amount)
	}
	return true
}

func (m *mockLedger) TransferFrom(from, to common.Address, amount *big.Int) bool {
	if m.failTransferFrom {
		return false
	}
	return m.move(from, to, amount)
}

type captureEmitter struct {
	emitted []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.emitted = append(c.emitted, evt)
}

func (c *captureEmitter) byType(eventType string) []events.Event {
	var matched []events.Event
	for _, evt := range c.emitted {
		if evt.EventType() == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

func testAddr(suffix byte) common.Address {
	var addr common.Address
	addr[len(addr)-1] = suffix
	return addr
}

var (
	moduleAddr     = testAddr(0xA0)
	collateralAddr = testAddr(0xA1)
)

func defaultParams() Params {
	return Params{
		CollateralizationRatio: 150,
		LiquidationRatio:       110,
		InterestRatePerYear:    5,
		CollateralPrice:        big.NewInt(1000),
	}
}

type fixture struct {
	engine  *Engine
	state   *mockState
	loan    *mockLedger
	base    *mockLedger
	emitter *captureEmitter
}

func newFixture(params Params) *fixture {
	f := &fixture{
		state:   newMockState(),
		loan:    newMockLedger(moduleAddr),
		base:    newMockLedger(collateralAddr),
		emitter: &captureEmitter{},
	}
	f.engine = NewEngine(moduleAddr, collateralAddr, f.loan, f.base, params)
	f.engine.SetState(f.state)
	f.engine.SetEmitter(f.emitter)
	return f
}

func TestLendCreditsPlatformBalance(t *testing.T) {
	f := newFixture(defaultParams())
	lender := testAddr(0x01)
	f.loan.mint(lender, 500)

	if err := f.engine.Lend(lender, big.NewInt(100)); err != nil {
		t.Fatalf("lend: %v", err)
	}

	balance, err := f.engine.TokenBalance()
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected platform balance: %s", balance)
	}
	if got := f.loan.balance(moduleAddr); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected module ledger balance: %s", got)
	}

	deposited := f.emitter.byType(events.TypeTokensDeposited)
	if len(deposited) != 1 {
		t.Fatalf("expected one deposit event, got %d", len(deposited))
	}
	if amount := deposited[0].Event().Attributes["amount"]; amount != "100" {
		t.Fatalf("unexpected event amount: %s", amount)
	}
}

func TestLendRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(defaultParams())
	lender := testAddr(0x01)

	if err := f.engine.Lend(lender, big.NewInt(0)); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("expected ErrAmountNotPositive, got %v", err)
	}
	if err := f.engine.Lend(lender, big.NewInt(-5)); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("expected ErrAmountNotPositive, got %v", err)
	}
}

func TestLendTransferFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(defaultParams())
	lender := testAddr(0x01)
	// No balance minted: the pull fails at the ledger.

	if err := f.engine.Lend(lender, big.NewInt(100)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if f.state.platform.Sign() != 0 {
		t.Fatalf("expected platform balance unchanged, got %s", f.state.platform)
	}
	if len(f.emitter.emitted) != 0 {
		t.Fatalf("expected no events, got %d", len(f.emitter.emitted))
	}
}

func TestBorrowRejectsSecondActiveLoan(t *testing.T) {
	f := newFixture(defaultParams())
	borrower := testAddr(0x02)
	f.state.platform = big.NewInt(1_000)
	f.loan.mint(moduleAddr, 1_000)
	f.state.collateral[borrower] = big.NewInt(10)

	if err := f.engine.Borrow(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("first borrow: %v", err)
	}
	if err := f.engine.Borrow(borrower, big.NewInt(50)); !errors.Is(err, ErrLoanAlreadyActive) {
		t.Fatalf("expected ErrLoanAlreadyActive, got %v", err)
	}
}

func TestBorrowPreconditionOrder(t *testing.T) {
	params := defaultParams()
	params.CollateralPrice = big.NewInt(1)

	// Insufficient collateral wins regardless of platform liquidity.
	f := newFixture(params)
	borrower := testAddr(0x02)
	f.state.platform = big.NewInt(10)
	f.loan.mint(moduleAddr, 10)
	if err := f.engine.Borrow(borrower, big.NewInt(100)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}

	// With collateral in place, liquidity is the next check.
	f = newFixture(params)
	f.state.platform = big.NewInt(10)
	f.loan.mint(moduleAddr, 10)
	f.state.collateral[borrower] = big.NewInt(1_000)
	if err := f.engine.Borrow(borrower, big.NewInt(100)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestBorrowTransferFailureRecordsNothing(t *testing.T) {
	f := newFixture(defaultParams())
	borrower := testAddr(0x02)
	f.state.platform = big.NewInt(1_000)
	f.state.collateral[borrower] = big.NewInt(10)
	f.loan.failTransfer = true

	if err := f.engine.Borrow(borrower, big.NewInt(100)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if _, ok := f.state.loans[borrower]; ok {
		t.Fatalf("expected no loan record after failed transfer")
	}
	if f.state.platform.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected platform balance unchanged, got %s", f.state.platform)
	}
}

func TestDepositCollateralValidation(t *testing.T) {
	f := newFixture(defaultParams())
	user := testAddr(0x03)

	if err := f.engine.DepositCollateral(user, big.NewInt(0)); !errors.Is(err, ErrMustDepositPositive) {
		t.Fatalf("expected ErrMustDepositPositive, got %v", err)
	}
	if err := f.engine.DepositCollateral(user, big.NewInt(5)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed for unfunded deposit, got %v", err)
	}
}

func TestWithdrawCollateralValidation(t *testing.T) {
	f := newFixture(defaultParams())
	user := testAddr(0x03)
	f.state.collateral[user] = big.NewInt(50)
	f.base.mint(collateralAddr, 50)

	if err := f.engine.WithdrawCollateral(user, big.NewInt(0)); !errors.Is(err, ErrMustWithdrawPositive) {
		t.Fatalf("expected ErrMustWithdrawPositive, got %v", err)
	}
	if err := f.engine.WithdrawCollateral(user, big.NewInt(51)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestWithdrawCollateralLockedByActiveLoan(t *testing.T) {
	params := defaultParams()
	params.CollateralPrice = big.NewInt(1)
	f := newFixture(params)
	user := testAddr(0x03)

	// Active loan of 100 at price 1 and ratio 150% requires 150 collateral.
	f.state.loans[user] = &Loan{Borrower: user, Amount: big.NewInt(100), Active: true}
	f.state.collateral[user] = big.NewInt(200)
	f.base.mint(collateralAddr, 200)

	if err := f.engine.WithdrawCollateral(user, big.NewInt(51)); !errors.Is(err, ErrCollateralLocked) {
		t.Fatalf("expected ErrCollateralLocked, got %v", err)
	}
	// Exactly down to the requirement is allowed.
	if err := f.engine.WithdrawCollateral(user, big.NewInt(50)); err != nil {
		t.Fatalf("withdraw to requirement: %v", err)
	}
	if got := f.state.collateral[user]; got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("unexpected remaining collateral: %s", got)
	}
}

func TestCollateralDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(defaultParams())
	user := testAddr(0x03)
	f.base.mint(user, 75)

	if err := f.engine.DepositCollateral(user, big.NewInt(75)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := f.state.collateral[user]; got.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("unexpected collateral after deposit: %s", got)
	}

	if err := f.engine.WithdrawCollateral(user, big.NewInt(75)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.state.collateral[user]; got.Sign() != 0 {
		t.Fatalf("expected collateral restored to zero, got %s", got)
	}
	if got := f.base.balance(user); got.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("expected base asset returned, got %s", got)
	}

	if len(f.emitter.byType(events.TypeCollateralDeposited)) != 1 {
		t.Fatalf("expected one deposit event")
	}
	if len(f.emitter.byType(events.TypeCollateralWithdrawn)) != 1 {
		t.Fatalf("expected one withdrawal event")
	}
}

func TestRepayWithoutLoan(t *testing.T) {
	f := newFixture(defaultParams())
	if err := f.engine.Repay(testAddr(0x04)); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("expected ErrNoActiveLoan, got %v", err)
	}
}

func TestRepayTransferFailureKeepsLoan(t *testing.T) {
	f := newFixture(defaultParams())
	borrower := testAddr(0x04)
	f.state.loans[borrower] = &Loan{Borrower: borrower, Amount: big.NewInt(100), Active: true}
	f.loan.failTransferFrom = true

	if err := f.engine.Repay(borrower); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	loan := f.state.loans[borrower]
	if loan == nil || !loan.Active || loan.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected loan untouched, got %+v", loan)
	}
}

func TestLendBorrowRepayEndToEnd(t *testing.T) {
	f := newFixture(defaultParams())
	lender := testAddr(0x01)
	borrower := testAddr(0x02)

	now := int64(1_700_000_000)
	f.engine.SetClock(func() int64 { return now })

	f.loan.mint(lender, 100)
	f.base.mint(borrower, 1)

	if err := f.engine.Lend(lender, big.NewInt(100)); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if err := f.engine.DepositCollateral(borrower, big.NewInt(1)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}

	// Borrowing 100 at price 1000 floors to zero required collateral, so one
	// unit of collateral is plenty.
	if required := f.engine.RequiredCollateralForBorrowing(big.NewInt(100)); required.Cmp(big.NewInt(1)) >= 0 {
		t.Fatalf("expected required collateral below 1 unit, got %s", required)
	}
	if err := f.engine.Borrow(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// 180 days later the loan accrues positive interest.
	now += 180 * 24 * 60 * 60
	// Fund the borrower with enough to cover principal plus interest.
	f.loan.mint(borrower, 200)

	if err := f.engine.Repay(borrower); err != nil {
		t.Fatalf("repay: %v", err)
	}

	repaid := f.emitter.byType(events.TypeLoanRepaid)
	if len(repaid) != 1 {
		t.Fatalf("expected one repay event, got %d", len(repaid))
	}

	balance, err := f.engine.TokenBalance()
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) <= 0 {
		t.Fatalf("expected platform balance above the original 100, got %s", balance)
	}

	if loan, ok := f.state.loans[borrower]; ok {
		t.Fatalf("expected loan record cleared, got %+v", loan)
	}
	if got := f.state.collateral[borrower]; got.Sign() != 0 {
		t.Fatalf("expected collateral released, got %s", got)
	}
	if got := f.base.balance(borrower); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collateral returned to borrower, got %s", got)
	}
}

func TestPositionReportsLoanAndCollateral(t *testing.T) {
	f := newFixture(defaultParams())
	user := testAddr(0x05)
	f.state.loans[user] = &Loan{Borrower: user, Amount: big.NewInt(40), StartTime: 99, Active: true}
	f.state.collateral[user] = big.NewInt(7)

	position, err := f.engine.Position(user)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if position.Loan == nil || position.Loan.Amount.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected loan in position: %+v", position.Loan)
	}
	if position.Collateral.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected collateral in position: %s", position.Collateral)
	}
}

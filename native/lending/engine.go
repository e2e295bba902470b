package lending

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/events"
	nativecommon "loanledger/native/common"
)

const moduleName = "lending"

// Ledger is the external fungible-asset collaborator. Transfer pushes funds
// from the engine's own account; TransferFrom pulls funds from an account
// that pre-authorized the engine. Both report success as a boolean and leave
// their balances untouched on failure.
type Ledger interface {
	Transfer(to common.Address, amount *big.Int) bool
	TransferFrom(from, to common.Address, amount *big.Int) bool
}

// Engine orchestrates the lending state machine: liquidity deposits, loans,
// collateral custody and liquidations. It exclusively owns the loan book, the
// collateral vault and the aggregate platform balance; the asset ledgers are
// separate owners of their own balances and the engine only observes the
// outcome of transfer calls it issues.
//
// Every public mutator is atomic: it validates preconditions against current
// state, performs at most one outbound transfer, and leaves no partial
// effects behind when any precondition or transfer fails.
type Engine struct {
	state          engineState
	loanAsset      Ledger
	baseAsset      Ledger
	moduleAddress  common.Address
	collateralAddr common.Address
	params         Params
	emitter        events.Emitter
	pauses         nativecommon.PauseView
	guard          reentrancyGuard
	nowFn          func() int64
}

// NewEngine constructs a lending engine bound to the loan-asset and
// base-asset ledgers, the platform treasury addresses and the immutable risk
// parameters.
func NewEngine(moduleAddr, collateralAddr common.Address, loanAsset, baseAsset Ledger, params Params) *Engine {
	return &Engine{
		loanAsset:      loanAsset,
		baseAsset:      baseAsset,
		moduleAddress:  moduleAddr,
		collateralAddr: collateralAddr,
		params:         params.Clone(),
		emitter:        events.NoopEmitter{},
		nowFn:          func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the operator pause switches checked on every mutator.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock overrides the timestamp source used for interest accrual. The
// clock is sampled once per operation.
func (e *Engine) SetClock(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// Params returns a copy of the engine's immutable configuration.
func (e *Engine) Params() Params {
	if e == nil {
		return Params{}
	}
	return e.params.Clone()
}

// InterestRate returns the simple annual interest rate in percent.
func (e *Engine) InterestRate() uint64 {
	if e == nil {
		return 0
	}
	return e.params.InterestRatePerYear
}

// RequiredCollateralForBorrowing returns the base-asset collateral an account
// must hold to borrow the given amount.
func (e *Engine) RequiredCollateralForBorrowing(amount *big.Int) *big.Int {
	if e == nil {
		return big.NewInt(0)
	}
	return RequiredCollateral(amount, e.params)
}

// TokenBalance returns the aggregate loan-asset balance held by the platform.
func (e *Engine) TokenBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.GetPlatformBalance()
}

// Position returns the account's loan record and locked collateral.
func (e *Engine) Position(addr common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.GetLoan(addr)
	if err != nil {
		return nil, err
	}
	collateral, err := e.state.GetCollateral(addr)
	if err != nil {
		return nil, err
	}
	return &Position{Loan: loan.Clone(), Collateral: collateral}, nil
}

// Lend pulls loan-asset liquidity from the lender into the platform account.
// The lender must have pre-authorized the engine for at least the supplied
// amount.
func (e *Engine) Lend(lender common.Address, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}

	platform, err := e.state.GetPlatformBalance()
	if err != nil {
		return err
	}

	if !e.loanAsset.TransferFrom(lender, e.moduleAddress, amount) {
		return ErrTransferFailed
	}

	platform = new(big.Int).Add(platform, amount)
	if err := e.state.PutPlatformBalance(platform); err != nil {
		return err
	}

	e.emitter.Emit(events.TokensDeposited{Lender: lender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Borrow issues a loan against the caller's locked collateral. Preconditions
// are checked in order: no active loan, sufficient collateral, sufficient
// platform liquidity. The loan record is only written after the outbound
// transfer succeeded.
func (e *Engine) Borrow(borrower common.Address, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}

	loan, err := e.state.GetLoan(borrower)
	if err != nil {
		return err
	}
	if loan != nil && loan.Active {
		return ErrLoanAlreadyActive
	}

	collateral, err := e.state.GetCollateral(borrower)
	if err != nil {
		return err
	}
	required := RequiredCollateral(amount, e.params)
	if collateral.Cmp(required) < 0 {
		return ErrInsufficientCollateral
	}

	platform, err := e.state.GetPlatformBalance()
	if err != nil {
		return err
	}
	if platform.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	if !e.loanAsset.Transfer(borrower, amount) {
		return ErrTransferFailed
	}

	startTime := e.nowFn()
	record := &Loan{
		Borrower:  borrower,
		Amount:    new(big.Int).Set(amount),
		StartTime: startTime,
		Active:    true,
	}
	if err := e.state.PutLoan(record); err != nil {
		return err
	}
	if err := e.state.PutPlatformBalance(new(big.Int).Sub(platform, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.LoanInitiated{
		Borrower:  borrower,
		Amount:    new(big.Int).Set(amount),
		StartTime: startTime,
	})
	return nil
}

// Repay settles the caller's loan in full: principal plus accrued interest is
// pulled from the borrower, the loan record is cleared, and all of the
// account's collateral is released back to the caller.
func (e *Engine) Repay(borrower common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.checkReady(); err != nil {
		return err
	}

	loan, err := e.state.GetLoan(borrower)
	if err != nil {
		return err
	}
	if loan == nil || !loan.Active {
		return ErrNoActiveLoan
	}

	endTime := e.nowFn()
	elapsed := endTime - loan.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	interest := AccruedInterest(loan.Amount, e.params.InterestRatePerYear, elapsed)
	total := new(big.Int).Add(loan.Amount, interest)

	collateral, err := e.state.GetCollateral(borrower)
	if err != nil {
		return err
	}
	platform, err := e.state.GetPlatformBalance()
	if err != nil {
		return err
	}

	if !e.loanAsset.TransferFrom(borrower, e.moduleAddress, total) {
		return ErrTransferFailed
	}
	if collateral.Sign() > 0 {
		if !e.baseAsset.Transfer(borrower, collateral) {
			// Hand the pulled repayment back so neither ledger keeps a
			// partial effect of the aborted operation.
			e.loanAsset.Transfer(borrower, total)
			return ErrTransferFailed
		}
	}

	if err := e.state.PutPlatformBalance(new(big.Int).Add(platform, total)); err != nil {
		return err
	}
	if err := e.state.DeleteLoan(borrower); err != nil {
		return err
	}
	if collateral.Sign() > 0 {
		if err := e.state.PutCollateral(borrower, big.NewInt(0)); err != nil {
			return err
		}
		e.emitter.Emit(events.CollateralWithdrawn{User: borrower, Amount: collateral})
	}

	e.emitter.Emit(events.LoanRepaid{Borrower: borrower, Amount: total, EndTime: endTime})
	return nil
}

// DepositCollateral locks base-asset collateral for the caller inside the
// platform vault. The amount is pulled atomically with the call.
func (e *Engine) DepositCollateral(user common.Address, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrMustDepositPositive
	}

	collateral, err := e.state.GetCollateral(user)
	if err != nil {
		return err
	}

	if !e.baseAsset.TransferFrom(user, e.collateralAddr, amount) {
		return ErrTransferFailed
	}

	if err := e.state.PutCollateral(user, new(big.Int).Add(collateral, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.CollateralDeposited{User: user, Amount: new(big.Int).Set(amount)})
	return nil
}

// WithdrawCollateral releases collateral back to the caller while ensuring
// any active loan stays covered. The loan state is read at call time, never
// from a stale snapshot.
func (e *Engine) WithdrawCollateral(user common.Address, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrMustWithdrawPositive
	}

	collateral, err := e.state.GetCollateral(user)
	if err != nil {
		return err
	}
	if collateral.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}

	remaining := new(big.Int).Sub(collateral, amount)
	activeAmount := big.NewInt(0)
	loan, err := e.state.GetLoan(user)
	if err != nil {
		return err
	}
	if loan != nil && loan.Active {
		activeAmount = loan.Amount
	}
	if remaining.Cmp(RequiredCollateral(activeAmount, e.params)) < 0 {
		return ErrCollateralLocked
	}

	if !e.baseAsset.Transfer(user, amount) {
		return ErrTransferFailed
	}

	if err := e.state.PutCollateral(user, remaining); err != nil {
		return err
	}

	e.emitter.Emit(events.CollateralWithdrawn{User: user, Amount: new(big.Int).Set(amount)})
	return nil
}

// Liquidate forcibly closes an under-collateralized loan. The target is
// eligible only when its collateral sits strictly below the liquidation
// threshold, which is stricter than the borrow-time requirement. The caller
// receives the entire seized collateral as payout.
func (e *Engine) Liquidate(liquidator, borrower common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.checkReady(); err != nil {
		return err
	}

	loan, err := e.state.GetLoan(borrower)
	if err != nil {
		return err
	}
	if loan == nil || !loan.Active {
		return ErrNoActiveLoan
	}

	collateral, err := e.state.GetCollateral(borrower)
	if err != nil {
		return err
	}
	if collateral.Cmp(liquidationThreshold(loan.Amount, e.params)) >= 0 {
		return ErrCollateralSufficient
	}

	if collateral.Sign() > 0 {
		if !e.baseAsset.Transfer(liquidator, collateral) {
			return ErrTransferFailed
		}
	}

	if err := e.state.DeleteLoan(borrower); err != nil {
		return err
	}
	if err := e.state.PutCollateral(borrower, big.NewInt(0)); err != nil {
		return err
	}

	e.emitter.Emit(events.LoanLiquidated{
		Liquidator: liquidator,
		Borrower:   borrower,
		Debt:       new(big.Int).Set(loan.Amount),
		Seized:     collateral,
	})
	return nil
}

func (e *Engine) checkReady() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.loanAsset == nil || e.baseAsset == nil {
		return errNilLedger
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

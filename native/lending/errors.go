package lending

import "errors"

var (
	// ErrAmountNotPositive rejects zero or negative lend/borrow amounts.
	ErrAmountNotPositive = errors.New("lending engine: amount must be positive")
	// ErrMustDepositPositive rejects zero or negative collateral deposits.
	ErrMustDepositPositive = errors.New("lending engine: collateral deposit must be positive")
	// ErrMustWithdrawPositive rejects zero or negative collateral withdrawals.
	ErrMustWithdrawPositive = errors.New("lending engine: collateral withdrawal must be positive")
	// ErrLoanAlreadyActive is returned when a borrower with a live loan
	// attempts to open another one.
	ErrLoanAlreadyActive = errors.New("lending engine: loan already active")
	// ErrNoActiveLoan is returned when an operation requires a live loan and
	// the account has none.
	ErrNoActiveLoan = errors.New("lending engine: no active loan")
	// ErrInsufficientCollateral is returned when the account's locked
	// collateral does not cover the requested operation.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrInsufficientFunds is returned when the platform does not hold
	// enough loan asset to serve a borrow.
	ErrInsufficientFunds = errors.New("lending engine: insufficient platform funds")
	// ErrCollateralLocked is returned when a withdrawal would leave an
	// active loan under-collateralized.
	ErrCollateralLocked = errors.New("lending engine: collateral locked by active loan")
	// ErrCollateralSufficient is returned when a liquidation target is still
	// above the liquidation threshold.
	ErrCollateralSufficient = errors.New("lending engine: collateral sufficient")
	// ErrTransferFailed is returned when the external asset ledger rejects a
	// transfer; engine state is left unchanged.
	ErrTransferFailed = errors.New("lending engine: asset transfer failed")
	// ErrReentrantCall is returned when a guarded operation is re-entered
	// before the enclosing operation finished.
	ErrReentrantCall = errors.New("lending engine: reentrant call")

	errNilState  = errors.New("lending engine: state not configured")
	errNilLedger = errors.New("lending engine: asset ledger not configured")
)

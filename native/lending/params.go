package lending

import (
	"errors"
	"math/big"
)

// Params groups the construction-time constants governing lending activity.
// They are fixed for the lifetime of an engine instance; no mutation path
// exists after construction.
type Params struct {
	// CollateralizationRatio is the minimum collateral value required to
	// open a loan, as a percentage of the loan value (e.g. 150).
	CollateralizationRatio uint64
	// LiquidationRatio is the percentage threshold applied to the required
	// collateral below which a loan becomes eligible for forced closure
	// (e.g. 110).
	LiquidationRatio uint64
	// InterestRatePerYear is the simple annual interest rate, in percent.
	InterestRatePerYear uint64
	// CollateralPrice is the fixed conversion rate between the base asset
	// and the loan asset, in loan-asset units per base-asset unit. It
	// stands in for a price oracle.
	CollateralPrice *big.Int
}

var (
	errZeroCollateralizationRatio = errors.New("lending params: collateralization ratio must be positive")
	errZeroLiquidationRatio       = errors.New("lending params: liquidation ratio must be positive")
	errInvalidCollateralPrice     = errors.New("lending params: collateral price must be positive")
)

// Validate rejects parameter sets that would make the collateral math
// degenerate.
func (p Params) Validate() error {
	if p.CollateralizationRatio == 0 {
		return errZeroCollateralizationRatio
	}
	if p.LiquidationRatio == 0 {
		return errZeroLiquidationRatio
	}
	if p.CollateralPrice == nil || p.CollateralPrice.Sign() <= 0 {
		return errInvalidCollateralPrice
	}
	return nil
}

// Clone returns a deep copy of the parameter set.
func (p Params) Clone() Params {
	clone := Params{
		CollateralizationRatio: p.CollateralizationRatio,
		LiquidationRatio:       p.LiquidationRatio,
		InterestRatePerYear:    p.InterestRatePerYear,
	}
	if p.CollateralPrice != nil {
		clone.CollateralPrice = new(big.Int).Set(p.CollateralPrice)
	}
	return clone
}

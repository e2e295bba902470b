package lending

import "math/big"

// RequiredCollateral computes the base-asset collateral needed to open or
// maintain a loan of the given size:
//
//	(amount / collateralPrice) * collateralizationRatio / 100
//
// using floor division at each step. The ordering of the divisions matters at
// boundary values and is preserved exactly for compatibility with existing
// deployments.
func RequiredCollateral(amount *big.Int, params Params) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if params.CollateralPrice == nil || params.CollateralPrice.Sign() <= 0 {
		return big.NewInt(0)
	}
	required := new(big.Int).Quo(amount, params.CollateralPrice)
	required.Mul(required, new(big.Int).SetUint64(params.CollateralizationRatio))
	return required.Quo(required, hundred)
}

// liquidationThreshold returns the collateral level below which a loan of the
// given size may be forcibly closed. Collateral exactly at the threshold is
// still sufficient.
func liquidationThreshold(amount *big.Int, params Params) *big.Int {
	threshold := RequiredCollateral(amount, params)
	threshold.Mul(threshold, new(big.Int).SetUint64(params.LiquidationRatio))
	return threshold.Quo(threshold, hundred)
}

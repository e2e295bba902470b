package lending

import "math/big"

const secondsPerYear = 31_536_000

var hundred = big.NewInt(100)

// AccruedInterest computes the simple interest owed on a principal after the
// given elapsed time: principal * ratePerYear% * elapsed / year, floored once
// at the end so the result is monotone non-decreasing in elapsed time.
//
// The function is pure; it never reads engine state or the clock.
func AccruedInterest(principal *big.Int, ratePerYear uint64, elapsedSeconds int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || ratePerYear == 0 || elapsedSeconds <= 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(ratePerYear))
	interest.Mul(interest, big.NewInt(elapsedSeconds))
	denominator := new(big.Int).Mul(hundred, big.NewInt(secondsPerYear))
	return interest.Quo(interest, denominator)
}

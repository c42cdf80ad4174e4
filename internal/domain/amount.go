package domain

import "github.com/shopspring/decimal"

// AmountTolerance is the largest difference under which two amounts are treated as equal.
// Statements carry cents, so anything under half a cent is representation error.
var AmountTolerance = decimal.New(5, -3)

// AmountsEqual reports whether a and b are the same monetary amount.
func AmountsEqual(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().LessThan(AmountTolerance)
}

// IsNegation reports whether b is the sign-inverted amount of a.
func IsNegation(a, b float64) bool {
	return AmountsEqual(a, -b)
}

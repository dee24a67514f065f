package entity

import "math"

// amountEpsilon is the tolerance used for monetary comparisons. Amounts are
// ledger aggregates carried as float64; two values closer than this are the
// same amount.
const amountEpsilon = 1e-5

// CompareAmounts compares two monetary amounts with tolerance.
// It returns -1 if a < b, 0 if equal, and 1 if a > b.
func CompareAmounts(a, b float64) int {
	if math.Abs(a-b) < amountEpsilon {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

// AmountsEqual reports whether two monetary amounts are equal within
// tolerance.
func AmountsEqual(a, b float64) bool {
	return CompareAmounts(a, b) == 0
}

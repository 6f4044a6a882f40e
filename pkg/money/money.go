// Package money provides exact integer arithmetic on amounts expressed in
// the smallest currency unit. Floats are deliberately absent: every split
// and percentage is computed with integer floor/remainder semantics so that
// allocations always sum back to their input.
package money

import (
	"errors"
	"fmt"
)

// Amount is a monetary value in the smallest currency unit.
type Amount = int64

var (
	// ErrNegativeAmount is returned for negative inputs.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrInvalidShares is returned when a split is requested over a
	// non-positive number of shares.
	ErrInvalidShares = errors.New("share count must be positive")
)

// Percent returns floor(total * pct / 100).
func Percent(total Amount, pct int) (Amount, error) {
	if total < 0 {
		return 0, ErrNegativeAmount
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentage out of range: %d", pct)
	}
	return total * int64(pct) / 100, nil
}

// Split divides total across n shares using largest-remainder allocation.
// The first total%n shares receive base+1, the rest base, so the shares
// always sum to total exactly.
func Split(total Amount, n int) ([]Amount, error) {
	if total < 0 {
		return nil, ErrNegativeAmount
	}
	if n <= 0 {
		return nil, ErrInvalidShares
	}

	base := total / int64(n)
	remainder := total % int64(n)

	shares := make([]Amount, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares, nil
}

// Sum adds up the given amounts.
func Sum(amounts []Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

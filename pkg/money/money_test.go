package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name     string
		total    Amount
		pct      int
		expected Amount
	}{
		{name: "forty percent of a round total", total: 1_000_000, pct: 40, expected: 400_000},
		{name: "thirty percent floors", total: 1_000_001, pct: 30, expected: 300_000},
		{name: "full percentage", total: 500_000, pct: 100, expected: 500_000},
		{name: "zero percent", total: 500_000, pct: 0, expected: 0},
		{name: "zero total", total: 0, pct: 60, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Percent(tt.total, tt.pct)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPercentRejectsBadInput(t *testing.T) {
	_, err := Percent(-1, 50)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = Percent(100, 101)
	assert.Error(t, err)

	_, err = Percent(100, -1)
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		total    Amount
		n        int
		expected []Amount
	}{
		{name: "even split", total: 600_000, n: 8, expected: []Amount{75_000, 75_000, 75_000, 75_000, 75_000, 75_000, 75_000, 75_000}},
		{name: "remainder goes to first shares", total: 700_001, n: 2, expected: []Amount{350_001, 350_000}},
		{name: "single share", total: 42, n: 1, expected: []Amount{42}},
		{name: "total smaller than shares", total: 3, n: 5, expected: []Amount{1, 1, 1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.total, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.total, Sum(got))
		})
	}
}

func TestSplitAlwaysSumsBack(t *testing.T) {
	for total := Amount(0); total < 1000; total++ {
		for n := 1; n <= 9; n++ {
			shares, err := Split(total, n)
			require.NoError(t, err)
			require.Equal(t, total, Sum(shares), "total=%d n=%d", total, n)
			for i := 1; i < len(shares); i++ {
				require.LessOrEqual(t, shares[i], shares[i-1], "shares must be non-increasing")
			}
		}
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	_, err := Split(-1, 2)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = Split(10, 0)
	assert.ErrorIs(t, err, ErrInvalidShares)
}

package payplan

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

var buildTime = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

func TestValidateSelections(t *testing.T) {
	valid := []Selection{
		{100, 0},
		{30, 2}, {40, 2}, {50, 2}, {60, 2},
		{30, 8}, {40, 8}, {50, 8}, {60, 8},
		{50, 5},
	}
	for _, sel := range valid {
		assert.NoError(t, sel.Validate(), "selection %+v must be valid", sel)
	}

	invalid := []Selection{
		{100, 2},
		{30, 0},
		{30, 1},
		{30, 9},
		{70, 2},
		{0, 0},
		{-10, 4},
	}
	for _, sel := range invalid {
		err := sel.Validate()
		require.Error(t, err, "selection %+v must be invalid", sel)

		var appErr *errorbank.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, errorbank.KindValidation, appErr.Kind())
	}
}

func TestBuildFullPayment(t *testing.T) {
	specs, err := Build(500_000, Selection{UpfrontPercent: 100}, buildTime)
	require.NoError(t, err)
	require.Len(t, specs, 1)

	assert.Equal(t, int64(500_000), specs[0].Amount)
	assert.False(t, specs[0].IsCheck)
	assert.Equal(t, buildTime, specs[0].DueDate)
}

func TestBuildEvenInstallments(t *testing.T) {
	specs, err := Build(1_000_000, Selection{UpfrontPercent: 40, CheckCount: 8}, buildTime)
	require.NoError(t, err)
	require.Len(t, specs, 9)

	assert.Equal(t, int64(400_000), specs[0].Amount)
	assert.False(t, specs[0].IsCheck)

	for _, spec := range specs[1:] {
		assert.Equal(t, int64(75_000), spec.Amount)
		assert.True(t, spec.IsCheck)
	}
}

func TestBuildRemainderGoesToFirstCheque(t *testing.T) {
	specs, err := Build(1_000_001, Selection{UpfrontPercent: 30, CheckCount: 2}, buildTime)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, int64(300_000), specs[0].Amount)
	assert.Equal(t, int64(350_001), specs[1].Amount)
	assert.Equal(t, int64(350_000), specs[2].Amount)
}

func TestBuildChequeDueDatesStepByMonth(t *testing.T) {
	specs, err := Build(900_000, Selection{UpfrontPercent: 30, CheckCount: 3}, buildTime)
	require.NoError(t, err)
	require.Len(t, specs, 4)

	assert.Equal(t, buildTime, specs[0].DueDate)
	for i, spec := range specs[1:] {
		assert.Equal(t, buildTime.AddDate(0, i+1, 0), spec.DueDate)
	}
}

func TestBuildSumInvariant(t *testing.T) {
	selections := []Selection{{100, 0}}
	for _, upfront := range []int{30, 40, 50, 60} {
		for checks := 2; checks <= 8; checks++ {
			selections = append(selections, Selection{upfront, checks})
		}
	}

	totals := []int64{1, 7, 99, 1_000, 999_983, 1_000_000, 1_000_001, 123_456_789}
	for _, total := range totals {
		for _, sel := range selections {
			specs, err := Build(total, sel, buildTime)
			require.NoError(t, err, "total=%d sel=%+v", total, sel)

			var sum int64
			for _, spec := range specs {
				sum += spec.Amount
				require.GreaterOrEqual(t, spec.Amount, int64(0))
			}
			require.Equal(t, total, sum, "total=%d sel=%+v", total, sel)
		}
	}
}

func TestBuildRejectsNonPositiveTotal(t *testing.T) {
	for _, total := range []int64{0, -5} {
		_, err := Build(total, Selection{UpfrontPercent: 100}, buildTime)
		require.Error(t, err)

		var appErr *errorbank.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, errorbank.KindValidation, appErr.Kind())
	}
}

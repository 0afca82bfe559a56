package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_ScalesLinearly(t *testing.T) {
	res := PriceResult{
		SuggestedPrice: d("38.64"),
		ProfitPerUnit:  d("10"),
		TotalFees:      d("8.64"),
		TotalCost:      d("20"),
	}

	sim, err := Simulate(res, 25)
	require.NoError(t, err)

	assert.Equal(t, 25, sim.NumberOfSales)
	assert.True(t, sim.TotalRevenue.Equal(d("966")))
	assert.True(t, sim.TotalProfit.Equal(d("250")))
	assert.True(t, sim.TotalFees.Equal(d("216")))
	assert.True(t, sim.TotalCost.Equal(d("500")))
}

func TestSimulate_RejectsNonPositiveCount(t *testing.T) {
	_, err := Simulate(PriceResult{}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

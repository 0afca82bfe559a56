package logic

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTieredFeeModel_FixedFee(t *testing.T) {
	m := mlModel("12")

	cases := map[string]string{
		"0.50":   "0.25",
		"12.49":  "6.245",
		"12.50":  "6.25",
		"28.99":  "6.25",
		"29":     "6.50",
		"49.999": "6.50",
		"50":     "6.75",
		"78.99":  "6.75",
		"79":     "0",
		"1500":   "0",
	}
	for price, want := range cases {
		got := m.FixedFee(d(price))
		assert.True(t, got.Equal(d(want)), "price %s: want %s got %s", price, want, got)
	}
}

func TestTieredFeeModel_LowPriceRuleBeatsTable(t *testing.T) {
	m := TieredFeeModel{
		RatePercent:       d("12"),
		Tiers:             []FeeTier{{Min: d("0"), Fee: d("99")}},
		LowPriceThreshold: d("20"),
	}

	assert.True(t, m.FixedFee(d("10")).Equal(d("5")))
	assert.True(t, m.FixedFee(d("20")).Equal(d("99")))
}

func TestLookupTier_OutsideTable(t *testing.T) {
	tiers := []FeeTier{{Min: d("10"), Fee: d("3")}}

	fee, ok := LookupTier(tiers, d("9.99"))
	assert.False(t, ok)
	assert.True(t, fee.IsZero())

	fee, ok = LookupTier(tiers, d("10"))
	assert.True(t, ok)
	assert.True(t, fee.Equal(d("3")))
}

func TestValidateTiers(t *testing.T) {
	assert.NoError(t, ValidateTiers(defaultTiers()))

	bad := map[string][]FeeTier{
		"empty":           nil,
		"unbounded first": {{Min: d("0"), Fee: d("1")}, {Min: d("5"), Fee: d("1")}},
		"bounded last":    {{Min: d("0"), Max: dp("5"), Fee: d("1")}},
		"gap": {
			{Min: d("0"), Max: dp("5"), Fee: d("1")},
			{Min: d("6"), Fee: d("1")},
		},
		"inverted": {
			{Min: d("5"), Max: dp("5"), Fee: d("1")},
			{Min: d("5"), Fee: d("1")},
		},
		"negative fee": {{Min: d("0"), Fee: d("-1")}},
		"overlong fee": {{Min: d("0"), Fee: d("1e-99999999")}},
		"huge max": {
			{Min: d("0"), Max: dp("1e99999999"), Fee: d("1")},
			{Min: d("1e99999999"), Fee: d("1")},
		},
	}
	for name, tiers := range bad {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateTiers(tiers), ErrInvalidInput)
		})
	}
}

func TestPercentFeeModel_Breakdown(t *testing.T) {
	m := NewPercentFeeModel(d("12"), d("2"), d("6"), d("7"), d("1"))

	b := m.Breakdown(d("100"))
	assert.True(t, b.Commission.Equal(d("12")))
	assert.True(t, b.TransactionFee.Equal(d("2")))
	assert.True(t, b.TransportFee.Equal(d("6")))
	assert.True(t, b.FixedFee.Equal(d("7")))
	assert.True(t, b.Surcharge.Equal(d("1")))
	assert.True(t, b.RatePercent.Equal(d("20")))
	assert.True(t, b.Total().Equal(d("28")))
	assert.True(t, m.Rate().Equal(d("0.2")))
	assert.True(t, m.FixedFee(decimal.Zero).Equal(d("8")))
}

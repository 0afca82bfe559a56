package logic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeModel is a marketplace fee schedule. It is implemented by
// PercentFeeModel and TieredFeeModel only; Solve picks its strategy from the
// concrete variant.
type FeeModel interface {
	// Rate is the combined percentage rate as a fraction of the sale price.
	Rate() decimal.Decimal
	// FixedFee is the flat amount charged for one sale at price.
	FixedFee(price decimal.Decimal) decimal.Decimal
	// Breakdown reports the fee components at price. Cost fields are left zero.
	Breakdown(price decimal.Decimal) FeeBreakdown

	closedForm() bool
}

// PercentFeeModel is a Shopee-style schedule: percentage components summed
// into one rate plus price-independent flat fees.
type PercentFeeModel struct {
	CommissionPercent  decimal.Decimal
	TransactionPercent decimal.Decimal
	TransportPercent   decimal.Decimal
	FlatFee            decimal.Decimal
	Surcharge          decimal.Decimal
}

// NewPercentFeeModel builds a percent model. Percentages are 0..100.
func NewPercentFeeModel(commission, transaction, transport, fixedFee, surcharge decimal.Decimal) PercentFeeModel {
	return PercentFeeModel{
		CommissionPercent:  commission,
		TransactionPercent: transaction,
		TransportPercent:   transport,
		FlatFee:            fixedFee,
		Surcharge:          surcharge,
	}
}

func (m PercentFeeModel) ratePercent() decimal.Decimal {
	return m.CommissionPercent.Add(m.TransactionPercent).Add(m.TransportPercent)
}

func (m PercentFeeModel) Rate() decimal.Decimal {
	return m.ratePercent().Div(hundred)
}

func (m PercentFeeModel) FixedFee(decimal.Decimal) decimal.Decimal {
	return m.FlatFee.Add(m.Surcharge)
}

func (m PercentFeeModel) Breakdown(price decimal.Decimal) FeeBreakdown {
	return FeeBreakdown{
		Commission:     price.Mul(m.CommissionPercent).Div(hundred),
		TransactionFee: price.Mul(m.TransactionPercent).Div(hundred),
		TransportFee:   price.Mul(m.TransportPercent).Div(hundred),
		FixedFee:       m.FlatFee,
		Surcharge:      m.Surcharge,
		RatePercent:    m.ratePercent(),
	}
}

func (PercentFeeModel) closedForm() bool { return true }

// FeeTier maps sale prices in [Min, Max) to a fixed fee. A nil Max is unbounded.
type FeeTier struct {
	Min decimal.Decimal  `json:"min"`
	Max *decimal.Decimal `json:"max"`
	Fee decimal.Decimal  `json:"fee"`
}

func (t FeeTier) contains(price decimal.Decimal) bool {
	if price.LessThan(t.Min) {
		return false
	}
	return t.Max == nil || price.LessThan(*t.Max)
}

// LookupTier returns the fee of the tier containing price. Prices outside
// every tier pay no fixed fee.
func LookupTier(tiers []FeeTier, price decimal.Decimal) (decimal.Decimal, bool) {
	for _, t := range tiers {
		if t.contains(price) {
			return t.Fee, true
		}
	}
	return decimal.Zero, false
}

// ValidateTiers checks that tiers are ascending, contiguous and closed by
// exactly one unbounded tier.
func ValidateTiers(tiers []FeeTier) error {
	if len(tiers) == 0 {
		return invalid("fee table is empty")
	}
	for i, t := range tiers {
		if err := CheckAmount(fmt.Sprintf("tier %d min", i), t.Min); err != nil {
			return err
		}
		if err := CheckAmount(fmt.Sprintf("tier %d fee", i), t.Fee); err != nil {
			return err
		}
		if t.Max != nil {
			if err := CheckAmount(fmt.Sprintf("tier %d max", i), *t.Max); err != nil {
				return err
			}
		}
		if t.Min.IsNegative() {
			return invalid("tier %d: negative min %s", i, t.Min)
		}
		if t.Fee.IsNegative() {
			return invalid("tier %d: negative fee %s", i, t.Fee)
		}
		last := i == len(tiers)-1
		if t.Max == nil {
			if !last {
				return invalid("tier %d: only the last tier may be unbounded", i)
			}
			continue
		}
		if last {
			return invalid("tier %d: last tier must be unbounded", i)
		}
		if !t.Max.GreaterThan(t.Min) {
			return invalid("tier %d: max %s must be greater than min %s", i, t.Max, t.Min)
		}
		if !t.Max.Equal(tiers[i+1].Min) {
			return invalid("tier %d: gap or overlap between %s and %s", i, t.Max, tiers[i+1].Min)
		}
	}
	return nil
}

// TieredFeeModel is a Mercado Livre-style schedule: one percentage rate and a
// fixed fee that depends on the sale price itself.
type TieredFeeModel struct {
	RatePercent decimal.Decimal
	Tiers       []FeeTier
	// Below LowPriceThreshold the fixed fee is half the price.
	LowPriceThreshold decimal.Decimal
	// FixedFeeOverride replaces the table and low-price rule entirely.
	FixedFeeOverride *decimal.Decimal
}

func (m TieredFeeModel) Rate() decimal.Decimal {
	return m.RatePercent.Div(hundred)
}

func (m TieredFeeModel) FixedFee(price decimal.Decimal) decimal.Decimal {
	if m.FixedFeeOverride != nil {
		return *m.FixedFeeOverride
	}
	if price.LessThan(m.LowPriceThreshold) {
		return price.Div(two)
	}
	fee, _ := LookupTier(m.Tiers, price)
	return fee
}

func (m TieredFeeModel) Breakdown(price decimal.Decimal) FeeBreakdown {
	return FeeBreakdown{
		Commission:  price.Mul(m.RatePercent).Div(hundred),
		FixedFee:    m.FixedFee(price),
		RatePercent: m.RatePercent,
	}
}

func (TieredFeeModel) closedForm() bool { return false }

func (m TieredFeeModel) String() string {
	return fmt.Sprintf("tiered(rate=%s%%, tiers=%d, low=%s)", m.RatePercent, len(m.Tiers), m.LowPriceThreshold)
}

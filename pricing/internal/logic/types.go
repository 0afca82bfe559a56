package logic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks a calculation request that must be corrected by the caller.
var ErrInvalidInput = errors.New("invalid input")

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Decimal exponent bounds for amounts accepted from callers. Arithmetic on
// operands with far-apart exponents costs a power of ten of that distance.
const (
	MinExponent = -8
	MaxExponent = 12
)

// MaxAmount is the largest magnitude accepted for any money or percent value.
var MaxAmount = decimal.New(1, MaxExponent)

// CheckAmount rejects values whose scale or magnitude is outside what a
// price calculation can meaningfully use.
func CheckAmount(name string, v decimal.Decimal) error {
	if exp := v.Exponent(); exp < MinExponent || exp > MaxExponent {
		return invalid("%s is out of range", name)
	}
	if v.Abs().GreaterThan(MaxAmount) {
		return invalid("%s exceeds %s", name, MaxAmount)
	}
	return nil
}

// CostInput is the raw per-product cost data entered by the seller.
type CostInput struct {
	ProductCost   decimal.Decimal
	ShippingTotal decimal.Decimal
	OtherCosts    decimal.Decimal
	Quantity      int
}

// CostBasis holds the per-unit costs that do not depend on the sale price.
type CostBasis struct {
	ProductCost     decimal.Decimal
	ShippingPerUnit decimal.Decimal
	OtherCosts      decimal.Decimal
}

// NewCostBasis validates raw input and spreads the shipping total over the quantity.
func NewCostBasis(in CostInput) (CostBasis, error) {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"product cost", in.ProductCost},
		{"shipping total", in.ShippingTotal},
		{"other costs", in.OtherCosts},
	} {
		if err := CheckAmount(f.name, f.v); err != nil {
			return CostBasis{}, err
		}
	}
	if !in.ProductCost.IsPositive() {
		return CostBasis{}, invalid("product cost must be greater than zero")
	}
	if in.Quantity <= 0 {
		return CostBasis{}, invalid("quantity must be greater than zero")
	}
	if in.ShippingTotal.IsNegative() {
		return CostBasis{}, invalid("shipping total cannot be negative")
	}
	if in.OtherCosts.IsNegative() {
		return CostBasis{}, invalid("other costs cannot be negative")
	}

	return CostBasis{
		ProductCost:     in.ProductCost,
		ShippingPerUnit: in.ShippingTotal.Div(decimal.NewFromInt(int64(in.Quantity))),
		OtherCosts:      in.OtherCosts,
	}, nil
}

// UnitCost is product + other costs + shipping per unit.
func (c CostBasis) UnitCost() decimal.Decimal {
	return c.ProductCost.Add(c.OtherCosts).Add(c.ShippingPerUnit)
}

type ObjectiveKind int

const (
	Profit ObjectiveKind = iota
	Margin
)

func (k ObjectiveKind) String() string {
	switch k {
	case Profit:
		return "profit"
	case Margin:
		return "margin"
	default:
		return fmt.Sprintf("ObjectiveKind(%d)", int(k))
	}
}

// Objective is the seller's pricing goal. Amount is a currency value for
// Profit and a percentage of the sale price for Margin.
type Objective struct {
	Kind   ObjectiveKind
	Amount decimal.Decimal
}

// ProfitTarget asks for an absolute profit per unit.
func ProfitTarget(amount decimal.Decimal) Objective {
	return Objective{Kind: Profit, Amount: amount}
}

// MarginTarget asks for profit as a percentage of the sale price.
func MarginTarget(percent decimal.Decimal) Objective {
	return Objective{Kind: Margin, Amount: percent}
}

func (o Objective) validate() error {
	if err := CheckAmount(o.Kind.String()+" objective", o.Amount); err != nil {
		return err
	}
	if !o.Amount.IsPositive() {
		return invalid("%s objective must be greater than zero", o.Kind)
	}
	switch o.Kind {
	case Profit:
	case Margin:
		if o.Amount.GreaterThanOrEqual(hundred) {
			return invalid("margin must be below 100%%")
		}
	default:
		return invalid("unknown objective %s", o.Kind)
	}
	return nil
}

// FeeBreakdown is the per-component accounting of the fees charged at a price.
type FeeBreakdown struct {
	ProductCost     decimal.Decimal
	ShippingPerUnit decimal.Decimal
	OtherCosts      decimal.Decimal

	Commission     decimal.Decimal
	TransactionFee decimal.Decimal
	TransportFee   decimal.Decimal
	FixedFee       decimal.Decimal
	Surcharge      decimal.Decimal

	// RatePercent is the effective percentage rate the price was solved with.
	RatePercent decimal.Decimal
}

// Total sums the fee components.
func (b FeeBreakdown) Total() decimal.Decimal {
	return b.Commission.
		Add(b.TransactionFee).
		Add(b.TransportFee).
		Add(b.FixedFee).
		Add(b.Surcharge)
}

// PriceResult is the outcome of one Solve call.
type PriceResult struct {
	SuggestedPrice decimal.Decimal
	ProfitPerUnit  decimal.Decimal
	TotalFees      decimal.Decimal
	TotalCost      decimal.Decimal
	Breakdown      FeeBreakdown

	// Iterations is zero for closed-form models.
	Iterations int
	// Converged is false when the iteration cap was hit; the price is then
	// the last estimate.
	Converged bool
}

// RoundCents rounds a currency value to two decimal places for presentation.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

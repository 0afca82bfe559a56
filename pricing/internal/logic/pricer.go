package logic

import (
	"github.com/shopspring/decimal"
)

const DefaultMaxIterations = 100

// DefaultTolerance is the convergence bound of the fixed-point search.
var DefaultTolerance = decimal.New(1, -2)

// Solver finds the minimum sale price meeting an objective under a fee model.
// A Solver holds no per-call state and may be shared between goroutines.
type Solver struct {
	Tolerance     decimal.Decimal
	MaxIterations int
}

// NewSolver returns a solver with the default tolerance and iteration cap.
func NewSolver() *Solver {
	return &Solver{Tolerance: DefaultTolerance, MaxIterations: DefaultMaxIterations}
}

var defaultSolver = NewSolver()

// Solve runs the default solver.
func Solve(cost CostInput, obj Objective, model FeeModel) (PriceResult, error) {
	return defaultSolver.Solve(cost, obj, model)
}

// Solve computes the suggested price and its fee breakdown. Invalid input is
// reported as ErrInvalidInput; an iteration that hits the cap still returns
// its last estimate with Converged set to false.
func (s *Solver) Solve(cost CostInput, obj Objective, model FeeModel) (PriceResult, error) {
	basis, err := NewCostBasis(cost)
	if err != nil {
		return PriceResult{}, err
	}
	if err := obj.validate(); err != nil {
		return PriceResult{}, err
	}
	if model == nil {
		return PriceResult{}, invalid("fee model is required")
	}

	rate := model.Rate()
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return PriceResult{}, invalid("fee rate %s%% must be within [0, 100)", rate.Mul(hundred))
	}

	// price = (C + profit + F) / (1 - r)   or   (C + F) / (1 - r - m)
	numerator := basis.UnitCost()
	denominator := one.Sub(rate)
	if obj.Kind == Profit {
		numerator = numerator.Add(obj.Amount)
	} else {
		denominator = denominator.Sub(obj.Amount.Div(hundred))
	}
	if !denominator.IsPositive() {
		return PriceResult{}, invalid("a %s%% margin is unreachable with %s%% in fees", obj.Amount, rate.Mul(hundred))
	}
	priceFor := func(fixed decimal.Decimal) decimal.Decimal {
		return numerator.Add(fixed).Div(denominator)
	}

	var (
		price      decimal.Decimal
		iterations int
		converged  = true
	)
	if model.closedForm() {
		price = priceFor(model.FixedFee(decimal.Zero))
	} else {
		price, iterations, converged = s.iterate(priceFor, model.FixedFee)
	}

	breakdown := model.Breakdown(price)
	breakdown.ProductCost = basis.ProductCost
	breakdown.ShippingPerUnit = basis.ShippingPerUnit
	breakdown.OtherCosts = basis.OtherCosts

	totalFees := breakdown.Total()
	totalCost := basis.UnitCost()

	return PriceResult{
		SuggestedPrice: price,
		ProfitPerUnit:  price.Sub(totalFees).Sub(totalCost),
		TotalFees:      totalFees,
		TotalCost:      totalCost,
		Breakdown:      breakdown,
		Iterations:     iterations,
		Converged:      converged,
	}, nil
}

// iterate substitutes the fixed fee at the current estimate until two
// successive estimates are within tolerance. The search is seeded with a
// zero fixed fee.
func (s *Solver) iterate(priceFor, fixedFee func(decimal.Decimal) decimal.Decimal) (decimal.Decimal, int, bool) {
	tolerance := s.Tolerance
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	maxIterations := s.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	price := priceFor(decimal.Zero)
	last := decimal.Zero
	iterations := 0
	for ; iterations < maxIterations; iterations++ {
		if price.Sub(last).Abs().LessThanOrEqual(tolerance) {
			return price, iterations, true
		}
		last = price
		price = priceFor(fixedFee(price))
	}
	return price, iterations, price.Sub(last).Abs().LessThanOrEqual(tolerance)
}

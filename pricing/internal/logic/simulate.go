package logic

import "github.com/shopspring/decimal"

// Simulation projects a solved price over a number of sales.
type Simulation struct {
	NumberOfSales int
	TotalRevenue  decimal.Decimal
	TotalProfit   decimal.Decimal
	TotalFees     decimal.Decimal
	TotalCost     decimal.Decimal
}

// Simulate scales a result linearly by n sales.
func Simulate(result PriceResult, n int) (Simulation, error) {
	if n <= 0 {
		return Simulation{}, invalid("number of sales must be greater than zero")
	}
	count := decimal.NewFromInt(int64(n))
	return Simulation{
		NumberOfSales: n,
		TotalRevenue:  result.SuggestedPrice.Mul(count),
		TotalProfit:   result.ProfitPerUnit.Mul(count),
		TotalFees:     result.TotalFees.Mul(count),
		TotalCost:     result.TotalCost.Mul(count),
	}, nil
}

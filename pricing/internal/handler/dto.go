package handler

import (
	"precifica/pricing/internal/logic"

	"github.com/shopspring/decimal"
)

// calculateRequest mirrors the calculator form.
type calculateRequest struct {
	Platform   string `json:"platform"`
	SellerType string `json:"sellerType"`

	ProductCost   decimal.Decimal `json:"productCost"`
	Quantity      int             `json:"quantity"`
	ShippingTotal decimal.Decimal `json:"shippingTotal"`
	OtherCosts    decimal.Decimal `json:"otherCosts"`

	ObjectiveType  string          `json:"objectiveType"`
	ObjectiveValue decimal.Decimal `json:"objectiveValue"`

	// Shopee
	FreeShipping  bool `json:"freeShipping"`
	CPFHighVolume bool `json:"cpfHighVolume"`

	// Mercado Livre
	MLPlan                  string           `json:"mlPlan"`
	CategoryID              string           `json:"categoryId"`
	CategoryClassicoPercent *decimal.Decimal `json:"categoryClassicoPercent"`
	CategoryPremiumPercent  *decimal.Decimal `json:"categoryPremiumPercent"`
	FixedFee                *decimal.Decimal `json:"fixedFee"`

	NumberOfSales int `json:"numberOfSales"`
}

func (r calculateRequest) costInput() logic.CostInput {
	return logic.CostInput{
		ProductCost:   r.ProductCost,
		ShippingTotal: r.ShippingTotal,
		OtherCosts:    r.OtherCosts,
		Quantity:      r.Quantity,
	}
}

type breakdownResponse struct {
	ProductCost     decimal.Decimal `json:"productCost"`
	ShippingPerUnit decimal.Decimal `json:"shippingPerUnit"`
	OtherCosts      decimal.Decimal `json:"otherCosts"`
	Commission      decimal.Decimal `json:"commission"`
	TransactionFee  decimal.Decimal `json:"transactionFee"`
	TransportFee    decimal.Decimal `json:"transportFee"`
	FixedFee        decimal.Decimal `json:"fixedFee"`
	Surcharge       decimal.Decimal `json:"surcharge"`
	RatePercent     decimal.Decimal `json:"ratePercent"`
}

type resultResponse struct {
	SuggestedPrice decimal.Decimal     `json:"suggestedPrice"`
	ProfitPerSale  decimal.Decimal     `json:"profitPerSale"`
	TotalFees      decimal.Decimal     `json:"totalFees"`
	TotalCost      decimal.Decimal     `json:"totalCost"`
	Breakdown      breakdownResponse   `json:"breakdown"`
	Iterations     int                 `json:"iterations"`
	Converged      bool                `json:"converged"`
	Warnings       []string            `json:"warnings,omitempty"`
	Simulation     *simulationResponse `json:"simulation,omitempty"`
}

type simulationResponse struct {
	NumberOfSales int             `json:"numberOfSales"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalProfit   decimal.Decimal `json:"totalProfit"`
	TotalFees     decimal.Decimal `json:"totalFees"`
	TotalCost     decimal.Decimal `json:"totalCost"`
}

// newResultResponse rounds every currency value to cents. The solver keeps
// full precision; rounding happens only here.
func newResultResponse(res logic.PriceResult) resultResponse {
	b := res.Breakdown
	return resultResponse{
		SuggestedPrice: logic.RoundCents(res.SuggestedPrice),
		ProfitPerSale:  logic.RoundCents(res.ProfitPerUnit),
		TotalFees:      logic.RoundCents(res.TotalFees),
		TotalCost:      logic.RoundCents(res.TotalCost),
		Breakdown: breakdownResponse{
			ProductCost:     logic.RoundCents(b.ProductCost),
			ShippingPerUnit: logic.RoundCents(b.ShippingPerUnit),
			OtherCosts:      logic.RoundCents(b.OtherCosts),
			Commission:      logic.RoundCents(b.Commission),
			TransactionFee:  logic.RoundCents(b.TransactionFee),
			TransportFee:    logic.RoundCents(b.TransportFee),
			FixedFee:        logic.RoundCents(b.FixedFee),
			Surcharge:       logic.RoundCents(b.Surcharge),
			RatePercent:     b.RatePercent,
		},
		Iterations: res.Iterations,
		Converged:  res.Converged,
	}
}

func newSimulationResponse(sim logic.Simulation) *simulationResponse {
	return &simulationResponse{
		NumberOfSales: sim.NumberOfSales,
		TotalRevenue:  logic.RoundCents(sim.TotalRevenue),
		TotalProfit:   logic.RoundCents(sim.TotalProfit),
		TotalFees:     logic.RoundCents(sim.TotalFees),
		TotalCost:     logic.RoundCents(sim.TotalCost),
	}
}

type simulateRequest struct {
	Result        resultResponse `json:"result"`
	NumberOfSales int            `json:"numberOfSales"`
}

func (r simulateRequest) priceResult() (logic.PriceResult, error) {
	res := logic.PriceResult{
		SuggestedPrice: r.Result.SuggestedPrice,
		ProfitPerUnit:  r.Result.ProfitPerSale,
		TotalFees:      r.Result.TotalFees,
		TotalCost:      r.Result.TotalCost,
	}
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"suggestedPrice", res.SuggestedPrice},
		{"profitPerSale", res.ProfitPerUnit},
		{"totalFees", res.TotalFees},
		{"totalCost", res.TotalCost},
	} {
		if err := logic.CheckAmount(f.name, f.v); err != nil {
			return logic.PriceResult{}, err
		}
	}
	return res, nil
}

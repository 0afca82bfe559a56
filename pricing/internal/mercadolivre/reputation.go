package mercadolivre

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ReputationInfo describes a seller reputation level and the shipping
// discount it earns.
type ReputationInfo struct {
	Label       string          `json:"label"`
	ColorKey    string          `json:"color_key"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

var reputations = map[string]ReputationInfo{
	"5_green":       {Label: "Verde (Excelente)", ColorKey: "green", DiscountPct: decimal.RequireFromString("0.6")},
	"4_light_green": {Label: "Verde-claro (Bom)", ColorKey: "light_green", DiscountPct: decimal.RequireFromString("0.5")},
	"3_yellow":      {Label: "Amarelo (Regular)", ColorKey: "yellow", DiscountPct: decimal.RequireFromString("0.4")},
	"2_orange":      {Label: "Laranja (Atenção)", ColorKey: "orange", DiscountPct: decimal.RequireFromString("0.3")},
	"1_red":         {Label: "Vermelho (Baixo)", ColorKey: "red", DiscountPct: decimal.Zero},

	// power_seller_status (MercadoLíder)
	"gold":     {Label: "Ouro (MercadoLíder)", ColorKey: "gold", DiscountPct: decimal.RequireFromString("0.6")},
	"platinum": {Label: "Platina (MercadoLíder)", ColorKey: "platinum", DiscountPct: decimal.RequireFromString("0.65")},
	"silver":   {Label: "Prata (MercadoLíder)", ColorKey: "silver", DiscountPct: decimal.RequireFromString("0.55")},
}

var unknownReputation = ReputationInfo{Label: "Não identificada", ColorKey: "unknown", DiscountPct: decimal.Zero}

// Reputation maps a level id or power seller status to its description.
func Reputation(levelID string) ReputationInfo {
	if info, ok := reputations[strings.ToLower(strings.TrimSpace(levelID))]; ok {
		return info
	}
	return unknownReputation
}

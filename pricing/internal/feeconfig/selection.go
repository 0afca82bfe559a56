package feeconfig

import (
	"fmt"
	"strings"

	"precifica/pricing/internal/logic"

	"github.com/shopspring/decimal"
)

type Platform string

const (
	Shopee       Platform = "Shopee"
	MercadoLivre Platform = "MercadoLivre"
)

type SellerType string

const (
	CPF  SellerType = "CPF"
	CNPJ SellerType = "CNPJ"
)

type Plan string

const (
	Classico Plan = "classico"
	Premium  Plan = "premium"
)

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer(" ", "", "_", "", "-", "", "á", "a")
	return r.Replace(s)
}

// ParsePlatform accepts "Shopee", "MercadoLivre", "mercado_livre" and "ml".
func ParsePlatform(s string) (Platform, error) {
	switch normalize(s) {
	case "shopee":
		return Shopee, nil
	case "mercadolivre", "mercadolibre", "ml":
		return MercadoLivre, nil
	}
	return "", fmt.Errorf("%w: unknown platform %q", logic.ErrInvalidInput, s)
}

// ParseSellerType defaults to CNPJ when s is empty.
func ParseSellerType(s string) (SellerType, error) {
	switch normalize(s) {
	case "cpf":
		return CPF, nil
	case "cnpj", "":
		return CNPJ, nil
	}
	return "", fmt.Errorf("%w: unknown seller type %q", logic.ErrInvalidInput, s)
}

// ParsePlan defaults to classico when s is empty.
func ParsePlan(s string) (Plan, error) {
	switch normalize(s) {
	case "classico", "classic", "goldpro", "":
		return Classico, nil
	case "premium", "goldspecial":
		return Premium, nil
	}
	return "", fmt.Errorf("%w: unknown listing plan %q", logic.ErrInvalidInput, s)
}

// ParseObjective maps "lucro"/"profit" and "margem"/"margin" to an objective.
func ParseObjective(kind string, value decimal.Decimal) (logic.Objective, error) {
	switch normalize(kind) {
	case "lucro", "profit":
		return logic.ProfitTarget(value), nil
	case "margem", "margin":
		return logic.MarginTarget(value), nil
	}
	return logic.Objective{}, fmt.Errorf("%w: unknown objective %q", logic.ErrInvalidInput, kind)
}

// Selection is the seller-specific part of a calculation request.
type Selection struct {
	Platform      Platform
	SellerType    SellerType
	FreeShipping  bool
	CPFHighVolume bool
	Plan          Plan

	// SaleFeePercent and FixedFee come from a category fee lookup and
	// replace the configured values when set.
	SaleFeePercent *decimal.Decimal
	FixedFee       *decimal.Decimal
}

// Model resolves the fee model for a selection.
func (c Config) Model(sel Selection) (logic.FeeModel, error) {
	switch sel.Platform {
	case Shopee:
		return c.shopeeModel(sel), nil
	case MercadoLivre:
		return c.mercadoLivreModel(sel)
	}
	return nil, fmt.Errorf("%w: unknown platform %q", logic.ErrInvalidInput, sel.Platform)
}

func (c Config) shopeeModel(sel Selection) logic.PercentFeeModel {
	cfg := c.Shopee

	transport := decimal.Zero
	if sel.FreeShipping {
		transport = cfg.TransportFeePercent
	}
	transaction := decimal.Zero
	if sel.CPFHighVolume {
		transaction = cfg.TransactionFeePercent
	}

	fixed := cfg.FixedFeeDefault
	surcharge := decimal.Zero
	if sel.SellerType == CPF {
		fixed = cfg.FixedFeeCPF
		if sel.CPFHighVolume {
			surcharge = cfg.CPFHighVolumeFixedFeeExtra
		}
	}

	return logic.NewPercentFeeModel(cfg.CommissionPercent, transaction, transport, fixed, surcharge)
}

func (c Config) mercadoLivreModel(sel Selection) (logic.TieredFeeModel, error) {
	cfg := c.MercadoLivre

	rate := cfg.DefaultCategoryPercentClassico
	if sel.Plan == Premium {
		rate = cfg.DefaultCategoryPercentPremium
	}
	if sel.SaleFeePercent != nil {
		if err := logic.CheckAmount("sale fee percent", *sel.SaleFeePercent); err != nil {
			return logic.TieredFeeModel{}, err
		}
		rate = *sel.SaleFeePercent
	}
	if sel.FixedFee != nil {
		if err := logic.CheckAmount("fixed fee", *sel.FixedFee); err != nil {
			return logic.TieredFeeModel{}, err
		}
		if sel.FixedFee.IsNegative() {
			return logic.TieredFeeModel{}, fmt.Errorf("%w: fixed fee cannot be negative", logic.ErrInvalidInput)
		}
	}

	return logic.TieredFeeModel{
		RatePercent:       rate,
		Tiers:             cfg.FixedFeeTable,
		LowPriceThreshold: cfg.LowPriceThreshold,
		FixedFeeOverride:  sel.FixedFee,
	}, nil
}

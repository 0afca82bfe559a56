// Package feeconfig holds marketplace fee schedules as plain data and turns a
// seller's selection into a solver fee model.
package feeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"precifica/pricing/internal/logic"

	"github.com/shopspring/decimal"
)

type ShopeeConfig struct {
	CommissionPercent          decimal.Decimal `json:"commissionPercent"`
	TransactionFeePercent      decimal.Decimal `json:"transactionFeePercent"`
	TransportFeePercent        decimal.Decimal `json:"transportFeePercent"`
	FixedFeeDefault            decimal.Decimal `json:"fixedFeeDefault"`
	FixedFeeCPF                decimal.Decimal `json:"fixedFeeCPF"`
	CPFHighVolumeFixedFeeExtra decimal.Decimal `json:"cpfHighVolumeFixedFeeExtra"`
}

type MercadoLivreConfig struct {
	FixedFeeTable                  []logic.FeeTier `json:"fixedFeeTable"`
	LowPriceThreshold              decimal.Decimal `json:"lowPriceThreshold"`
	DefaultCategoryPercentClassico decimal.Decimal `json:"defaultCategoryPercentClassico"`
	DefaultCategoryPercentPremium  decimal.Decimal `json:"defaultCategoryPercentPremium"`
}

type SolverConfig struct {
	Tolerance     decimal.Decimal `json:"tolerance"`
	MaxIterations int             `json:"maxIterations"`
}

// Config is the complete fee configuration used for one calculation.
type Config struct {
	Shopee       ShopeeConfig       `json:"shopee"`
	MercadoLivre MercadoLivreConfig `json:"mercadoLivre"`
	Solver       SolverConfig       `json:"solver"`
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bound(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

// Default returns the built-in fee schedule. Each call returns a fresh copy.
func Default() Config {
	return Config{
		Shopee: ShopeeConfig{
			CommissionPercent:          dec("12"),
			TransactionFeePercent:      dec("2"),
			TransportFeePercent:        dec("6"),
			FixedFeeDefault:            dec("4"),
			FixedFeeCPF:                dec("7"),
			CPFHighVolumeFixedFeeExtra: decimal.Zero,
		},
		MercadoLivre: MercadoLivreConfig{
			FixedFeeTable: []logic.FeeTier{
				{Min: dec("0"), Max: bound("12.50"), Fee: decimal.Zero}, // half the price, see LowPriceThreshold
				{Min: dec("12.50"), Max: bound("29"), Fee: dec("6.25")},
				{Min: dec("29"), Max: bound("50"), Fee: dec("6.50")},
				{Min: dec("50"), Max: bound("79"), Fee: dec("6.75")},
				{Min: dec("79"), Fee: decimal.Zero},
			},
			LowPriceThreshold:              dec("12.50"),
			DefaultCategoryPercentClassico: dec("12"),
			DefaultCategoryPercentPremium:  dec("17"),
		},
		Solver: SolverConfig{
			Tolerance:     logic.DefaultTolerance,
			MaxIterations: logic.DefaultMaxIterations,
		},
	}
}

// Validate rejects configurations the solver cannot work with.
func (c Config) Validate() error {
	var errs []error

	percents := map[string]decimal.Decimal{
		"shopee.commissionPercent":                    c.Shopee.CommissionPercent,
		"shopee.transactionFeePercent":                c.Shopee.TransactionFeePercent,
		"shopee.transportFeePercent":                  c.Shopee.TransportFeePercent,
		"mercadoLivre.defaultCategoryPercentClassico": c.MercadoLivre.DefaultCategoryPercentClassico,
		"mercadoLivre.defaultCategoryPercentPremium":  c.MercadoLivre.DefaultCategoryPercentPremium,
	}
	for name, v := range percents {
		if err := logic.CheckAmount(name, v); err != nil {
			errs = append(errs, err)
			continue
		}
		if v.IsNegative() || v.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			errs = append(errs, fmt.Errorf("%s must be within [0, 100), got %s", name, v))
		}
	}

	amounts := map[string]decimal.Decimal{
		"shopee.fixedFeeDefault":            c.Shopee.FixedFeeDefault,
		"shopee.fixedFeeCPF":                c.Shopee.FixedFeeCPF,
		"shopee.cpfHighVolumeFixedFeeExtra": c.Shopee.CPFHighVolumeFixedFeeExtra,
		"mercadoLivre.lowPriceThreshold":    c.MercadoLivre.LowPriceThreshold,
	}
	for name, v := range amounts {
		if err := logic.CheckAmount(name, v); err != nil {
			errs = append(errs, err)
			continue
		}
		if v.IsNegative() {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %s", name, v))
		}
	}

	if err := logic.ValidateTiers(c.MercadoLivre.FixedFeeTable); err != nil {
		errs = append(errs, fmt.Errorf("mercadoLivre.fixedFeeTable: %w", err))
	}
	if c.Solver.MaxIterations < 0 || c.Solver.MaxIterations > maxSolverIterations {
		errs = append(errs, fmt.Errorf("solver.maxIterations must be within [0, %d]", maxSolverIterations))
	}
	if err := logic.CheckAmount("solver.tolerance", c.Solver.Tolerance); err != nil {
		errs = append(errs, err)
	} else if c.Solver.Tolerance.IsNegative() {
		errs = append(errs, fmt.Errorf("solver.tolerance cannot be negative"))
	}

	return errors.Join(errs...)
}

const maxSolverIterations = 10000

// NewSolver builds a solver from the configured tolerance and iteration cap.
func (c Config) NewSolver() *logic.Solver {
	s := logic.NewSolver()
	if c.Solver.Tolerance.IsPositive() {
		s.Tolerance = c.Solver.Tolerance
	}
	if c.Solver.MaxIterations > 0 {
		s.MaxIterations = c.Solver.MaxIterations
	}
	return s
}

// rawConfig mirrors Config with every field optional so that documents saved
// by older versions can be upgraded.
type rawConfig struct {
	Shopee *struct {
		CommissionPercent          *decimal.Decimal `json:"commissionPercent"`
		TransactionFeePercent      *decimal.Decimal `json:"transactionFeePercent"`
		TransportFeePercent        *decimal.Decimal `json:"transportFeePercent"`
		FixedFeeDefault            *decimal.Decimal `json:"fixedFeeDefault"`
		FixedFeeCPF                *decimal.Decimal `json:"fixedFeeCPF"`
		CPFHighVolumeFixedFeeExtra *decimal.Decimal `json:"cpfHighVolumeFixedFeeExtra"`
	} `json:"shopee"`
	MercadoLivre *struct {
		FixedFeeTable                  []logic.FeeTier  `json:"fixedFeeTable"`
		LowPriceThreshold              *decimal.Decimal `json:"lowPriceThreshold"`
		DefaultCategoryPercentClassico *decimal.Decimal `json:"defaultCategoryPercentClassico"`
		DefaultCategoryPercentPremium  *decimal.Decimal `json:"defaultCategoryPercentPremium"`
		// legacy single rate, split into classico/premium
		DefaultCategoryPercent *decimal.Decimal `json:"defaultCategoryPercent"`
	} `json:"mercadoLivre"`
	Solver *struct {
		Tolerance     *decimal.Decimal `json:"tolerance"`
		MaxIterations *int             `json:"maxIterations"`
	} `json:"solver"`
}

func pick(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

// Decode reads a JSON configuration. Missing fields fall back to Default and
// legacy fields are migrated. The result is validated.
func Decode(r io.Reader) (Config, error) {
	var raw rawConfig
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode fee config: %w", err)
	}

	cfg := Default()
	if s := raw.Shopee; s != nil {
		pick(&cfg.Shopee.CommissionPercent, s.CommissionPercent)
		pick(&cfg.Shopee.TransactionFeePercent, s.TransactionFeePercent)
		pick(&cfg.Shopee.TransportFeePercent, s.TransportFeePercent)
		pick(&cfg.Shopee.FixedFeeDefault, s.FixedFeeDefault)
		pick(&cfg.Shopee.FixedFeeCPF, s.FixedFeeCPF)
		pick(&cfg.Shopee.CPFHighVolumeFixedFeeExtra, s.CPFHighVolumeFixedFeeExtra)
	}
	if ml := raw.MercadoLivre; ml != nil {
		if len(ml.FixedFeeTable) > 0 {
			cfg.MercadoLivre.FixedFeeTable = ml.FixedFeeTable
		}
		pick(&cfg.MercadoLivre.LowPriceThreshold, ml.LowPriceThreshold)

		// zero means unset for the legacy documents
		if ml.DefaultCategoryPercent != nil && ml.DefaultCategoryPercent.IsPositive() {
			cfg.MercadoLivre.DefaultCategoryPercentClassico = *ml.DefaultCategoryPercent
			cfg.MercadoLivre.DefaultCategoryPercentPremium = *ml.DefaultCategoryPercent
		}
		if ml.DefaultCategoryPercentClassico != nil && ml.DefaultCategoryPercentClassico.IsPositive() {
			cfg.MercadoLivre.DefaultCategoryPercentClassico = *ml.DefaultCategoryPercentClassico
		}
		if ml.DefaultCategoryPercentPremium != nil && ml.DefaultCategoryPercentPremium.IsPositive() {
			cfg.MercadoLivre.DefaultCategoryPercentPremium = *ml.DefaultCategoryPercentPremium
		}
	}
	if s := raw.Solver; s != nil {
		pick(&cfg.Solver.Tolerance, s.Tolerance)
		if s.MaxIterations != nil {
			cfg.Solver.MaxIterations = *s.MaxIterations
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid fee config: %w", err)
	}
	return cfg, nil
}

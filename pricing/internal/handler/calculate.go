package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"precifica/pricing/internal/auth"
	"precifica/pricing/internal/feeconfig"
	"precifica/pricing/internal/logic"
	"precifica/pricing/internal/mercadolivre"
	"precifica/pricing/internal/mq"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FeeSource looks up Mercado Livre category rates.
type FeeSource interface {
	Categories(ctx context.Context) ([]mercadolivre.Category, error)
	CategoryFees(ctx context.Context, categoryID string) (mercadolivre.CategoryFees, error)
}

// MetricPublisher receives one metric per successful calculation.
type MetricPublisher interface {
	Publish(m mq.CalculationMetric) error
}

type CalculatorHandler struct {
	Configs   ConfigResolver
	Fees      FeeSource
	Analytics MetricPublisher
	log       *zap.Logger
}

// Calculate solves the suggested price for the caller's fee configuration.
func (h *CalculatorHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cfg, err := resolveConfig(ctx, h.Configs, auth.SessionID(ctx))
	if err != nil {
		h.log.Error("failed to resolve fee config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load fee configuration")
		return
	}

	sel, obj, warnings, err := h.selection(ctx, cfg, req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	model, err := cfg.Model(sel)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	result, err := cfg.NewSolver().Solve(req.costInput(), obj, model)
	if err != nil {
		h.log.Debug("calculation rejected", zap.String("platform", string(sel.Platform)), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !result.Converged {
		warnings = append(warnings, fmt.Sprintf(
			"price did not settle within %d iterations; showing the last estimate", result.Iterations))
	}

	resp := newResultResponse(result)
	resp.Warnings = warnings
	if req.NumberOfSales > 0 {
		sim, err := logic.Simulate(result, req.NumberOfSales)
		if err == nil {
			resp.Simulation = newSimulationResponse(sim)
		}
	}

	h.publish(sel.Platform, obj, result)
	writeJSON(w, http.StatusOK, resp)
}

// selection turns the request into a fee selection and objective, filling a
// Mercado Livre plan rate from the category lookup when none was sent.
func (h *CalculatorHandler) selection(ctx context.Context, cfg feeconfig.Config, req calculateRequest) (feeconfig.Selection, logic.Objective, []string, error) {
	var warnings []string

	platform, err := feeconfig.ParsePlatform(req.Platform)
	if err != nil {
		return feeconfig.Selection{}, logic.Objective{}, nil, err
	}
	sellerType, err := feeconfig.ParseSellerType(req.SellerType)
	if err != nil {
		return feeconfig.Selection{}, logic.Objective{}, nil, err
	}
	plan, err := feeconfig.ParsePlan(req.MLPlan)
	if err != nil {
		return feeconfig.Selection{}, logic.Objective{}, nil, err
	}
	obj, err := feeconfig.ParseObjective(req.ObjectiveType, req.ObjectiveValue)
	if err != nil {
		return feeconfig.Selection{}, logic.Objective{}, nil, err
	}

	sel := feeconfig.Selection{
		Platform:      platform,
		SellerType:    sellerType,
		FreeShipping:  req.FreeShipping,
		CPFHighVolume: req.CPFHighVolume,
		Plan:          plan,
	}
	if platform != feeconfig.MercadoLivre {
		return sel, obj, warnings, nil
	}

	sel.FixedFee = req.FixedFee
	classico, premium := req.CategoryClassicoPercent, req.CategoryPremiumPercent
	planPercent := func() *decimal.Decimal {
		if plan == feeconfig.Premium {
			return premium
		}
		return classico
	}

	if planPercent() == nil && req.CategoryID != "" && h.Fees != nil {
		fees, err := h.Fees.CategoryFees(ctx, req.CategoryID)
		if err != nil {
			h.log.Warn("category fee lookup failed", zap.String("category_id", req.CategoryID), zap.Error(err))
			warnings = append(warnings, "category fee lookup failed; using the configured default rate")
		} else {
			if classico == nil {
				classico = fees.Classico
			}
			if premium == nil {
				premium = fees.Premium
			}
			if planPercent() == nil {
				warnings = append(warnings, fmt.Sprintf("no %s rate published for category %s; using the configured default rate", plan, req.CategoryID))
			}
		}
	}
	sel.SaleFeePercent = planPercent()
	return sel, obj, warnings, nil
}

func (h *CalculatorHandler) publish(platform feeconfig.Platform, obj logic.Objective, result logic.PriceResult) {
	if h.Analytics == nil {
		return
	}
	metric := mq.CalculationMetric{
		Platform:       string(platform),
		Objective:      obj.Kind.String(),
		SuggestedPrice: logic.RoundCents(result.SuggestedPrice).InexactFloat64(),
		Iterations:     int32(result.Iterations),
		Converged:      result.Converged,
		Timestamp:      time.Now(),
	}
	// Publish analytics asynchronously.
	go func() {
		if err := h.Analytics.Publish(metric); err != nil {
			h.log.Warn("analytics publish failed", zap.Error(err))
		}
	}()
}

// Simulate projects a previously calculated result over numberOfSales.
func (h *CalculatorHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := req.priceResult()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	sim, err := logic.Simulate(res, req.NumberOfSales)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSimulationResponse(sim))
}

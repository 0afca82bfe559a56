package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"precifica/pricing/internal/feeconfig"
	"precifica/pricing/internal/logging"
	"precifica/pricing/internal/logic"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type calcOptions struct {
	root *rootOptions

	platform      string
	sellerType    string
	cost          string
	quantity      int
	shipping      string
	other         string
	objective     string
	value         string
	freeShipping  bool
	cpfHighVolume bool
	plan          string
	saleFee       string
	fixedFee      string
	sales         int
	format        string
}

func newCalcCmd(root *rootOptions) *cobra.Command {
	opts := &calcOptions{root: root}

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate a suggested sale price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.platform, "platform", "p", "shopee", "marketplace (shopee, mercadolivre/ml)")
	f.StringVar(&opts.sellerType, "seller-type", "CNPJ", "seller type (CPF, CNPJ)")
	f.StringVarP(&opts.cost, "cost", "c", "", "product cost per unit")
	f.IntVarP(&opts.quantity, "quantity", "q", 1, "units the shipping total is spread over")
	f.StringVar(&opts.shipping, "shipping", "0", "shipping total for the batch")
	f.StringVar(&opts.other, "other", "0", "other costs per unit")
	f.StringVarP(&opts.objective, "objective", "o", "lucro", "objective (lucro/profit, margem/margin)")
	f.StringVar(&opts.value, "value", "", "profit amount or margin percent")
	f.BoolVar(&opts.freeShipping, "free-shipping", false, "Shopee free shipping program")
	f.BoolVar(&opts.cpfHighVolume, "cpf-high-volume", false, "Shopee CPF seller with high order volume")
	f.StringVar(&opts.plan, "plan", "classico", "Mercado Livre plan (classico, premium)")
	f.StringVar(&opts.saleFee, "sale-fee", "", "Mercado Livre category sale fee percent")
	f.StringVar(&opts.fixedFee, "fixed-fee", "", "Mercado Livre fixed fee override")
	f.IntVarP(&opts.sales, "sales", "n", 0, "also project the result over N sales")
	f.StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	_ = cmd.MarkFlagRequired("cost")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: --%s %q is not a number", logic.ErrInvalidInput, name, s)
	}
	return v, nil
}

func parseOptionalDecimal(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseDecimal(name, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (o *calcOptions) request() (logic.CostInput, logic.Objective, feeconfig.Selection, error) {
	var (
		in  logic.CostInput
		sel feeconfig.Selection
		err error
	)

	if in.ProductCost, err = parseDecimal("cost", o.cost); err != nil {
		return in, logic.Objective{}, sel, err
	}
	if in.ShippingTotal, err = parseDecimal("shipping", o.shipping); err != nil {
		return in, logic.Objective{}, sel, err
	}
	if in.OtherCosts, err = parseDecimal("other", o.other); err != nil {
		return in, logic.Objective{}, sel, err
	}
	in.Quantity = o.quantity

	value, err := parseDecimal("value", o.value)
	if err != nil {
		return in, logic.Objective{}, sel, err
	}
	obj, err := feeconfig.ParseObjective(o.objective, value)
	if err != nil {
		return in, logic.Objective{}, sel, err
	}

	if sel.Platform, err = feeconfig.ParsePlatform(o.platform); err != nil {
		return in, obj, sel, err
	}
	if sel.SellerType, err = feeconfig.ParseSellerType(o.sellerType); err != nil {
		return in, obj, sel, err
	}
	if sel.Plan, err = feeconfig.ParsePlan(o.plan); err != nil {
		return in, obj, sel, err
	}
	sel.FreeShipping = o.freeShipping
	sel.CPFHighVolume = o.cpfHighVolume
	if sel.SaleFeePercent, err = parseOptionalDecimal("sale-fee", o.saleFee); err != nil {
		return in, obj, sel, err
	}
	if sel.FixedFee, err = parseOptionalDecimal("fixed-fee", o.fixedFee); err != nil {
		return in, obj, sel, err
	}
	return in, obj, sel, nil
}

func runCalc(out io.Writer, o *calcOptions) error {
	cfg, err := loadConfig(o.root.configFile)
	if err != nil {
		return err
	}
	in, obj, sel, err := o.request()
	if err != nil {
		return err
	}
	model, err := cfg.Model(sel)
	if err != nil {
		return err
	}

	res, err := cfg.NewSolver().Solve(in, obj, model)
	if err != nil {
		return err
	}
	logging.Logger.Debug("solved",
		zap.String("platform", string(sel.Platform)),
		zap.Stringer("objective", obj.Kind),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged))

	var sim *logic.Simulation
	if o.sales > 0 {
		s, err := logic.Simulate(res, o.sales)
		if err != nil {
			return err
		}
		sim = &s
	}

	switch o.format {
	case "json":
		return writeCalcJSON(out, res, sim)
	case "text", "":
		writeCalcText(out, res, sim)
		return nil
	}
	return fmt.Errorf("unknown format %q", o.format)
}

type calcOutput struct {
	SuggestedPrice string            `json:"suggestedPrice"`
	ProfitPerSale  string            `json:"profitPerSale"`
	TotalFees      string            `json:"totalFees"`
	TotalCost      string            `json:"totalCost"`
	Breakdown      map[string]string `json:"breakdown"`
	Iterations     int               `json:"iterations"`
	Converged      bool              `json:"converged"`
	Simulation     map[string]string `json:"simulation,omitempty"`
}

func cents(d decimal.Decimal) string {
	return logic.RoundCents(d).StringFixed(2)
}

func writeCalcJSON(out io.Writer, res logic.PriceResult, sim *logic.Simulation) error {
	b := res.Breakdown
	doc := calcOutput{
		SuggestedPrice: cents(res.SuggestedPrice),
		ProfitPerSale:  cents(res.ProfitPerUnit),
		TotalFees:      cents(res.TotalFees),
		TotalCost:      cents(res.TotalCost),
		Breakdown: map[string]string{
			"productCost":     cents(b.ProductCost),
			"shippingPerUnit": cents(b.ShippingPerUnit),
			"otherCosts":      cents(b.OtherCosts),
			"commission":      cents(b.Commission),
			"transactionFee":  cents(b.TransactionFee),
			"transportFee":    cents(b.TransportFee),
			"fixedFee":        cents(b.FixedFee),
			"surcharge":       cents(b.Surcharge),
			"ratePercent":     b.RatePercent.String(),
		},
		Iterations: res.Iterations,
		Converged:  res.Converged,
	}
	if sim != nil {
		doc.Simulation = map[string]string{
			"numberOfSales": fmt.Sprint(sim.NumberOfSales),
			"totalRevenue":  cents(sim.TotalRevenue),
			"totalProfit":   cents(sim.TotalProfit),
			"totalFees":     cents(sim.TotalFees),
			"totalCost":     cents(sim.TotalCost),
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeCalcText(out io.Writer, res logic.PriceResult, sim *logic.Simulation) {
	b := res.Breakdown
	fmt.Fprintf(out, "Suggested price:   R$ %s\n", cents(res.SuggestedPrice))
	fmt.Fprintf(out, "Profit per sale:   R$ %s\n", cents(res.ProfitPerUnit))
	fmt.Fprintf(out, "Total fees:        R$ %s\n", cents(res.TotalFees))
	fmt.Fprintf(out, "Total cost:        R$ %s\n", cents(res.TotalCost))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Commission (%s%%)  R$ %s\n", b.RatePercent, cents(b.Commission.Add(b.TransactionFee).Add(b.TransportFee)))
	fmt.Fprintf(out, "  Fixed fee          R$ %s\n", cents(b.FixedFee.Add(b.Surcharge)))
	if res.Iterations > 0 {
		fmt.Fprintf(out, "\nSolved in %d iterations\n", res.Iterations)
	}
	if !res.Converged {
		fmt.Fprintln(out, "Warning: price did not settle; showing the last estimate")
	}
	if sim != nil {
		fmt.Fprintf(out, "\nOver %d sales: revenue R$ %s, profit R$ %s, fees R$ %s\n",
			sim.NumberOfSales, cents(sim.TotalRevenue), cents(sim.TotalProfit), cents(sim.TotalFees))
	}
}

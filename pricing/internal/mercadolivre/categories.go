package mercadolivre

import (
	"context"
	"errors"
	"net/url"

	"precifica/pricing/internal/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Listing type ids of the two selling plans.
const (
	ListingClassico = "gold_pro"
	ListingPremium  = "gold_special"
)

// ErrMissingCategory is returned when no category id was given.
var ErrMissingCategory = errors.New("mercadolivre: category_id is required")

var hundred = decimal.NewFromInt(100)

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategoryFees are the sale fee percentages of a category. A nil plan rate
// means the API did not report one.
type CategoryFees struct {
	CategoryID string           `json:"category_id"`
	Classico   *decimal.Decimal `json:"classico"`
	Premium    *decimal.Decimal `json:"premium"`
}

// Percent returns the rate for a listing type id.
func (f CategoryFees) Percent(listingTypeID string) *decimal.Decimal {
	switch listingTypeID {
	case ListingClassico:
		return f.Classico
	case ListingPremium:
		return f.Premium
	}
	return nil
}

type saleFee struct {
	Ratio      *decimal.Decimal `json:"ratio"`
	Percentage *decimal.Decimal `json:"percentage"`
}

func (f saleFee) percent() *decimal.Decimal {
	switch {
	case f.Ratio != nil:
		p := f.Ratio.Mul(hundred).Round(4)
		return &p
	case f.Percentage != nil:
		p := f.Percentage.Round(4)
		return &p
	}
	return nil
}

type categoryResponse struct {
	Settings struct {
		ListingTypes []struct {
			ID       string    `json:"id"`
			SaleFees []saleFee `json:"sale_fees"`
		} `json:"listing_types"`
	} `json:"settings"`
}

type listingPriceResponse struct {
	SaleFee        []saleFee `json:"sale_fee"`
	SaleFeeDetails *struct {
		PercentageFee *decimal.Decimal `json:"percentage_fee"`
	} `json:"sale_fee_details"`
}

func (r listingPriceResponse) percent() *decimal.Decimal {
	if len(r.SaleFee) > 0 && r.SaleFee[0].Ratio != nil {
		return r.SaleFee[0].percent()
	}
	if r.SaleFeeDetails != nil && r.SaleFeeDetails.PercentageFee != nil {
		p := *r.SaleFeeDetails.PercentageFee
		return &p
	}
	return nil
}

// Categories lists the top-level categories of the site. No token needed.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.getJSON(ctx, "/sites/"+url.PathEscape(c.siteID)+"/categories", "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CategoryFees reads the clássico and premium rates from the category
// settings and falls back to the listing_prices endpoint for any plan the
// settings do not cover. Fallback failures leave the rate nil.
func (c *Client) CategoryFees(ctx context.Context, categoryID string) (CategoryFees, error) {
	if categoryID == "" {
		return CategoryFees{}, ErrMissingCategory
	}
	fees := CategoryFees{CategoryID: categoryID}

	var cat categoryResponse
	if err := c.getJSON(ctx, "/categories/"+url.PathEscape(categoryID), "", &cat); err != nil {
		return CategoryFees{}, err
	}
	for _, lt := range cat.Settings.ListingTypes {
		if len(lt.SaleFees) == 0 {
			continue
		}
		switch lt.ID {
		case ListingClassico:
			fees.Classico = lt.SaleFees[0].percent()
		case ListingPremium:
			fees.Premium = lt.SaleFees[0].percent()
		}
	}
	if fees.Classico != nil && fees.Premium != nil {
		return fees, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	fallback := func(listingTypeID string, dst **decimal.Decimal) {
		if *dst != nil {
			return
		}
		g.Go(func() error {
			p, err := c.listingPricePercent(gctx, categoryID, listingTypeID)
			if err != nil {
				logging.Named("mercadolivre").Warn("listing_prices fallback failed",
					zap.String("category_id", categoryID),
					zap.String("listing_type_id", listingTypeID),
					zap.Error(err))
				return nil
			}
			*dst = p
			return nil
		})
	}
	fallback(ListingClassico, &fees.Classico)
	fallback(ListingPremium, &fees.Premium)
	_ = g.Wait()

	return fees, nil
}

func (c *Client) listingPricePercent(ctx context.Context, categoryID, listingTypeID string) (*decimal.Decimal, error) {
	q := url.Values{}
	q.Set("price", "100")
	q.Set("category_id", categoryID)
	q.Set("listing_type_id", listingTypeID)

	var resp listingPriceResponse
	if err := c.getJSON(ctx, "/sites/"+url.PathEscape(c.siteID)+"/listing_prices?"+q.Encode(), "", &resp); err != nil {
		return nil, err
	}
	return resp.percent(), nil
}

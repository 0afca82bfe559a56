package mercadolivre

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SellerProfile is what the calculator shows about a connected seller.
type SellerProfile struct {
	SellerID   string
	Nickname   string
	Reputation string // power_seller_status, else seller_reputation.level_id
	Origin     string // "City/State" of the default selling address
}

type meResponse struct {
	ID       json.Number `json:"id"`
	Nickname string      `json:"nickname"`
}

type userResponse struct {
	SellerReputation struct {
		LevelID           *string `json:"level_id"`
		PowerSellerStatus *string `json:"power_seller_status"`
	} `json:"seller_reputation"`
}

type address struct {
	AddressType string `json:"address_type"`
	City        struct {
		Name string `json:"name"`
	} `json:"city"`
	State struct {
		Name string `json:"name"`
	} `json:"state"`
}

// Me resolves the seller behind accessToken. Reputation and origin are
// best-effort; only the /users/me call is required to succeed.
func (c *Client) Me(ctx context.Context, accessToken string) (SellerProfile, error) {
	var me meResponse
	if err := c.getJSON(ctx, "/users/me", accessToken, &me); err != nil {
		return SellerProfile{}, err
	}
	profile := SellerProfile{SellerID: me.ID.String(), Nickname: me.Nickname}
	if profile.SellerID == "" {
		return SellerProfile{}, fmt.Errorf("mercadolivre: /users/me returned no id")
	}

	var g errgroup.Group
	g.Go(func() error {
		var user userResponse
		if err := c.getJSON(ctx, "/users/"+profile.SellerID, accessToken, &user); err != nil {
			return nil
		}
		rep := user.SellerReputation
		switch {
		case rep.PowerSellerStatus != nil && *rep.PowerSellerStatus != "":
			profile.Reputation = *rep.PowerSellerStatus
		case rep.LevelID != nil:
			profile.Reputation = *rep.LevelID
		}
		return nil
	})
	g.Go(func() error {
		var addrs []address
		if err := c.getJSON(ctx, "/users/"+profile.SellerID+"/addresses", accessToken, &addrs); err != nil {
			return nil
		}
		profile.Origin = sellingOrigin(addrs)
		return nil
	})
	_ = g.Wait()

	return profile, nil
}

func sellingOrigin(addrs []address) string {
	if len(addrs) == 0 {
		return ""
	}
	selling := addrs[0]
	for _, a := range addrs {
		if a.AddressType == "default_selling_address" {
			selling = a
			break
		}
	}
	switch {
	case selling.City.Name != "" && selling.State.Name != "":
		return selling.City.Name + "/" + selling.State.Name
	default:
		return selling.City.Name
	}
}

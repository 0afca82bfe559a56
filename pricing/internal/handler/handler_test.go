package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"precifica/pricing/internal/auth"
	"precifica/pricing/internal/cache"
	"precifica/pricing/internal/mercadolivre"
	"precifica/pricing/internal/mq"
	"precifica/pricing/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

type recordingPublisher struct {
	metrics chan mq.CalculationMetric
}

func (p *recordingPublisher) Publish(m mq.CalculationMetric) error {
	p.metrics <- m
	return nil
}

type testEnv struct {
	srv       *httptest.Server
	client    *http.Client
	sessions  *store.SessionStore
	analytics *recordingPublisher
}

const adminSecret = "let-me-in"

// newTestEnv wires the router against an in-memory database and a fake
// Mercado Livre API.
func newTestEnv(t *testing.T, mlAPI http.Handler) *testEnv {
	t.Helper()
	require.NoError(t, auth.SetJWTKey("handler-test"))
	ctx := context.Background()

	db, err := store.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(ctx, db))

	if mlAPI == nil {
		mlAPI = http.NotFoundHandler()
	}
	mlSrv := httptest.NewServer(mlAPI)
	t.Cleanup(mlSrv.Close)
	client := mercadolivre.NewClient(mercadolivre.Config{
		ClientID:     "app",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/api/ml/callback",
		AuthURL:      mlSrv.URL + "/authorization",
		BaseURL:      mlSrv.URL,
		HTTPClient:   mlSrv.Client(),
	})

	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{
		sessions:  store.NewSessionStore(db),
		analytics: &recordingPublisher{metrics: make(chan mq.CalculationMetric, 16)},
	}
	env.srv = httptest.NewServer(NewRouter(Deps{
		Configs:         store.NewConfigStore(db),
		Sessions:        env.sessions,
		ML:              client,
		Fees:            mercadolivre.NewFeeLookup(client, cache.NewMemory(time.Minute)),
		Analytics:       env.analytics,
		DB:              db,
		AdminSecretHash: string(hash),
	}))
	t.Cleanup(env.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// sessionID returns the browser session id behind the jar's cookie.
func (e *testEnv) sessionID(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(e.srv.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == auth.SessionCookie {
			claims, err := auth.ValidateToken(c.Value)
			require.NoError(t, err)
			return claims.SessionID
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateShopeeProfit(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform":       "Shopee",
		"sellerType":     "CNPJ",
		"productCost":    20,
		"quantity":       1,
		"shippingTotal":  0,
		"otherCosts":     0,
		"objectiveType":  "lucro",
		"objectiveValue": 10,
		"numberOfSales":  10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[resultResponse](t, resp)
	assert.Equal(t, "38.64", res.SuggestedPrice.StringFixed(2))
	assert.Equal(t, "4.00", res.Breakdown.FixedFee.StringFixed(2))
	assert.Equal(t, "4.64", res.Breakdown.Commission.StringFixed(2))
	assert.True(t, res.Converged)
	assert.Zero(t, res.Iterations)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.Simulation)
	assert.Equal(t, 10, res.Simulation.NumberOfSales)
	assert.Equal(t, "386.36", res.Simulation.TotalRevenue.StringFixed(2))

	select {
	case m := <-env.analytics.metrics:
		assert.Equal(t, "Shopee", m.Platform)
		assert.Equal(t, "profit", m.Objective)
		assert.InDelta(t, 38.64, m.SuggestedPrice, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no analytics metric published")
	}
}

func TestCalculateWritesJSONNumbers(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform":       "Shopee",
		"sellerType":     "CNPJ",
		"productCost":    20,
		"quantity":       1,
		"objectiveType":  "profit",
		"objectiveValue": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw := decode[map[string]any](t, resp)
	assert.Equal(t, 38.64, raw["suggestedPrice"])
	breakdown, ok := raw["breakdown"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4.0, breakdown["fixedFee"])
}

func TestCalculateMercadoLivreTiered(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform":                "MercadoLivre",
		"productCost":             5,
		"quantity":                1,
		"objectiveType":           "profit",
		"objectiveValue":          2,
		"mlPlan":                  "classico",
		"categoryClassicoPercent": 12,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[resultResponse](t, resp)
	assert.Equal(t, "15.06", res.SuggestedPrice.StringFixed(2))
	assert.Equal(t, "6.25", res.Breakdown.FixedFee.StringFixed(2))
	assert.True(t, res.Converged)
	assert.Positive(t, res.Iterations)
	assert.Nil(t, res.Simulation)
}

func TestCalculateUsesCategoryLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /categories/MLB1051", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"settings":{"listing_types":[
			{"id":"gold_pro","sale_fees":[{"ratio":0.13}]},
			{"id":"gold_special","sale_fees":[{"ratio":0.18}]}]}}`))
	})
	env := newTestEnv(t, mux)

	resp := env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform":       "MercadoLivre",
		"productCost":    100,
		"quantity":       1,
		"objectiveType":  "margem",
		"objectiveValue": 20,
		"mlPlan":         "premium",
		"categoryId":     "MLB1051",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[resultResponse](t, resp)
	assert.True(t, res.Breakdown.RatePercent.Equal(d("18")), res.Breakdown.RatePercent.String())
	// 100 / (1 - 0.18 - 0.20), above the last tier bound
	assert.Equal(t, "161.29", res.SuggestedPrice.StringFixed(2))
	assert.Empty(t, res.Warnings)
}

func TestCalculateCategoryLookupFailureWarns(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform":       "MercadoLivre",
		"productCost":    100,
		"quantity":       1,
		"objectiveType":  "profit",
		"objectiveValue": 10,
		"categoryId":     "MLB404",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[resultResponse](t, resp)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "lookup failed")
	assert.True(t, res.Breakdown.RatePercent.Equal(d("12")))
}

func TestCalculateNonConvergenceWarns(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := `{"solver":{"maxIterations":7}}`
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/config", cfg).StatusCode)

	// C+P = 63 bounces across the 79 bound of the default table.
	resp := env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform":                "MercadoLivre",
		"productCost":             53,
		"quantity":                1,
		"objectiveType":           "profit",
		"objectiveValue":          10,
		"categoryClassicoPercent": 12,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[resultResponse](t, resp)
	assert.False(t, res.Converged)
	assert.Equal(t, 7, res.Iterations)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "7 iterations")
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := map[string]any{
		"bad json":         "{",
		"unknown platform": map[string]any{"platform": "Amazon", "productCost": 10, "quantity": 1, "objectiveType": "profit", "objectiveValue": 1},
		"zero quantity":    map[string]any{"platform": "Shopee", "productCost": 10, "quantity": 0, "objectiveType": "profit", "objectiveValue": 1},
		"zero cost":        map[string]any{"platform": "Shopee", "productCost": 0, "quantity": 1, "objectiveType": "profit", "objectiveValue": 1},
		"margin too high":  map[string]any{"platform": "Shopee", "productCost": 10, "quantity": 1, "objectiveType": "margin", "objectiveValue": 95},
		"bad objective":    map[string]any{"platform": "Shopee", "productCost": 10, "quantity": 1, "objectiveType": "revenue", "objectiveValue": 1},
		"negative fixed":   map[string]any{"platform": "ml", "productCost": 10, "quantity": 1, "objectiveType": "profit", "objectiveValue": 1, "fixedFee": -1},
		"tiny other costs": `{"platform":"MercadoLivre","productCost":1,"quantity":1,"otherCosts":1e-99999999,"objectiveType":"profit","objectiveValue":1}`,
		"huge objective":   `{"platform":"Shopee","productCost":1,"quantity":1,"objectiveType":"profit","objectiveValue":1e99999999}`,
		"tiny sale fee":    `{"platform":"MercadoLivre","productCost":1,"quantity":1,"objectiveType":"profit","objectiveValue":1,"categoryClassicoPercent":1e-99999999}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/calculate", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decode[errorResponse](t, resp).Error)
		})
	}
}

func TestSimulate(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/simulate", map[string]any{
		"result": map[string]any{
			"suggestedPrice": "38.64",
			"profitPerSale":  "10",
			"totalFees":      "8.64",
			"totalCost":      "20",
		},
		"numberOfSales": 3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sim := decode[simulationResponse](t, resp)
	assert.Equal(t, "115.92", sim.TotalRevenue.StringFixed(2))
	assert.Equal(t, "30.00", sim.TotalProfit.StringFixed(2))
	assert.Equal(t, "25.92", sim.TotalFees.StringFixed(2))
	assert.Equal(t, "60.00", sim.TotalCost.StringFixed(2))

	resp = env.do(t, http.MethodPost, "/api/simulate", map[string]any{"numberOfSales": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/simulate", `{"result":{"suggestedPrice":1e-99999999},"numberOfSales":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type configDoc struct {
	Shopee struct {
		CommissionPercent decimal.Decimal `json:"commissionPercent"`
	} `json:"shopee"`
	MercadoLivre struct {
		DefaultCategoryPercentClassico decimal.Decimal `json:"defaultCategoryPercentClassico"`
		DefaultCategoryPercentPremium  decimal.Decimal `json:"defaultCategoryPercentPremium"`
	} `json:"mercadoLivre"`
}

func TestSessionConfigLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	cfg := decode[configDoc](t, env.do(t, http.MethodGet, "/api/config", nil))
	assert.True(t, cfg.Shopee.CommissionPercent.Equal(d("12")))

	// legacy single category rate is split into both plans
	resp := env.do(t, http.MethodPut, "/api/config", `{"shopee":{"commissionPercent":14},"mercadoLivre":{"defaultCategoryPercent":15}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg = decode[configDoc](t, env.do(t, http.MethodGet, "/api/config", nil))
	assert.True(t, cfg.Shopee.CommissionPercent.Equal(d("14")))
	assert.True(t, cfg.MercadoLivre.DefaultCategoryPercentClassico.Equal(d("15")))
	assert.True(t, cfg.MercadoLivre.DefaultCategoryPercentPremium.Equal(d("15")))

	// the saved config drives calculations for this session only
	res := decode[resultResponse](t, env.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"platform": "Shopee", "productCost": 20, "quantity": 1, "objectiveType": "profit", "objectiveValue": 10,
	}))
	assert.True(t, res.Breakdown.RatePercent.Equal(d("14")))

	resp = env.do(t, http.MethodPut, "/api/config", `{"shopee":{"commissionPercent":-1}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cfg = decode[configDoc](t, env.do(t, http.MethodDelete, "/api/config", nil))
	assert.True(t, cfg.Shopee.CommissionPercent.Equal(d("12")))
}

func TestAdminDefaults(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"shopee":{"commissionPercent":20}}`

	resp := env.do(t, http.MethodPut, "/api/admin/config/defaults", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/admin/config/defaults", body, "X-Admin-Secret", adminSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := decode[configDoc](t, env.do(t, http.MethodGet, "/api/config/defaults", nil))
	assert.True(t, cfg.Shopee.CommissionPercent.Equal(d("20")))

	// sessions without their own config inherit the defaults
	cfg = decode[configDoc](t, env.do(t, http.MethodGet, "/api/config", nil))
	assert.True(t, cfg.Shopee.CommissionPercent.Equal(d("20")))
}

func fakeMercadoLivre(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"access_token":"AT","refresh_token":"RT","token_type":"bearer","expires_in":21600}`))
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "RT" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"access_token":"AT2","token_type":"bearer","expires_in":21600}`))
		}
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer AT") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":777,"nickname":"LOJA"}`))
	})
	mux.HandleFunc("GET /users/777", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"seller_reputation":{"level_id":"4_light_green","power_seller_status":null}}`))
	})
	mux.HandleFunc("GET /users/777/addresses", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"address_type":"default_selling_address","city":{"name":"Curitiba"},"state":{"name":"PR"}}]`))
	})
	mux.HandleFunc("GET /sites/MLB/categories", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"MLB1051","name":"Celulares e Telefones"}]`))
	})
	return mux
}

func login(t *testing.T, env *testEnv, code string) *http.Response {
	t.Helper()
	resp := env.do(t, http.MethodGet, "/api/ml/auth", nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "S256", loc.Query().Get("code_challenge_method"))

	return env.do(t, http.MethodGet, "/api/ml/callback?code="+code+"&state="+url.QueryEscape(loc.Query().Get("state")), nil)
}

func TestMercadoLivreLoginFlow(t *testing.T) {
	env := newTestEnv(t, fakeMercadoLivre(t))

	me := decode[meResponse](t, env.do(t, http.MethodGet, "/api/ml/me", nil))
	assert.Nil(t, me.SellerID)

	resp := login(t, env, "good-code")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	sess, err := env.sessions.Get(context.Background(), env.sessionID(t))
	require.NoError(t, err)
	assert.Equal(t, "777", sess.SellerID)
	assert.Equal(t, "RT", sess.RefreshToken)

	me = decode[meResponse](t, env.do(t, http.MethodGet, "/api/ml/me", nil))
	require.NotNil(t, me.SellerID)
	assert.Equal(t, "777", *me.SellerID)
	require.NotNil(t, me.Reputation)
	assert.Equal(t, "4_light_green", *me.Reputation)
	require.NotNil(t, me.ShippingDiscount)
	assert.Equal(t, "0.5", me.ShippingDiscount.String())
	require.NotNil(t, me.Origin)
	assert.Equal(t, "Curitiba/PR", *me.Origin)

	resp = env.do(t, http.MethodPost, "/api/ml/refresh-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess, err = env.sessions.Get(context.Background(), env.sessionID(t))
	require.NoError(t, err)
	assert.Equal(t, "AT2", sess.AccessToken)
	assert.Equal(t, "RT", sess.RefreshToken, "refresh token kept when not rotated")

	resp = env.do(t, http.MethodPost, "/api/ml/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = env.sessions.Get(context.Background(), env.sessionID(t))
	assert.ErrorIs(t, err, store.ErrNotFound)

	resp = env.do(t, http.MethodPost, "/api/ml/refresh-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMercadoLivreCallbackFailures(t *testing.T) {
	env := newTestEnv(t, fakeMercadoLivre(t))

	resp := login(t, env, "bad-code")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/?ml_error=exchange", resp.Header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/api/ml/callback?code=good-code&state=forged", nil)
	assert.Equal(t, "/?ml_error=state", resp.Header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/api/ml/callback?error=access_denied", nil)
	assert.Equal(t, "/?ml_error=denied", resp.Header.Get("Location"))

	_, err := env.sessions.Get(context.Background(), env.sessionID(t))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRefreshFailureDropsSession(t *testing.T) {
	env := newTestEnv(t, fakeMercadoLivre(t))
	env.do(t, http.MethodGet, "/healthz", nil)

	sessionID := env.sessionID(t)
	require.NoError(t, env.sessions.Save(context.Background(), store.MLSession{
		SessionID:    sessionID,
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	// an expired token is refreshed transparently; a revoked refresh token
	// leaves the seller disconnected
	me := decode[meResponse](t, env.do(t, http.MethodGet, "/api/ml/me", nil))
	assert.Nil(t, me.SellerID)

	_, err := env.sessions.Get(context.Background(), sessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCategoriesAndFees(t *testing.T) {
	env := newTestEnv(t, fakeMercadoLivre(t))

	resp := env.do(t, http.MethodGet, "/api/ml/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cats := decode[[]mercadolivre.Category](t, resp)
	require.Len(t, cats, 1)
	assert.Equal(t, "MLB1051", cats[0].ID)

	resp = env.do(t, http.MethodGet, "/api/ml/fees", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/ml/fees?category_id=MLB404", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAuthNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.Config.Handler = NewRouter(Deps{ML: mercadolivre.NewClient(mercadolivre.Config{})})

	resp := env.do(t, http.MethodGet, "/api/ml/auth", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebhookAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, map[string]bool{"ok": true}, decode[map[string]bool](t, env.do(t, http.MethodGet, "/api/webhook", nil)))
	assert.Equal(t, map[string]bool{"received": true},
		decode[map[string]bool](t, env.do(t, http.MethodPost, "/api/webhook", `{"topic":"items","resource":"/items/MLB1","user_id":777}`)))

	assert.Equal(t, "ok", decode[map[string]string](t, env.do(t, http.MethodGet, "/healthz", nil))["status"])
}

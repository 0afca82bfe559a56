package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"precifica/pricing/internal/auth"
	"precifica/pricing/internal/mercadolivre"
	"precifica/pricing/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	stateCookie    = "ml_oauth_state"
	verifierCookie = "ml_pkce_verifier"
	oauthCookieTTL = 10 * time.Minute

	// used when the token response carries no expires_in
	defaultTokenTTL = 6 * time.Hour
)

// SessionStore keeps Mercado Livre tokens per browser session.
type SessionStore interface {
	Save(ctx context.Context, sess store.MLSession) error
	Get(ctx context.Context, sessionID string) (*store.MLSession, error)
	Delete(ctx context.Context, sessionID string) error
}

type MLHandler struct {
	Client        *mercadolivre.Client
	Sessions      SessionStore
	Fees          FeeSource
	SecureCookies bool
	log           *zap.Logger
}

// Auth starts the authorization-code flow with a PKCE challenge.
func (h *MLHandler) Auth(w http.ResponseWriter, r *http.Request) {
	state := mercadolivre.NewState()
	verifier := mercadolivre.NewVerifier()

	target, err := h.Client.AuthCodeURL(state, verifier)
	if errors.Is(err, mercadolivre.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "Mercado Livre login is not configured")
		return
	} else if err != nil {
		h.log.Error("failed to build authorization url", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start login")
		return
	}

	h.setCookie(w, stateCookie, state, oauthCookieTTL)
	h.setCookie(w, verifierCookie, verifier, oauthCookieTTL)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// Callback completes the login and binds the tokens to the browser session.
func (h *MLHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	state, _ := r.Cookie(stateCookie)
	verifier, _ := r.Cookie(verifierCookie)
	h.clearCookie(w, stateCookie)
	h.clearCookie(w, verifierCookie)

	code := q.Get("code")
	if code == "" {
		h.log.Info("authorization callback without code", zap.String("error", q.Get("error")))
		redirectHome(w, r, "denied")
		return
	}
	if state == nil || verifier == nil || state.Value != q.Get("state") {
		h.log.Warn("authorization state mismatch")
		redirectHome(w, r, "state")
		return
	}

	tok, err := h.Client.Exchange(ctx, code, verifier.Value)
	if err != nil {
		h.log.Warn("authorization code exchange failed", zap.Error(err))
		redirectHome(w, r, "exchange")
		return
	}

	sess := sessionFromToken(auth.SessionID(ctx), "", tok)
	if profile, err := h.Client.Me(ctx, sess.AccessToken); err == nil {
		sess.SellerID = profile.SellerID
	} else {
		h.log.Warn("failed to resolve seller after login", zap.Error(err))
	}
	if err := h.Sessions.Save(ctx, sess); err != nil {
		h.log.Error("failed to store ml session", zap.Error(err))
		redirectHome(w, r, "session")
		return
	}

	h.log.Info("mercado livre seller connected", zap.String("seller_id", sess.SellerID))
	http.Redirect(w, r, "/", http.StatusFound)
}

// RefreshToken renews the session's access token. A failed refresh forgets
// the session.
func (h *MLHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.Sessions.Get(ctx, auth.SessionID(ctx))
	if errors.Is(err, store.ErrNotFound) || (err == nil && sess.RefreshToken == "") {
		writeError(w, http.StatusUnauthorized, "Refresh token not found, please log in again")
		return
	} else if err != nil {
		h.log.Error("failed to load ml session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	updated, err := h.refresh(ctx, sess)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Refresh token invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"expires_in": int(time.Until(updated.ExpiresAt).Seconds()),
	})
}

type meResponse struct {
	SellerID         *string          `json:"seller_id"`
	Nickname         *string          `json:"nickname"`
	Reputation       *string          `json:"reputation"`
	ReputationLabel  *string          `json:"reputation_label"`
	ShippingDiscount *decimal.Decimal `json:"shipping_discount"`
	Origin           *string          `json:"origin"`
}

// Me describes the connected seller, or answers with nulls when the browser
// session has no usable Mercado Livre tokens.
func (h *MLHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp meResponse

	sess, err := h.Sessions.Get(ctx, auth.SessionID(ctx))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Error("failed to load ml session", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if sess.Expired(time.Now()) {
		if sess, err = h.refresh(ctx, sess); err != nil {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	profile, err := h.Client.Me(ctx, sess.AccessToken)
	if err != nil {
		h.log.Warn("failed to load seller profile", zap.Error(err))
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.SellerID = &profile.SellerID
	if profile.Nickname != "" {
		resp.Nickname = &profile.Nickname
	}
	if profile.Reputation != "" {
		info := mercadolivre.Reputation(profile.Reputation)
		resp.Reputation = &profile.Reputation
		resp.ReputationLabel = &info.Label
		resp.ShippingDiscount = &info.DiscountPct
	}
	if profile.Origin != "" {
		resp.Origin = &profile.Origin
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout forgets the session's Mercado Livre tokens.
func (h *MLHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Sessions.Delete(ctx, auth.SessionID(ctx)); err != nil {
		h.log.Error("failed to delete ml session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *MLHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Fees.Categories(r.Context())
	if err != nil {
		h.log.Warn("failed to list categories", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to fetch categories from Mercado Livre")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *MLHandler) CategoryFees(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("category_id")
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	fees, err := h.Fees.CategoryFees(r.Context(), categoryID)
	if err != nil {
		h.log.Warn("failed to fetch category fees", zap.String("category_id", categoryID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to fetch category fees from Mercado Livre")
		return
	}
	writeJSON(w, http.StatusOK, fees)
}

func (h *MLHandler) refresh(ctx context.Context, sess *store.MLSession) (*store.MLSession, error) {
	tok, err := h.Client.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		h.log.Warn("ml token refresh failed, dropping session", zap.Error(err))
		if err := h.Sessions.Delete(ctx, sess.SessionID); err != nil {
			h.log.Error("failed to delete ml session", zap.Error(err))
		}
		return nil, err
	}

	updated := sessionFromToken(sess.SessionID, sess.SellerID, tok)
	if updated.RefreshToken == "" {
		updated.RefreshToken = sess.RefreshToken
	}
	if err := h.Sessions.Save(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func sessionFromToken(sessionID, sellerID string, tok *oauth2.Token) store.MLSession {
	expires := tok.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(defaultTokenTTL)
	}
	return store.MLSession{
		SessionID:    sessionID,
		SellerID:     sellerID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expires,
	}
}

func (h *MLHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/ml",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *MLHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Path: "/api/ml", MaxAge: -1, HttpOnly: true, Secure: h.SecureCookies})
}

func redirectHome(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/?ml_error="+url.QueryEscape(reason), http.StatusFound)
}

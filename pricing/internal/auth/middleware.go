package auth

import (
	"context"
	"net/http"

	"precifica/pricing/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const SessionCookie = "precifica_session"

type ContextKey string

const SessionKey ContextKey = "sessionID"

// SessionID returns the browser session id set by SessionMiddleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionKey).(string)
	return id
}

// WithSessionID stores id in ctx the way SessionMiddleware does.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionKey, id)
}

// SessionMiddleware attaches an anonymous browser session to every request,
// issuing a fresh one when the cookie is missing or fails validation.
func SessionMiddleware(secureCookie bool) func(http.Handler) http.Handler {
	log := logging.Named("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(SessionCookie); err == nil {
				if claims, err := ValidateToken(c.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), claims.SessionID)))
					return
				}
			}

			sessionID := uuid.NewString()
			token, err := GenerateSessionToken(sessionID)
			if err != nil {
				log.Error("failed to sign session token", zap.Error(err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   int(SessionTTL.Seconds()),
				HttpOnly: true,
				Secure:   secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

// AdminGuard guards admin routes with the X-Admin-Secret header, compared
// against secretHash (ADMIN_SECRET_HASH). An empty hash blocks every request.
func AdminGuard(secretHash string) func(http.Handler) http.Handler {
	log := logging.Named("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secretHash == "" {
				log.Error("ADMIN_SECRET_HASH is not set, blocking admin request")
				http.Error(w, "Admin access not configured", http.StatusForbidden)
				return
			}

			secret := r.Header.Get("X-Admin-Secret")
			if secret == "" || bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)) != nil {
				log.Warn("unauthorized admin access attempt", zap.String("remote", r.RemoteAddr))
				http.Error(w, "Unauthorized: Invalid Admin Secret", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package handler

import (
	"context"
	"net/http"

	"precifica/pricing/internal/auth"
	"precifica/pricing/internal/logging"
	"precifica/pricing/internal/mercadolivre"

	"go.uber.org/zap"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Configs   ConfigStore
	Sessions  SessionStore
	ML        *mercadolivre.Client
	Fees      FeeSource
	Analytics MetricPublisher
	DB        Pinger

	AdminSecretHash string
	SecureCookies   bool
}

func NewRouter(d Deps) http.Handler {
	log := logging.Named("handler")
	mux := http.NewServeMux()

	calc := &CalculatorHandler{Configs: d.Configs, Fees: d.Fees, Analytics: d.Analytics, log: log}
	mux.HandleFunc("POST /api/calculate", calc.Calculate)
	mux.HandleFunc("POST /api/simulate", calc.Simulate)

	cfg := &ConfigHandler{Store: d.Configs, log: log}
	mux.HandleFunc("GET /api/config", cfg.Get)
	mux.HandleFunc("PUT /api/config", cfg.Put)
	mux.HandleFunc("DELETE /api/config", cfg.Delete)
	mux.HandleFunc("GET /api/config/defaults", cfg.Defaults)

	admin := auth.AdminGuard(d.AdminSecretHash)
	mux.Handle("PUT /api/admin/config/defaults", admin(http.HandlerFunc(cfg.PutDefaults)))

	ml := &MLHandler{Client: d.ML, Sessions: d.Sessions, Fees: d.Fees, SecureCookies: d.SecureCookies, log: log}
	mux.HandleFunc("GET /api/ml/auth", ml.Auth)
	mux.HandleFunc("GET /api/ml/callback", ml.Callback)
	mux.HandleFunc("POST /api/ml/refresh-token", ml.RefreshToken)
	mux.HandleFunc("GET /api/ml/me", ml.Me)
	mux.HandleFunc("POST /api/ml/logout", ml.Logout)
	mux.HandleFunc("GET /api/ml/categories", ml.Categories)
	mux.HandleFunc("GET /api/ml/fees", ml.CategoryFees)

	mux.HandleFunc("GET /api/webhook", webhookAck)
	mux.HandleFunc("POST /api/webhook", webhookReceive(log))
	mux.HandleFunc("GET /healthz", health(d.DB, log))

	return auth.SessionMiddleware(d.SecureCookies)(mux)
}

func webhookAck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// webhookReceive acknowledges marketplace notifications. They are only logged.
func webhookReceive(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var note struct {
			Topic    string `json:"topic"`
			Resource string `json:"resource"`
			UserID   int64  `json:"user_id"`
		}
		if err := decodeJSON(w, r, &note); err == nil {
			log.Info("marketplace notification",
				zap.String("topic", note.Topic),
				zap.String("resource", note.Resource),
				zap.Int64("user_id", note.UserID))
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

func health(db Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				log.Error("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

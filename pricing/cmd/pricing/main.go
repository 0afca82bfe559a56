package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"precifica/pricing/internal/auth"
	"precifica/pricing/internal/cache"
	"precifica/pricing/internal/config"
	"precifica/pricing/internal/handler"
	"precifica/pricing/internal/logging"
	"precifica/pricing/internal/mercadolivre"
	"precifica/pricing/internal/mq"
	"precifica/pricing/internal/store"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func main() {
	// 1. Load Environment Variables
	cfg, err := config.Load("pricing/.env")
	if err != nil {
		// logging is not up yet
		os.Stderr.WriteString("pricing: " + err.Error() + "\n")
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	if err := logging.Initialize(logCfg); err != nil {
		os.Stderr.WriteString("pricing: failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.Named("pricing")

	if err := auth.SetJWTKey(cfg.JWTSecret); err != nil {
		log.Fatal("invalid session secret", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database Connection
	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	log.Info("connected to database", zap.String("driver", cfg.DatabaseDriver))

	// 3. Lookup cache
	var lookupCache cache.Store
	if cfg.RedisAddr != "" {
		r := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := r.Ping(ctx); err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer r.Close()
		lookupCache = r
		log.Info("using redis cache", zap.String("addr", cfg.RedisAddr))
	} else {
		lookupCache = cache.NewMemory(10 * time.Minute)
		log.Info("using in-process cache")
	}

	// 4. Mercado Livre client
	ml := mercadolivre.NewClient(mercadolivre.Config{
		ClientID:     cfg.MLClientID,
		ClientSecret: cfg.MLClientSecret,
		RedirectURL:  cfg.MLRedirectURL,
		AuthURL:      cfg.MLAuthURL,
		BaseURL:      cfg.MLBaseURL,
	})
	if !cfg.MLConfigured() {
		log.Warn("ML_CLIENT_ID or ML_REDIRECT_URI not set, seller login disabled")
	}

	deps := handler.Deps{
		Configs:         store.NewConfigStore(db),
		Sessions:        store.NewSessionStore(db),
		ML:              ml,
		Fees:            mercadolivre.NewFeeLookup(ml, lookupCache),
		DB:              db,
		AdminSecretHash: cfg.AdminSecretHash,
		SecureCookies:   cfg.CookieSecure,
	}

	// 5. Analytics publisher (optional)
	if cfg.AnalyticsAddr != "" {
		publisher, err := mq.NewAnalyticsPublisher(cfg.AnalyticsAddr)
		if err != nil {
			log.Fatal("failed to start analytics publisher", zap.String("addr", cfg.AnalyticsAddr), zap.Error(err))
		}
		defer publisher.Close()
		deps.Analytics = publisher
		log.Info("analytics publisher active", zap.String("addr", cfg.AnalyticsAddr))
	}

	// 6. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("pricing service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server crashed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

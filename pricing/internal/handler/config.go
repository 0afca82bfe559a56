package handler

import (
	"context"
	"net/http"

	"precifica/pricing/internal/auth"
	"precifica/pricing/internal/feeconfig"
	"precifica/pricing/internal/store"

	"go.uber.org/zap"
)

type ConfigResolver interface {
	Resolve(ctx context.Context, ownerID string) (feeconfig.Config, error)
}

// ConfigStore is the persistence used by the configuration endpoints.
type ConfigStore interface {
	ConfigResolver
	Save(ctx context.Context, ownerID string, cfg feeconfig.Config) error
	Delete(ctx context.Context, ownerID string) error
}

func resolveConfig(ctx context.Context, r ConfigResolver, ownerID string) (feeconfig.Config, error) {
	if r == nil {
		return feeconfig.Default(), nil
	}
	return r.Resolve(ctx, ownerID)
}

type ConfigHandler struct {
	Store ConfigStore
	log   *zap.Logger
}

// Get returns the session's effective configuration.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, auth.SessionID(r.Context()))
}

// Put validates and stores a configuration for the session.
func (h *ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, auth.SessionID(r.Context()))
}

// Delete drops the session's configuration, falling back to the defaults.
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionID(r.Context())
	if err := h.Store.Delete(r.Context(), sessionID); err != nil {
		h.log.Error("failed to delete fee config", zap.String("session", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reset configuration")
		return
	}
	h.respond(w, r, sessionID)
}

// Defaults returns the operator-managed defaults.
func (h *ConfigHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, store.DefaultOwner)
}

// PutDefaults replaces the operator-managed defaults. Admin only.
func (h *ConfigHandler) PutDefaults(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, store.DefaultOwner)
}

func (h *ConfigHandler) respond(w http.ResponseWriter, r *http.Request, ownerID string) {
	cfg, err := resolveConfig(r.Context(), h.Store, ownerID)
	if err != nil {
		h.log.Error("failed to resolve fee config", zap.String("owner", ownerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load configuration")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *ConfigHandler) save(w http.ResponseWriter, r *http.Request, ownerID string) {
	cfg, err := feeconfig.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.Save(r.Context(), ownerID, cfg); err != nil {
		h.log.Error("failed to save fee config", zap.String("owner", ownerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save configuration")
		return
	}
	h.log.Info("fee config saved", zap.String("owner", ownerID))
	writeJSON(w, http.StatusOK, cfg)
}

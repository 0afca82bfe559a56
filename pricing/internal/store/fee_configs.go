package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"precifica/pricing/internal/feeconfig"

	"github.com/jmoiron/sqlx"
)

// DefaultOwner holds the operator-managed default configuration.
const DefaultOwner = "default"

// ConfigStore persists fee configurations per owner (a browser session or
// DefaultOwner).
type ConfigStore struct {
	db *sqlx.DB
}

func NewConfigStore(db *sqlx.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Get loads and migrates the owner's configuration.
func (s *ConfigStore) Get(ctx context.Context, ownerID string) (feeconfig.Config, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.db.Rebind(`SELECT config FROM fee_configs WHERE owner_id = ?`), ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return feeconfig.Config{}, ErrNotFound
	} else if err != nil {
		return feeconfig.Config{}, fmt.Errorf("failed to get fee config: %w", err)
	}

	cfg, err := feeconfig.Decode(strings.NewReader(raw))
	if err != nil {
		return feeconfig.Config{}, fmt.Errorf("stored fee config for %s: %w", ownerID, err)
	}
	return cfg, nil
}

// Save inserts or replaces the owner's configuration.
func (s *ConfigStore) Save(ctx context.Context, ownerID string, cfg feeconfig.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode fee config: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO fee_configs (owner_id, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id)
		DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
	`)
	if _, err := s.db.ExecContext(ctx, query, ownerID, string(raw), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save fee config: %w", err)
	}
	return nil
}

// Delete removes the owner's configuration. Deleting a missing row is not an error.
func (s *ConfigStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM fee_configs WHERE owner_id = ?`), ownerID); err != nil {
		return fmt.Errorf("failed to delete fee config: %w", err)
	}
	return nil
}

// Resolve returns the owner's configuration, falling back to the stored
// default and then the built-in schedule.
func (s *ConfigStore) Resolve(ctx context.Context, ownerID string) (feeconfig.Config, error) {
	for _, id := range []string{ownerID, DefaultOwner} {
		if id == "" {
			continue
		}
		cfg, err := s.Get(ctx, id)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return feeconfig.Config{}, err
		}
	}
	return feeconfig.Default(), nil
}

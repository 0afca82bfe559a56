package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MLSession is a Mercado Livre token pair bound to a browser session.
type MLSession struct {
	SessionID    string
	SellerID     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is no longer usable at now.
func (s MLSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type mlSessionRow struct {
	SessionID    string `db:"session_id"`
	SellerID     string `db:"seller_id"`
	AccessToken  string `db:"access_token"`
	RefreshToken string `db:"refresh_token"`
	ExpiresAt    int64  `db:"expires_at"`
}

type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save stores or replaces the tokens of a browser session.
func (s *SessionStore) Save(ctx context.Context, sess MLSession) error {
	if sess.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	query := s.db.Rebind(`
		INSERT INTO ml_sessions (session_id, seller_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id)
		DO UPDATE SET
			seller_id = EXCLUDED.seller_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`)
	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID,
		sess.SellerID,
		sess.AccessToken,
		sess.RefreshToken,
		sess.ExpiresAt.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save ml session: %w", err)
	}
	return nil
}

// Get returns the session's tokens or ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*MLSession, error) {
	var row mlSessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT session_id, seller_id, access_token, refresh_token, expires_at
		FROM ml_sessions
		WHERE session_id = ?
	`), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get ml session: %w", err)
	}

	return &MLSession{
		SessionID:    row.SessionID,
		SellerID:     row.SellerID,
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    time.Unix(row.ExpiresAt, 0),
	}, nil
}

// Delete forgets the session's tokens.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM ml_sessions WHERE session_id = ?`), sessionID); err != nil {
		return fmt.Errorf("failed to delete ml session: %w", err)
	}
	return nil
}

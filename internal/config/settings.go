package config

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"github.com/cloudgate/cloudgate/internal/provider"
)

// Settings is the persisted config component spec.md §6 names: a single
// store of auth_token rows and the public_network toggle, backed by the
// EncryptedDB opened in db.go.
type Settings struct {
	edb *EncryptedDB
}

// StoredToken is one row of the auth_token[] list spec.md §6 describes:
// an account id alongside its type-tagged, opaque provider blob.
type StoredToken struct {
	AccountID string
	Type      string
	Blob      []byte
}

// NewSettings opens (and migrates) the settings schema on edb.
func NewSettings(edb *EncryptedDB) (*Settings, error) {
	s := &Settings{edb: edb}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auth_token (
			account_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			blob BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cache_entries (
			account_type TEXT NOT NULL,
			account_username TEXT NOT NULL,
			key TEXT NOT NULL,
			value_blob BLOB NOT NULL,
			update_time INTEGER NOT NULL,
			PRIMARY KEY (account_type, account_username, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.edb.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate settings schema: %w", err)
		}
	}
	return nil
}

// PutToken upserts the token for accountID, persisted via the Settings
// component per spec.md §4.3 step 5.
func (s *Settings) PutToken(ctx context.Context, accountID string, token provider.AuthToken) error {
	_, err := s.edb.DB().ExecContext(ctx, `
		INSERT INTO auth_token (account_id, type, blob) VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET type = excluded.type, blob = excluded.blob
	`, accountID, token.TypeTag, token.Blob)
	return err
}

// RemoveToken deletes the token row for accountID, used during account
// destruction (spec.md §4.3 "token is removed from Settings").
func (s *Settings) RemoveToken(ctx context.Context, accountID string) error {
	_, err := s.edb.DB().ExecContext(ctx, `DELETE FROM auth_token WHERE account_id = ?`, accountID)
	return err
}

// ListTokens returns every persisted token, read at startup to restore
// accounts without re-running OAuth (spec.md §8 scenario 5).
func (s *Settings) ListTokens(ctx context.Context) ([]StoredToken, error) {
	rows, err := s.edb.DB().QueryContext(ctx, `SELECT account_id, type, blob FROM auth_token`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredToken
	for rows.Next() {
		var t StoredToken
		if err := rows.Scan(&t.AccountID, &t.Type, &t.Blob); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PublicNetwork returns the persisted public_network toggle. Absent
// means false, per spec.md §6.
func (s *Settings) PublicNetwork(ctx context.Context) (bool, error) {
	var v string
	err := s.edb.DB().QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'public_network'`).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetPublicNetwork persists the public_network toggle.
func (s *Settings) SetPublicNetwork(ctx context.Context, on bool) error {
	v := "false"
	if on {
		v = "true"
	}
	_, err := s.edb.DB().ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('public_network', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, v)
	return err
}

// HostSet returns the configured bind host override, if any.
func (s *Settings) HostSet(ctx context.Context) (string, error) {
	var v string
	err := s.edb.DB().QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'host_set'`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SetHostSet validates hostPort as a host:port pair before persisting
// it. This is the "Settings host-set validation" behavior supplemented
// from original_source/ (SPEC_FULL.md's SUPPLEMENTED FEATURES).
func (s *Settings) SetHostSet(ctx context.Context, hostPort string) error {
	hostPort = strings.TrimSpace(hostPort)
	if hostPort != "" {
		if _, _, err := net.SplitHostPort(hostPort); err != nil {
			return fmt.Errorf("invalid host:port %q: %w", hostPort, err)
		}
	}
	_, err := s.edb.DB().ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('host_set', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, hostPort)
	return err
}

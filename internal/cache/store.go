// Package cache is the process-wide local fallback store backed by
// SQLite. It holds the namespaced per-user keys the browser build kept in
// localStorage, and can stand in as a document gateway when the user is
// unauthenticated or the remote store is unreachable. It must never be
// read opportunistically while the remote is expected to be
// authoritative.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jvaldes/scout-tui/internal/store"
)

// Namespaced fallback keys.
const (
	KeyMyContacts     = "myContacts"
	KeyEmailTemplates = "emailTemplates"
	KeyUserProfile    = "userProfile"
	KeyEmailDrafts    = "emailDrafts"
	KeyIsDemoMode     = "isDemoMode"
	KeyDemoUser       = "demoUser"
	KeyIsNewAccount   = "isNewAccount"
	KeyIsNewSignup    = "isNewSignup"
)

// Store wraps a SQLite database used as the local fallback
type Store struct {
	db *sql.DB
}

// Open opens (and creates/migrates) the fallback database at the given path
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("empty fallback db path")
	}
	cleanPath := filepath.Clean(dbPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid fallback db path: contains directory traversal")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		f, err := os.OpenFile(dbPath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create fallback db: %w", err)
		}
		_ = f.Close()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open fallback db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	// user_version based migrations (v1 kv entries, v2 whole documents)
	var ver int
	_ = s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver)
	if ver == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS kv_entries (
  user_id    TEXT NOT NULL,
  key        TEXT NOT NULL,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, key)
);
`)
		if err == nil {
			_, err = tx.ExecContext(ctx, "PRAGMA user_version=1;")
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate v1: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		ver = 1
	}
	if ver == 1 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS user_documents (
  user_id    TEXT PRIMARY KEY,
  doc        TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`)
		if err == nil {
			_, err = tx.ExecContext(ctx, "PRAGMA user_version=2;")
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate v2: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		ver = 2
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Set upserts a namespaced value for the user
func (s *Store) Set(ctx context.Context, userID, key, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("fallback store not initialized")
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("invalid kv inputs")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_entries(user_id, key, value, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(user_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
`, userID, key, value, time.Now().Unix())
	return err
}

// Get returns a namespaced value if present
func (s *Store) Get(ctx context.Context, userID, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("fallback store not initialized")
	}
	var out string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE user_id=? AND key=?`, userID, key).Scan(&out)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

// Delete removes a namespaced value
func (s *Store) Delete(ctx context.Context, userID, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("fallback store not initialized")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE user_id=? AND key=?`, userID, key)
	return err
}

// SaveContacts stores the triage sequences under myContacts
func (s *Store) SaveContacts(ctx context.Context, userID string, uc *store.UserContacts) error {
	data, err := json.Marshal(uc)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	return s.Set(ctx, userID, KeyMyContacts, string(data))
}

// LoadContacts reads the triage sequences from myContacts
func (s *Store) LoadContacts(ctx context.Context, userID string) (*store.UserContacts, bool, error) {
	raw, found, err := s.Get(ctx, userID, KeyMyContacts)
	if err != nil || !found {
		return nil, false, err
	}
	uc := &store.UserContacts{}
	if err := json.Unmarshal([]byte(raw), uc); err != nil {
		return nil, false, fmt.Errorf("decode contacts: %w", err)
	}
	return uc, true, nil
}

// SaveTemplates stores the template list under emailTemplates
func (s *Store) SaveTemplates(ctx context.Context, userID string, templates []store.EmailTemplate) error {
	data, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	return s.Set(ctx, userID, KeyEmailTemplates, string(data))
}

// LoadTemplates reads the template list from emailTemplates
func (s *Store) LoadTemplates(ctx context.Context, userID string) ([]store.EmailTemplate, bool, error) {
	raw, found, err := s.Get(ctx, userID, KeyEmailTemplates)
	if err != nil || !found {
		return nil, false, err
	}
	var templates []store.EmailTemplate
	if err := json.Unmarshal([]byte(raw), &templates); err != nil {
		return nil, false, fmt.Errorf("decode templates: %w", err)
	}
	return templates, true, nil
}

// SaveProfile stores the profile under userProfile
func (s *Store) SaveProfile(ctx context.Context, userID string, profile *store.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.Set(ctx, userID, KeyUserProfile, string(data))
}

// LoadProfile reads the profile from userProfile
func (s *Store) LoadProfile(ctx context.Context, userID string) (*store.Profile, bool, error) {
	raw, found, err := s.Get(ctx, userID, KeyUserProfile)
	if err != nil || !found {
		return nil, false, err
	}
	profile := &store.Profile{}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		return nil, false, fmt.Errorf("decode profile: %w", err)
	}
	return profile, true, nil
}

// SaveDrafts stores the draft map under emailDrafts
func (s *Store) SaveDrafts(ctx context.Context, userID string, drafts map[string]store.EmailDraft) error {
	data, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	return s.Set(ctx, userID, KeyEmailDrafts, string(data))
}

// LoadDrafts reads the draft map from emailDrafts
func (s *Store) LoadDrafts(ctx context.Context, userID string) (map[string]store.EmailDraft, bool, error) {
	raw, found, err := s.Get(ctx, userID, KeyEmailDrafts)
	if err != nil || !found {
		return nil, false, err
	}
	drafts := map[string]store.EmailDraft{}
	if err := json.Unmarshal([]byte(raw), &drafts); err != nil {
		return nil, false, fmt.Errorf("decode drafts: %w", err)
	}
	return drafts, true, nil
}

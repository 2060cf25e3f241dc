package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jvaldes/scout-tui/internal/store"
)

// The Store doubles as a document gateway so demo mode and degraded
// operation go through the same contract as Firestore.

// GetDoc implements store.Gateway
func (s *Store) GetDoc(ctx context.Context, userID string) (*store.UserDocument, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("fallback store not initialized")
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM user_documents WHERE user_id=?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc := &store.UserDocument{}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, false, fmt.Errorf("decode local document: %w", err)
	}
	return doc, true, nil
}

// SetDoc implements store.Gateway
func (s *Store) SetDoc(ctx context.Context, userID string, doc *store.UserDocument, merge bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("fallback store not initialized")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	next, err := store.DocToMap(doc)
	if err != nil {
		return err
	}
	if merge {
		if existing, found, err := s.getDocMap(ctx, userID); err == nil && found {
			next = mergeMaps(existing, next)
		}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode local document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO user_documents(user_id, doc, updated_at)
VALUES(?,?,?)
ON CONFLICT(user_id) DO UPDATE SET doc=excluded.doc, updated_at=excluded.updated_at;
`, userID, string(data), time.Now().Unix())
	return err
}

// UpdateDoc implements store.Gateway
func (s *Store) UpdateDoc(ctx context.Context, userID string, fields map[string]any) error {
	m, found, err := s.getDocMap(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("update local document: %w", store.ErrDocMissing)
	}
	store.ApplyFieldPaths(m, fields)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode local document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE user_documents SET doc=?, updated_at=? WHERE user_id=?`,
		string(data), time.Now().Unix(), userID)
	return err
}

func (s *Store) getDocMap(ctx context.Context, userID string) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM user_documents WHERE user_id=?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false, fmt.Errorf("decode local document: %w", err)
	}
	return m, true, nil
}

// mergeMaps overlays src onto dst, recursing into nested maps so merge
// writes preserve sibling fields.
func mergeMaps(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeMaps(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

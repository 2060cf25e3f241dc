package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway abstracts the per-user document store. The remote Firestore
// implementation is authoritative; the SQLite local fallback implements
// the same contract for unauthenticated and degraded operation.
type Gateway interface {
	// GetDoc returns the user document, or found=false when it does not
	// exist. A missing document is not an error.
	GetDoc(ctx context.Context, userID string) (*UserDocument, bool, error)

	// SetDoc writes the document. With merge, existing fields not present
	// in doc are left undisturbed.
	SetDoc(ctx context.Context, userID string, doc *UserDocument, merge bool) error

	// UpdateDoc overwrites individual fields addressed by dotted paths
	// (e.g. "contacts.shortlist") without disturbing siblings. It fails
	// when the document does not exist.
	UpdateDoc(ctx context.Context, userID string, fields map[string]any) error
}

// DocToMap converts a document to its map form with the wire field names.
func DocToMap(doc *UserDocument) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode document map: %w", err)
	}
	return m, nil
}

// DocFromMap converts the map form back into a typed document.
func DocFromMap(m map[string]any) (*UserDocument, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode document map: %w", err)
	}
	doc := &UserDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// ApplyFieldPaths writes each dotted-path value into the map form,
// creating intermediate maps as needed. Leaves are overwritten; siblings
// are preserved.
func ApplyFieldPaths(m map[string]any, fields map[string]any) {
	for path, value := range fields {
		parts := strings.Split(path, ".")
		cur := m
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = normalizeValue(value)
	}
}

// normalizeValue round-trips typed values through JSON so the map form
// stays homogeneous regardless of whether a caller passed a struct or a
// plain map.
func normalizeValue(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, int, int64:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

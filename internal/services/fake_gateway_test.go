package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/jvaldes/scout-tui/internal/store"
)

// fakeGateway is an in-memory document store used across service tests.
// Failure injection lets tests exercise the fallback and retry paths.
type fakeGateway struct {
	mu   sync.Mutex
	docs map[string]*store.UserDocument

	failReads  bool
	failWrites bool

	setCalls    int
	updateCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{docs: map[string]*store.UserDocument{}}
}

func (g *fakeGateway) GetDoc(ctx context.Context, userID string) (*store.UserDocument, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failReads {
		return nil, false, fmt.Errorf("injected read failure")
	}
	doc, ok := g.docs[userID]
	if !ok {
		return nil, false, nil
	}
	// Return a deep copy so callers cannot mutate stored state directly.
	m, err := store.DocToMap(doc)
	if err != nil {
		return nil, false, err
	}
	copied, err := store.DocFromMap(m)
	if err != nil {
		return nil, false, err
	}
	return copied, true, nil
}

func (g *fakeGateway) SetDoc(ctx context.Context, userID string, doc *store.UserDocument, merge bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setCalls++
	if g.failWrites {
		return fmt.Errorf("injected write failure")
	}
	m, err := store.DocToMap(doc)
	if err != nil {
		return err
	}
	copied, err := store.DocFromMap(m)
	if err != nil {
		return err
	}
	g.docs[userID] = copied
	return nil
}

func (g *fakeGateway) UpdateDoc(ctx context.Context, userID string, fields map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	if g.failWrites {
		return fmt.Errorf("injected write failure")
	}
	doc, ok := g.docs[userID]
	if !ok {
		return store.ErrDocMissing
	}
	m, err := store.DocToMap(doc)
	if err != nil {
		return err
	}
	store.ApplyFieldPaths(m, fields)
	updated, err := store.DocFromMap(m)
	if err != nil {
		return err
	}
	g.docs[userID] = updated
	return nil
}

func (g *fakeGateway) stored(userID string) *store.UserDocument {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.docs[userID]
}

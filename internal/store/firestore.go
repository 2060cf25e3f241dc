package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDocMissing indicates an update against a document that does not
// exist yet. Callers create the skeleton and retry.
var ErrDocMissing = errors.New("user document does not exist")

const usersCollection = "users"

// FirestoreGateway persists user documents in Firestore under
// users/<uid>. It is the authoritative store when the user is signed in.
type FirestoreGateway struct {
	client *firestore.Client

	// Debug enables the read-after-write verification diagnostic. It is
	// a permissions canary, not a correctness mechanism.
	Debug bool

	verifyDelay time.Duration
	logger      *log.Logger
}

// NewFirestoreGateway initializes the Firebase app and opens a Firestore
// client.
func NewFirestoreGateway(ctx context.Context, credentialsPath, projectID string) (*FirestoreGateway, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path is required")
	}
	conf := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}
	return &FirestoreGateway{client: client, verifyDelay: 500 * time.Millisecond}, nil
}

// SetLogger sets the logger for debug output
func (g *FirestoreGateway) SetLogger(logger *log.Logger) {
	g.logger = logger
}

// Close releases the underlying client
func (g *FirestoreGateway) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

// GetDoc implements Gateway
func (g *FirestoreGateway) GetDoc(ctx context.Context, userID string) (*UserDocument, bool, error) {
	snap, err := g.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read user document: %w", err)
	}
	doc, err := DocFromMap(snap.Data())
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// SetDoc implements Gateway
func (g *FirestoreGateway) SetDoc(ctx context.Context, userID string, doc *UserDocument, merge bool) error {
	m, err := DocToMap(doc)
	if err != nil {
		return err
	}
	ref := g.client.Collection(usersCollection).Doc(userID)
	if merge {
		_, err = ref.Set(ctx, m, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, m)
	}
	if err != nil {
		return fmt.Errorf("write user document: %w", err)
	}
	g.verifyWrite(ctx, userID, doc.UpdatedAt)
	return nil
}

// UpdateDoc implements Gateway
func (g *FirestoreGateway) UpdateDoc(ctx context.Context, userID string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	var wantStamp string
	for path, value := range fields {
		if path == "updatedAt" {
			if s, ok := value.(string); ok {
				wantStamp = s
			}
		}
		updates = append(updates, firestore.Update{Path: path, Value: normalizeValue(value)})
	}
	_, err := g.client.Collection(usersCollection).Doc(userID).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("update user document: %w", ErrDocMissing)
	}
	if err != nil {
		return fmt.Errorf("update user document: %w", err)
	}
	g.verifyWrite(ctx, userID, wantStamp)
	return nil
}

// verifyWrite re-reads the document shortly after a write and logs a
// diagnostic when the read is stale. Stale reads here usually mean
// misconfigured security rules, not data loss.
func (g *FirestoreGateway) verifyWrite(ctx context.Context, userID, wantStamp string) {
	if !g.Debug || wantStamp == "" {
		return
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(g.verifyDelay):
	}
	doc, found, err := g.GetDoc(ctx, userID)
	if err != nil || !found {
		g.logf("verifyWrite: re-read failed for user=%s found=%v err=%v", userID, found, err)
		return
	}
	if doc.UpdatedAt != wantStamp {
		g.logf("verifyWrite: stale read for user=%s got updatedAt=%s want=%s (check store permissions)",
			userID, doc.UpdatedAt, wantStamp)
	}
}

func (g *FirestoreGateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

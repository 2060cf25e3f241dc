package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jvaldes/scout-tui/internal/store"
)

// placeholderPattern is the single strict placeholder syntax: {{key}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// TemplateServiceImpl implements TemplateService
type TemplateServiceImpl struct {
	gateway store.Gateway
	logger  *log.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewTemplateService creates a new template service
func NewTemplateService(gateway store.Gateway) *TemplateServiceImpl {
	return &TemplateServiceImpl{
		gateway: gateway,
		now:     time.Now,
	}
}

// SetLogger sets the logger for debug output
func (s *TemplateServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// ListTemplates returns the user's outreach templates.
func (s *TemplateServiceImpl) ListTemplates(ctx context.Context, userID string) ([]store.EmailTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.Templates, nil
}

// SaveTemplate upserts a template by name.
func (s *TemplateServiceImpl) SaveTemplate(ctx context.Context, userID string, t store.EmailTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name cannot be empty: %w", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Templates {
		if doc.Templates[i].Name == t.Name {
			doc.Templates[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Templates = append(doc.Templates, t)
	}
	return s.persistTemplates(ctx, userID, doc)
}

// DeleteTemplate removes a template by name.
func (s *TemplateServiceImpl) DeleteTemplate(ctx context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return err
	}
	out := doc.Templates[:0]
	removed := false
	for _, t := range doc.Templates {
		if t.Name == name {
			removed = true
			continue
		}
		out = append(out, t)
	}
	if !removed {
		return nil
	}
	doc.Templates = out
	return s.persistTemplates(ctx, userID, doc)
}

// Render substitutes {{placeholder}} keys with contact fields. Unknown
// placeholders are left intact so a bad template stays visible instead of
// silently dropping text.
func (s *TemplateServiceImpl) Render(t store.EmailTemplate, c store.Contact) (string, string) {
	values := map[string]string{
		"name":       c.DisplayName(),
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"company":    c.Company,
		"position":   c.Position,
		"email":      c.Email,
	}
	render := func(text string) string {
		return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
			key := strings.ToLower(placeholderPattern.FindStringSubmatch(match)[1])
			if v, ok := values[key]; ok {
				return v
			}
			return match
		})
	}
	return render(t.Subject), render(t.Body)
}

func (s *TemplateServiceImpl) loadDoc(ctx context.Context, userID string) (*store.UserDocument, error) {
	doc, found, err := s.gateway.GetDoc(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user document: %w", err)
	}
	if !found {
		doc = store.NewUserDocument(s.now())
		if err := s.gateway.SetDoc(ctx, userID, doc, false); err != nil {
			return nil, fmt.Errorf("initialize user document: %w", err)
		}
	}
	return doc, nil
}

func (s *TemplateServiceImpl) persistTemplates(ctx context.Context, userID string, doc *store.UserDocument) error {
	doc.Touch(s.now())
	err := s.gateway.UpdateDoc(ctx, userID, map[string]any{
		"templates": doc.Templates,
		"updatedAt": doc.UpdatedAt,
	})
	if errors.Is(err, store.ErrDocMissing) {
		err = s.gateway.SetDoc(ctx, userID, doc, false)
	}
	if err != nil {
		return fmt.Errorf("persist templates: %w", err)
	}
	return nil
}

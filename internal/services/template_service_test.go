package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaldes/scout-tui/internal/store"
)

func TestSaveTemplate_UpsertByName(t *testing.T) {
	svc := NewTemplateService(newFakeGateway())
	ctx := context.Background()

	require.NoError(t, svc.SaveTemplate(ctx, "u1", store.EmailTemplate{Name: "intro", Subject: "v1"}))
	require.NoError(t, svc.SaveTemplate(ctx, "u1", store.EmailTemplate{Name: "followup", Subject: "f1"}))
	require.NoError(t, svc.SaveTemplate(ctx, "u1", store.EmailTemplate{Name: "intro", Subject: "v2"}))

	templates, err := svc.ListTemplates(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "v2", templates[0].Subject, "same name replaces in place")
	assert.Equal(t, "followup", templates[1].Name)
}

func TestSaveTemplate_RejectsBlankName(t *testing.T) {
	svc := NewTemplateService(newFakeGateway())

	err := svc.SaveTemplate(context.Background(), "u1", store.EmailTemplate{Name: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteTemplate(t *testing.T) {
	svc := NewTemplateService(newFakeGateway())
	ctx := context.Background()

	require.NoError(t, svc.SaveTemplate(ctx, "u1", store.EmailTemplate{Name: "intro"}))
	require.NoError(t, svc.DeleteTemplate(ctx, "u1", "intro"))

	templates, err := svc.ListTemplates(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, templates)

	// Deleting a missing template is a no-op.
	require.NoError(t, svc.DeleteTemplate(ctx, "u1", "nope"))
}

func TestRender_Placeholders(t *testing.T) {
	svc := NewTemplateService(newFakeGateway())

	template := store.EmailTemplate{
		Subject: "Reaching out about {{company}}",
		Body:    "Hi {{ first_name }},\n\nI saw your work as {{position}} at {{company}}. {{unknown}}",
	}
	contact := store.Contact{
		Email:     "ada@acme.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Company:   "Acme",
		Position:  "Engineer",
	}

	subject, body := svc.Render(template, contact)

	assert.Equal(t, "Reaching out about Acme", subject)
	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "Engineer at Acme")
	assert.Contains(t, body, "{{unknown}}", "unknown placeholders stay visible")
}

func TestRender_NameFallsBackToDisplayName(t *testing.T) {
	svc := NewTemplateService(newFakeGateway())

	template := store.EmailTemplate{Body: "Dear {{name}}"}

	_, body := svc.Render(template, store.Contact{FirstName: "Ada", LastName: "Lovelace"})
	assert.Equal(t, "Dear Ada Lovelace", body)

	_, body = svc.Render(template, store.Contact{Email: "a@b.com"})
	assert.Equal(t, "Dear a@b.com", body)
}

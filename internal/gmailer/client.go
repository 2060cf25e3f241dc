// Package gmailer sends outreach mail directly through the user's Gmail
// account once the connection is established. It is the local-send path;
// the backend batch-send endpoints remain the default.
package gmailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/jvaldes/scout-tui/pkg/auth"
)

// Client wraps the Gmail API for sending.
type Client struct {
	Service *gmail.Service
	logger  *log.Logger
}

// NewClient creates a Gmail client from an authenticated service.
func NewClient(service *gmail.Service) *Client {
	return &Client{Service: service}
}

// Connect builds an authenticated client from OAuth credential files.
func Connect(ctx context.Context, credentialsPath, tokenPath string) (*Client, error) {
	service, err := auth.NewGmailService(ctx, credentialsPath, tokenPath,
		gmail.GmailSendScope, gmail.GmailComposeScope)
	if err != nil {
		return nil, fmt.Errorf("could not connect to Gmail: %w", err)
	}
	return NewClient(service), nil
}

// SetLogger sets the logger for debug output
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// ActiveEmail returns the address of the authenticated account.
func (c *Client) ActiveEmail(ctx context.Context) (string, error) {
	profile, err := c.Service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not load Gmail profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// SendMessage sends one plain-text message and returns the Gmail message
// id.
func (c *Client) SendMessage(ctx context.Context, to, subject, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	msg := &mail.Message{
		Header: mail.Header{
			"From":    []string{"me"},
			"To":      []string{to},
			"Subject": []string{subject},
		},
		Body: strings.NewReader(body),
	}

	var sb strings.Builder
	for k, v := range msg.Header {
		sb.WriteString(fmt.Sprintf("%s: %s\r\n", k, strings.Join(v, ", ")))
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)

	raw := base64.URLEncoding.EncodeToString([]byte(sb.String()))

	sent, err := c.Service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not send message: %w", err)
	}

	c.logf("sent gmail message id=%s to=%s", sent.Id, to)
	return sent.Id, nil
}

// CreateDraft stores one plain-text draft in the user's mailbox and
// returns the draft id.
func (c *Client) CreateDraft(ctx context.Context, to, subject, body string) (string, error) {
	msg := &mail.Message{
		Header: mail.Header{
			"From":    []string{"me"},
			"To":      []string{to},
			"Subject": []string{subject},
		},
		Body: strings.NewReader(body),
	}

	var sb strings.Builder
	for k, v := range msg.Header {
		sb.WriteString(fmt.Sprintf("%s: %s\r\n", k, strings.Join(v, ", ")))
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)

	raw := base64.URLEncoding.EncodeToString([]byte(sb.String()))

	draft := &gmail.Draft{Message: &gmail.Message{Raw: raw}}
	created, err := c.Service.Users.Drafts.Create("me", draft).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not create draft: %w", err)
	}

	return created.Id, nil
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

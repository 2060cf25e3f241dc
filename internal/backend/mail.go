package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// EmailMessage is one outbound mail.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DraftRequest asks the backend for a non-streaming draft.
type DraftRequest struct {
	RecipientInfo  RecipientInfo `json:"recipient_info"`
	Tone           string        `json:"tone"`
	Template       string        `json:"template,omitempty"`
	JobDescription string        `json:"job_description,omitempty"`
}

// RecipientInfo identifies who a draft is addressed to.
type RecipientInfo struct {
	CompanyName   string `json:"company_name"`
	JobTitle      string `json:"job_title"`
	RecipientName string `json:"recipient_name,omitempty"`
	RecipientRole string `json:"recipient_role,omitempty"`
}

// DraftResult is a generated draft.
type DraftResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DraftEmail generates a draft in a single round trip.
func (c *Client) DraftEmail(ctx context.Context, req DraftRequest) (*DraftResult, error) {
	out := &DraftResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/emails/draft", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendEmail sends one message through the backend's mail service.
func (c *Client) SendEmail(ctx context.Context, msg EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	return c.doJSON(ctx, http.MethodPost, "/emails/send", msg, nil)
}

// BatchSendResult reports per-recipient outcomes of a batch send.
type BatchSendResult struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed"`
}

// BatchSendEmails sends several messages in one call.
func (c *Client) BatchSendEmails(ctx context.Context, messages []EmailMessage) (*BatchSendResult, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}
	out := &BatchSendResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/emails/batch-send", map[string]any{"messages": messages}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DraftStream opens the streaming draft endpoint. The returned body emits
// SSE records (start, content, finish, complete, error) terminated by the
// [DONE] sentinel.
func (c *Client) DraftStream(ctx context.Context, req DraftRequest) (io.ReadCloser, error) {
	return c.stream(ctx, "/emails/stream-draft", req)
}

// ChatStreamRequest starts or continues a chat turn.
type ChatStreamRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatStream opens the conversational search stream.
func (c *Client) ChatStream(ctx context.Context, req ChatStreamRequest) (io.ReadCloser, error) {
	return c.stream(ctx, "/chat/stream", req)
}

// SessionMessage is one historical chat message.
type SessionMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GetChatSession fetches the message history for a session.
func (c *Client) GetChatSession(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}
	var out struct {
		Messages []SessionMessage `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// GmailStatus reports the state of the user's Gmail connection.
type GmailStatus struct {
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
}

// GmailConnect starts the Gmail OAuth flow and returns the redirect URL.
func (c *Client) GmailConnect(ctx context.Context) (string, error) {
	var out struct {
		AuthURL string `json:"auth_url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/gmail/connect", nil, &out); err != nil {
		return "", err
	}
	return out.AuthURL, nil
}

// GetGmailStatus fetches the Gmail connection state.
func (c *Client) GetGmailStatus(ctx context.Context) (*GmailStatus, error) {
	out := &GmailStatus{}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/gmail/status", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GmailDisconnect revokes the Gmail connection.
func (c *Client) GmailDisconnect(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/gmail/disconnect", nil, nil)
}

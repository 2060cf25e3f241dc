package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jvaldes/scout-tui/internal/store"
)

// ContactSearchResult is the common response shape of the contact
// enrichment endpoints.
type ContactSearchResult struct {
	Success     bool            `json:"success"`
	Contacts    []store.Contact `json:"contacts"`
	ResultCount int             `json:"count"`
	Query       string          `json:"query,omitempty"`
}

// SearchContacts runs a natural-language contact search.
func (c *Client) SearchContacts(ctx context.Context, query string, limit int) (*ContactSearchResult, error) {
	body := map[string]any{"query": query}
	if limit > 0 {
		body["limit"] = limit
	}
	out := &ContactSearchResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/search", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindEmailResult is one resolved email with its confidence score.
type FindEmailResult struct {
	Email      string  `json:"email"`
	Confidence float64 `json:"confidence"`
	Position   string  `json:"position,omitempty"`
}

// FindEmail resolves a person's address from name and company.
func (c *Client) FindEmail(ctx context.Context, firstName, lastName, company string) (*FindEmailResult, error) {
	body := map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"company":    company,
	}
	out := &FindEmailResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/find-email", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompanySearch lists contacts at a company.
func (c *Client) CompanySearch(ctx context.Context, company string, limit int) (*ContactSearchResult, error) {
	body := map[string]any{"company": company}
	if limit > 0 {
		body["limit"] = limit
	}
	out := &ContactSearchResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/company", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdvancedSearchFilters narrows an advanced contact search.
type AdvancedSearchFilters struct {
	Company    string   `json:"company,omitempty"`
	Position   string   `json:"position,omitempty"`
	Industry   string   `json:"industry,omitempty"`
	Location   string   `json:"location,omitempty"`
	Seniority  []string `json:"seniority,omitempty"`
	Department []string `json:"department,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// AdvancedSearch runs a filtered contact search.
func (c *Client) AdvancedSearch(ctx context.Context, filters AdvancedSearchFilters) (*ContactSearchResult, error) {
	out := &ContactSearchResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/advanced-search", filters, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyEmailResult reports deliverability of one address.
type VerifyEmailResult struct {
	Email  string  `json:"email"`
	Result string  `json:"result"`
	Score  float64 `json:"score"`
}

// VerifyEmail checks deliverability of an address.
func (c *Client) VerifyEmail(ctx context.Context, email string) (*VerifyEmailResult, error) {
	out := &VerifyEmailResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/verify-email", map[string]string{"email": email}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchFindPerson identifies one person in a batch email lookup.
type BatchFindPerson struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
}

// BatchFindEmails resolves addresses for several people at once.
func (c *Client) BatchFindEmails(ctx context.Context, people []BatchFindPerson) ([]FindEmailResult, error) {
	if len(people) == 0 {
		return nil, fmt.Errorf("people cannot be empty")
	}
	var out struct {
		Results []FindEmailResult `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/batch-find", map[string]any{"people": people}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// CompanyContacts fetches contacts for a company from the jobs service.
func (c *Client) CompanyContacts(ctx context.Context, company string, limit int) (*ContactSearchResult, error) {
	params := url.Values{}
	params.Set("company", company)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	out := &ContactSearchResult{}
	if err := c.doJSON(ctx, http.MethodGet, queryPath("/jobs/company-contacts", params), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// JobListing is one entry of the job feed.
type JobListing struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	URL         string `json:"url"`
	PostedAt    string `json:"posted_at"`
	Description string `json:"description"`
}

// ListJobs fetches the job feed, optionally filtered by query and location.
func (c *Client) ListJobs(ctx context.Context, query, location string, limit int) ([]JobListing, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if location != "" {
		params.Set("location", location)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Jobs []JobListing `json:"jobs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, queryPath("/jobs", params), nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

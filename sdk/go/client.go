// Package creetonbizsdk is the Go client for the CréeTonBiz HTTP API.
package creetonbizsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal CréeTonBiz HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// SetBearerToken replaces the token used for subsequent requests.
func (c *Client) SetBearerToken(token string) {
	c.BearerToken = token
}

// Token is the auth endpoint response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User represents the API account model.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Plan            string `json:"plan"`
	StartnowCredits int    `json:"startnow_credits"`
	IsAdmin         bool   `json:"is_admin"`
	CreatedAt       string `json:"created_at"`
}

// Profile is the founder profile all generation starts from.
type Profile struct {
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences"`
}

// Idea represents a generated business idea.
type Idea struct {
	ID        string   `json:"id"`
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences"`
	Summary   string   `json:"resume"`
	Persona   string   `json:"persona"`
	Name      string   `json:"nom"`
	Slogan    string   `json:"slogan"`
	Rating    float64  `json:"note"`
	CreatedAt string   `json:"created_at"`
}

// Project represents a converted idea being worked on.
type Project struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences"`
	IdeaID    *string  `json:"idea_id,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// Deliverable is one generated premium artifact.
type Deliverable struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Content   map[string]any `json:"content"`
	HasFile   bool           `json:"has_file"`
	CreatedAt string         `json:"created_at"`
}

// Checkout is the hosted checkout session handle.
type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Pack      string `json:"pack"`
}

// VerifyResult reports whether confirming a session granted anything new.
type VerifyResult struct {
	Credited bool `json:"credited"`
	User     User `json:"user"`
}

// AdminUser is the operator view of an account.
type AdminUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Plan             string `json:"plan"`
	StartnowCredits  int    `json:"startnow_credits"`
	IsAdmin          bool   `json:"is_admin"`
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`
	StripeLink       string `json:"stripe_link,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// AdminUserPatch selects the fields to change; nil fields stay untouched.
type AdminUserPatch struct {
	Plan            *string `json:"plan,omitempty"`
	StartnowCredits *int    `json:"startnow_credits,omitempty"`
	IsAdmin         *bool   `json:"is_admin,omitempty"`
	CancelStripe    bool    `json:"cancel_stripe,omitempty"`
}

// Event is an activity log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body parses; Body keeps the raw text either way.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is a 401 API error.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsPaymentRequired reports whether err is a 402 API error.
func IsPaymentRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusPaymentRequired
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, email, password string) (Token, error) {
	var resp Token
	err := c.do(ctx, http.MethodPost, "auth/register", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	return resp, err
}

// Login exchanges credentials for a token. The endpoint speaks the OAuth2
// password flow, so the body is form encoded.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Token{}, readAPIError(resp)
	}
	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return Token{}, err
	}
	return token, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// ChangePassword replaces the account password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, http.MethodPost, "me/password", map[string]any{
		"current_password": current,
		"new_password":     next,
	}, nil)
}

// DeleteAccount removes the account and everything it owns.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "me", nil, nil)
}

// GenerateIdea produces a business idea for the profile.
func (c *Client) GenerateIdea(ctx context.Context, profile Profile) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas/generate", profile, &resp)
	return resp, err
}

// ListIdeas returns the account's ideas, newest first.
func (c *Client) ListIdeas(ctx context.Context) ([]Idea, error) {
	var resp []Idea
	err := c.do(ctx, http.MethodGet, "ideas", nil, &resp)
	return resp, err
}

// DeleteIdea removes an idea.
func (c *Client) DeleteIdea(ctx context.Context, ideaID string) error {
	return c.do(ctx, http.MethodDelete, "ideas/"+url.PathEscape(ideaID), nil, nil)
}

// CreateProjectOptions are parameters for creating a project.
type CreateProjectOptions struct {
	Title     string   `json:"title"`
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences,omitempty"`
	IdeaID    string   `json:"idea_id,omitempty"`
}

// CreateProject creates a project, optionally linked to an idea.
func (c *Client) CreateProject(ctx context.Context, opts CreateProjectOptions) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", opts, &resp)
	return resp, err
}

// ListProjects returns the account's projects, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(projectID), nil, &resp)
	return resp, err
}

// RenameProject changes a project title.
func (c *Client) RenameProject(ctx context.Context, projectID, title string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPatch, "projects/"+url.PathEscape(projectID), map[string]any{"title": title}, &resp)
	return resp, err
}

// DeleteProject removes a project and its deliverables.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "projects/"+url.PathEscape(projectID), nil, nil)
}

// GeneratePremium generates one deliverable kind for a project.
func (c *Client) GeneratePremium(ctx context.Context, kind string, profile Profile, projectID string) (Deliverable, error) {
	endpoint := "premium/" + url.PathEscape(kind) + "?project_id=" + url.QueryEscape(projectID)
	var resp Deliverable
	err := c.do(ctx, http.MethodPost, endpoint, profile, &resp)
	return resp, err
}

// GenerateOffer generates the offer deliverable.
func (c *Client) GenerateOffer(ctx context.Context, profile Profile, projectID string) (Deliverable, error) {
	return c.GeneratePremium(ctx, "offer", profile, projectID)
}

// GenerateBusinessModel generates the business model deliverable.
func (c *Client) GenerateBusinessModel(ctx context.Context, profile Profile, projectID string) (Deliverable, error) {
	return c.GeneratePremium(ctx, "model", profile, projectID)
}

// GenerateBrand generates the brand identity deliverable.
func (c *Client) GenerateBrand(ctx context.Context, profile Profile, projectID string) (Deliverable, error) {
	return c.GeneratePremium(ctx, "brand", profile, projectID)
}

// GenerateLanding generates the landing page deliverable.
func (c *Client) GenerateLanding(ctx context.Context, profile Profile, projectID string) (Deliverable, error) {
	return c.GeneratePremium(ctx, "landing", profile, projectID)
}

// GenerateMarketing generates the marketing plan deliverable.
func (c *Client) GenerateMarketing(ctx context.Context, profile Profile, projectID string) (Deliverable, error) {
	return c.GeneratePremium(ctx, "marketing", profile, projectID)
}

// GenerateActionPlan generates the action plan deliverable.
func (c *Client) GenerateActionPlan(ctx context.Context, profile Profile, projectID string) (Deliverable, error) {
	return c.GeneratePremium(ctx, "plan", profile, projectID)
}

// ListDeliverables lists deliverables, optionally scoped to a project and a
// kind. Empty filters list everything.
func (c *Client) ListDeliverables(ctx context.Context, projectID, kind string) ([]Deliverable, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if kind != "" {
		q.Set("kind", kind)
	}
	endpoint := "deliverables"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Deliverable
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetDeliverable returns one deliverable.
func (c *Client) GetDeliverable(ctx context.Context, id string) (Deliverable, error) {
	var resp Deliverable
	err := c.do(ctx, http.MethodGet, "deliverables/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DownloadDeliverable fetches the rendered file for a deliverable. format is
// one of auto, html, json, md, ics; empty means auto.
func (c *Client) DownloadDeliverable(ctx context.Context, id, format string) (filename string, body []byte, err error) {
	endpoint := c.base() + "/deliverables/" + url.PathEscape(id) + "/download"
	if format != "" {
		endpoint += "?format=" + url.QueryEscape(format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", nil, err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", nil, readAPIError(resp)
	}
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	filename = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	return filename, body, nil
}

// PublishLanding publishes the newest landing page and returns its URL.
func (c *Client) PublishLanding(ctx context.Context, projectID string) (string, error) {
	var resp struct {
		PublicURL string `json:"public_url"`
	}
	err := c.do(ctx, http.MethodPost, "projects/"+url.PathEscape(projectID)+"/publish", nil, &resp)
	return resp.PublicURL, err
}

// CreateCheckoutSession starts a hosted checkout for a pack. returnURL is
// optional; when set the redirect comes back there instead of the web app.
func (c *Client) CreateCheckoutSession(ctx context.Context, pack, returnURL string) (Checkout, error) {
	body := map[string]any{"pack": pack}
	if returnURL != "" {
		body["return_url"] = returnURL
	}
	var resp Checkout
	err := c.do(ctx, http.MethodPost, "billing/checkout", body, &resp)
	return resp, err
}

// VerifyCheckoutSession confirms a session after the checkout redirect.
func (c *Client) VerifyCheckoutSession(ctx context.Context, sessionID string) (VerifyResult, error) {
	var resp VerifyResult
	err := c.do(ctx, http.MethodPost, "billing/verify-checkout-session", map[string]any{"session_id": sessionID}, &resp)
	return resp, err
}

// BillingPortal returns the billing portal URL.
func (c *Client) BillingPortal(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodPost, "billing/portal", nil, &resp)
	return resp.URL, err
}

// AdminListUsers returns every account. Requires an admin token.
func (c *Client) AdminListUsers(ctx context.Context) ([]AdminUser, error) {
	var resp []AdminUser
	err := c.do(ctx, http.MethodGet, "admin/users", nil, &resp)
	return resp, err
}

// AdminUpdateUser patches a user's plan, credits or admin flag. Requires an
// admin token.
func (c *Client) AdminUpdateUser(ctx context.Context, userID string, patch AdminUserPatch) (AdminUser, error) {
	var resp AdminUser
	err := c.do(ctx, http.MethodPatch, "admin/users/"+url.PathEscape(userID), patch, &resp)
	return resp, err
}

// Events returns recent activity log entries.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func filenameFromDisposition(disposition string) string {
	const marker = `filename="`
	i := strings.Index(disposition, marker)
	if i < 0 {
		return ""
	}
	rest := disposition[i+len(marker):]
	if j := strings.Index(rest, `"`); j >= 0 {
		return rest[:j]
	}
	return rest
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"creetonbiz/internal/config"
	"creetonbiz/internal/db"
	"creetonbiz/internal/engine"
	"creetonbiz/internal/migrate"
	"creetonbiz/internal/payments"
)

type testServer struct {
	URL      string
	Engine   *engine.Engine
	Payments *payments.DevProvider
	client   *http.Client
	close    func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	provider := payments.NewDev()
	e := engine.New(conn, cfg, provider)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api",
		Auth:     AuthConfig{JWTSecret: "test-secret", TokenLifetime: time.Hour},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:      "http://" + ln.Addr().String(),
		Engine:   e,
		Payments: provider,
		client:   &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func registerUser(t *testing.T, srv *testServer, email string) (string, map[string]string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"email":    email,
		"password": "s3cret-pass",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var token TokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return token.AccessToken, map[string]string{"Authorization": "Bearer " + token.AccessToken}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

var testProfile = map[string]any{
	"secteur":     "coaching",
	"objectif":    "2000 EUR/month",
	"competences": []string{"writing", "sales"},
}

func TestRegisterLoginMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	_, auth := registerUser(t, srv, "alice@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me UserResponse
	_ = json.Unmarshal(data, &me)
	if me.Email != "alice@example.com" || me.Plan != "free" {
		t.Fatalf("unexpected me: %+v", me)
	}

	// The token endpoint speaks form encoding.
	form := url.Values{}
	form.Set("username", "alice@example.com")
	form.Set("password", "s3cret-pass")
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRes, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer loginRes.Body.Close()
	if loginRes.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", loginRes.StatusCode)
	}
	var token TokenResponse
	if err := json.NewDecoder(loginRes.Body).Decode(&token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.TokenType != "bearer" || token.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", token)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", res.StatusCode, string(data))
	}
}

func TestFreeIdeaLimit(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, auth := registerUser(t, srv, "bob@example.com")

	limit := srv.Engine.Config.Limits.FreeIdeas
	for i := 0; i < limit; i++ {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/ideas/generate", testProfile, auth)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("idea %d status %d: %s", i, res.StatusCode, string(data))
		}
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/ideas/generate", testProfile, auth)
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 past the limit, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "limit_reached" {
		t.Fatalf("expected limit_reached, got %s", code)
	}
}

func TestPremiumGatingAndCheckout(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, auth := registerUser(t, srv, "carol@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects", map[string]any{
		"title": "Kit test", "secteur": "coaching", "objectif": "2000 EUR/month",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	_ = json.Unmarshal(data, &project)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/premium/offer?project_id="+project.ID, testProfile, auth)
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for free plan, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "premium_required" {
		t.Fatalf("expected premium_required, got %s", code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/billing/checkout", map[string]any{"pack": "startnow"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("checkout status %d: %s", res.StatusCode, string(data))
	}
	var co CheckoutResponse
	_ = json.Unmarshal(data, &co)
	if co.Pack != "startnow" || co.SessionID == "" {
		t.Fatalf("unexpected checkout: %+v", co)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/billing/verify-checkout-session", map[string]any{"session_id": co.SessionID}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	var verify VerifyCheckoutResponse
	_ = json.Unmarshal(data, &verify)
	if !verify.Credited || verify.User.Plan != "startnow" || verify.User.StartnowCredits != 1 {
		t.Fatalf("unexpected verify result: %+v", verify)
	}

	// Verifying the same session again must not credit twice.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/billing/verify-checkout-session", map[string]any{"session_id": co.SessionID}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("second verify status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &verify)
	if verify.Credited || verify.User.StartnowCredits != 1 {
		t.Fatalf("expected idempotent verify, got %+v", verify)
	}

	// All six kinds generate in order; the first one consumes the credit.
	for _, kind := range []string{"offer", "model", "brand", "landing", "marketing", "plan"} {
		res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/premium/"+kind+"?project_id="+project.ID, testProfile, auth)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("premium %s status %d: %s", kind, res.StatusCode, string(data))
		}
		var d DeliverableResponse
		_ = json.Unmarshal(data, &d)
		if d.Kind != kind || d.ProjectID != project.ID {
			t.Fatalf("unexpected deliverable for %s: %+v", kind, d)
		}
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, auth)
	var me UserResponse
	_ = json.Unmarshal(data, &me)
	if me.StartnowCredits != 0 {
		t.Fatalf("expected credit consumed, got %d", me.StartnowCredits)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/deliverables?project_id="+project.ID, nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list deliverables status %d: %s", res.StatusCode, string(data))
	}
	var deliverables []DeliverableResponse
	_ = json.Unmarshal(data, &deliverables)
	if len(deliverables) != 6 {
		t.Fatalf("expected 6 deliverables, got %d", len(deliverables))
	}
}

func TestIdeaConvertsOnce(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, auth := registerUser(t, srv, "dave@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/ideas/generate", testProfile, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate idea status %d: %s", res.StatusCode, string(data))
	}
	var idea IdeaResponse
	_ = json.Unmarshal(data, &idea)

	convert := map[string]any{
		"title": idea.Name, "secteur": idea.Sector, "objectif": idea.Objective, "idea_id": idea.ID,
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects", convert, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("convert status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/projects", convert, auth)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second convert, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "already_converted" {
		t.Fatalf("expected already_converted, got %s", code)
	}
}

func loginUser(t *testing.T, srv *testServer, email, password string) map[string]string {
	t.Helper()
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", res.StatusCode)
	}
	var token TokenResponse
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token.AccessToken}
}

func TestAdminUserManagement(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, rootAuth := registerUser(t, srv, "root@example.com")
	_, frankAuth := registerUser(t, srv, "frank@example.com")

	// Regular accounts are locked out of the admin surface.
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/admin/users", nil, frankAuth)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("expected forbidden, got %s", code)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/admin/users", nil, rootAuth)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before promotion, got %d: %s", res.StatusCode, string(data))
	}

	// Promote and log in again so the token carries the admin claim.
	if _, err := srv.Engine.DB.Exec(`UPDATE users SET is_admin=1 WHERE email=?`, "root@example.com"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	rootAuth = loginUser(t, srv, "root@example.com", "s3cret-pass")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/admin/users", nil, rootAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin list status %d: %s", res.StatusCode, string(data))
	}
	var users []AdminUserResponse
	_ = json.Unmarshal(data, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	var frankID string
	for _, u := range users {
		if u.Email == "frank@example.com" {
			frankID = u.ID
		}
	}
	if frankID == "" {
		t.Fatalf("frank missing from admin list: %+v", users)
	}

	patch := map[string]any{"plan": "infinity", "startnow_credits": 2}
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/admin/users/"+frankID, patch, rootAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin patch status %d: %s", res.StatusCode, string(data))
	}
	var patched AdminUserResponse
	_ = json.Unmarshal(data, &patched)
	if patched.Plan != "infinity" || patched.StartnowCredits != 2 {
		t.Fatalf("unexpected patched user: %+v", patched)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, frankAuth)
	var me UserResponse
	_ = json.Unmarshal(data, &me)
	if me.Plan != "infinity" || me.StartnowCredits != 2 {
		t.Fatalf("patch not visible on /me: %+v", me)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/admin/users/"+frankID, map[string]any{"plan": "gold"}, rootAuth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown plan, got %d: %s", res.StatusCode, string(data))
	}
}

func TestStripeWebhookCreditsOnce(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, auth := registerUser(t, srv, "erin@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/billing/checkout", map[string]any{"pack": "infinity"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("checkout status %d: %s", res.StatusCode, string(data))
	}
	var co CheckoutResponse
	_ = json.Unmarshal(data, &co)

	event := map[string]any{
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             co.SessionID,
				"payment_status": "paid",
				"metadata":       map[string]string{"pack": "infinity"},
			},
		},
	}
	// Dev provider skips signature verification, webhook route is public.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/webhooks/stripe", event, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, auth)
	var me UserResponse
	_ = json.Unmarshal(data, &me)
	if me.Plan != "infinity" {
		t.Fatalf("expected infinity plan after webhook, got %s", me.Plan)
	}

	// Redirect verify after the webhook already credited: no double grant.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/billing/verify-checkout-session", map[string]any{"session_id": co.SessionID}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	var verify VerifyCheckoutResponse
	_ = json.Unmarshal(data, &verify)
	if verify.Credited {
		t.Fatalf("expected verify after webhook to be a no-op, got %+v", verify)
	}
}

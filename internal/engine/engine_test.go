package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"creetonbiz/internal/config"
	"creetonbiz/internal/db"
	"creetonbiz/internal/domain"
	"creetonbiz/internal/migrate"
	"creetonbiz/internal/payments"
)

var testProfile = domain.Profile{
	Sector:    "coaching",
	Objective: "2000 EUR/month",
	Skills:    []string{"writing", "sales"},
}

func newTestEngine(t *testing.T) (*Engine, *payments.DevProvider) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Publish.WebRoot = t.TempDir()
	cfg.Publish.BaseURL = "https://pages.test"
	provider := payments.NewDev()
	return New(conn, cfg, provider), provider
}

func registerTestUser(t *testing.T, e *Engine, email string) domain.User {
	t.Helper()
	u, err := e.Register(context.Background(), email, "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func grantStartnow(t *testing.T, e *Engine, userID string) {
	t.Helper()
	ctx := context.Background()
	res, err := e.StartCheckout(ctx, userID, domain.PackStartnow, "https://x/s", "https://x/c")
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if _, _, err := e.VerifyCheckout(ctx, userID, res.SessionID); err != nil {
		t.Fatalf("verify checkout: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	registerTestUser(t, e, "a@b.c")

	if _, err := e.Authenticate(ctx, "a@b.c", "s3cret-pass"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := e.Authenticate(ctx, "a@b.c", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected bad credentials, got %v", err)
	}
	if _, err := e.Authenticate(ctx, "nobody@b.c", "s3cret-pass"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected bad credentials for unknown email, got %v", err)
	}
	if _, err := e.Register(ctx, "a@b.c", "another-pass"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
}

func TestIdeaGenerationIsDeterministic(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")

	i1, err := e.GenerateIdea(ctx, u.ID, testProfile)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	i2, err := e.GenerateIdea(ctx, u.ID, testProfile)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if i1.Name != i2.Name || i1.Slogan != i2.Slogan {
		t.Fatalf("same profile should yield the same idea: %q vs %q", i1.Name, i2.Name)
	}
	if i1.ID == i2.ID {
		t.Fatal("ideas must get distinct ids")
	}
}

func TestIdeaGenerationWithoutSkills(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")

	idea, err := e.GenerateIdea(ctx, u.ID, domain.Profile{Sector: "tech", Objective: "side project"})
	if err != nil {
		t.Fatalf("skills are optional, got %v", err)
	}
	if idea.Name == "" {
		t.Fatal("expected a named idea")
	}

	if _, err := e.GenerateIdea(ctx, u.ID, domain.Profile{Objective: "x"}); err == nil {
		t.Fatal("sector is still required")
	}
}

func TestStartnowCreditConsumedOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")
	grantStartnow(t, e, u.ID)

	p, err := e.CreateProject(ctx, u.ID, ProjectCreateOptions{Title: "Kit", Sector: testProfile.Sector, Objective: testProfile.Objective})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	for _, kind := range domain.GenerationOrder {
		if _, err := e.GeneratePremium(ctx, u.ID, kind, p.ID, testProfile); err != nil {
			t.Fatalf("premium %s: %v", kind, err)
		}
	}

	got, err := e.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.StartnowCredits != 0 {
		t.Fatalf("expected exactly one credit consumed, have %d", got.StartnowCredits)
	}
	if got.Plan != domain.PlanStartnow {
		t.Fatalf("expected startnow plan, got %s", got.Plan)
	}
}

func TestSecondPackIsOneTime(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")
	grantStartnow(t, e, u.ID)

	// Already on a paid plan: buying StartNow again becomes the one-time
	// variant and only adds a credit.
	res, err := e.StartCheckout(ctx, u.ID, domain.PackStartnow, "https://x/s", "https://x/c")
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if res.Pack != domain.PackStartnowOneTime {
		t.Fatalf("expected %s, got %s", domain.PackStartnowOneTime, res.Pack)
	}
	got, _, err := e.VerifyCheckout(ctx, u.ID, res.SessionID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Plan != domain.PlanStartnow || got.StartnowCredits != 2 {
		t.Fatalf("expected plan kept and credits=2, got plan=%s credits=%d", got.Plan, got.StartnowCredits)
	}
}

func TestVerifyUnpaidSession(t *testing.T) {
	e, provider := newTestEngine(t)
	provider.AutoPay = false
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")

	res, err := e.StartCheckout(ctx, u.ID, domain.PackInfinity, "https://x/s", "https://x/c")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, _, err := e.VerifyCheckout(ctx, u.ID, res.SessionID); !errors.Is(err, ErrSessionUnpaid) {
		t.Fatalf("expected unpaid error, got %v", err)
	}

	provider.SettleSession(res.SessionID)
	got, credited, err := e.VerifyCheckout(ctx, u.ID, res.SessionID)
	if err != nil {
		t.Fatalf("verify after settle: %v", err)
	}
	if !credited || got.Plan != domain.PlanInfinity {
		t.Fatalf("expected infinity grant, got credited=%v plan=%s", credited, got.Plan)
	}
}

func TestAdminUpdateUser(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	admin := registerTestUser(t, e, "admin@b.c")
	u := registerTestUser(t, e, "user@b.c")

	res, err := e.StartCheckout(ctx, u.ID, domain.PackInfinity, "https://x/s", "https://x/c")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	subscribed, _, err := e.VerifyCheckout(ctx, u.ID, res.SessionID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subscribed.StripeSubscriptionID == "" {
		t.Fatal("infinity checkout should record a subscription")
	}

	plan := domain.PlanFree
	credits := 3
	patched, err := e.AdminUpdateUser(ctx, admin.ID, u.ID, AdminUserPatch{
		Plan:            &plan,
		StartnowCredits: &credits,
		CancelStripe:    true,
	})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if patched.Plan != domain.PlanFree || patched.StartnowCredits != 3 {
		t.Fatalf("unexpected patched user: plan=%s credits=%d", patched.Plan, patched.StartnowCredits)
	}
	canceled := provider.Canceled()
	if len(canceled) != 1 || canceled[0] != subscribed.StripeSubscriptionID {
		t.Fatalf("expected subscription %s canceled, got %v", subscribed.StripeSubscriptionID, canceled)
	}

	bad := "gold"
	if _, err := e.AdminUpdateUser(ctx, admin.ID, u.ID, AdminUserPatch{Plan: &bad}); err == nil {
		t.Fatal("unknown plan must be rejected")
	}
}

func TestPublishLanding(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")
	grantStartnow(t, e, u.ID)

	p, err := e.CreateProject(ctx, u.ID, ProjectCreateOptions{Title: "Kit", Sector: testProfile.Sector, Objective: testProfile.Objective})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := e.PublishLanding(ctx, u.ID, p.ID); !errors.Is(err, ErrNoLanding) {
		t.Fatalf("expected no landing yet, got %v", err)
	}

	if _, err := e.GeneratePremium(ctx, u.ID, domain.KindLanding, p.ID, testProfile); err != nil {
		t.Fatalf("generate landing: %v", err)
	}
	url, err := e.PublishLanding(ctx, u.ID, p.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.HasPrefix(url, "https://pages.test/") || !strings.HasSuffix(url, "/") {
		t.Fatalf("unexpected public url %q", url)
	}

	d, err := e.Repo.LatestDeliverable(ctx, u.ID, p.ID, domain.KindLanding)
	if err != nil {
		t.Fatalf("latest landing: %v", err)
	}
	if !d.HasFile() {
		t.Fatal("published landing should record its file path")
	}
	if !strings.Contains(d.ContentJSON, "public_url") {
		t.Fatal("published landing should record its public url")
	}
}

func TestExportDeliverableFormats(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	u := registerTestUser(t, e, "a@b.c")
	grantStartnow(t, e, u.ID)

	p, err := e.CreateProject(ctx, u.ID, ProjectCreateOptions{Title: "Kit", Sector: testProfile.Sector, Objective: testProfile.Objective})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	cases := []struct {
		kind     domain.DeliverableKind
		filename string
		marker   string
	}{
		{domain.KindLanding, "landing.html", "<!doctype html>"},
		{domain.KindPlan, "plan.ics", "BEGIN:VCALENDAR"},
		{domain.KindOffer, "offer.json", "promise"},
	}
	for _, tc := range cases {
		d, err := e.GeneratePremium(ctx, u.ID, tc.kind, p.ID, testProfile)
		if err != nil {
			t.Fatalf("generate %s: %v", tc.kind, err)
		}
		filename, _, body, err := e.ExportDeliverable(ctx, u.ID, d.ID, "auto")
		if err != nil {
			t.Fatalf("export %s: %v", tc.kind, err)
		}
		if filename != tc.filename {
			t.Fatalf("export %s filename = %s, want %s", tc.kind, filename, tc.filename)
		}
		if !strings.Contains(string(body), tc.marker) {
			t.Fatalf("export %s missing %q", tc.kind, tc.marker)
		}
	}

	d, err := e.GeneratePremium(ctx, u.ID, domain.KindModel, p.ID, testProfile)
	if err != nil {
		t.Fatalf("generate model: %v", err)
	}
	filename, _, body, err := e.ExportDeliverable(ctx, u.ID, d.ID, "md")
	if err != nil {
		t.Fatalf("export md: %v", err)
	}
	if filename != "model.md" {
		t.Fatalf("md filename = %s", filename)
	}
	if !strings.HasPrefix(string(body), "# Business model") {
		t.Fatalf("md body missing title: %q", string(body)[:40])
	}
	if _, _, _, err := e.ExportDeliverable(ctx, u.ID, d.ID, "ics"); err == nil {
		t.Fatal("ics export of a model deliverable should fail")
	}
}

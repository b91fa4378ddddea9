package creetonbizsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(User{ID: "u1", Email: "a@b.c"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetBearerToken("tok-123")
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestClientParsesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"premium_required","message":"premium plan or credits required"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GenerateIdea(context.Background(), Profile{Sector: "x", Objective: "y", Skills: []string{"z"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired || apiErr.Code != "premium_required" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if !IsPaymentRequired(err) {
		t.Fatal("IsPaymentRequired should match")
	}
	if IsUnauthorized(err) {
		t.Fatal("IsUnauthorized should not match")
	}
}

func TestGeneratePremiumBuildsQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(Deliverable{ID: "d1", Kind: "offer"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	d, err := c.GeneratePremium(context.Background(), "offer", Profile{Sector: "x", Objective: "y", Skills: []string{"z"}}, "proj-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if d.ID != "d1" {
		t.Fatalf("unexpected deliverable: %+v", d)
	}
	if gotPath != "/premium/offer" || gotQuery != "project_id=proj-1" {
		t.Fatalf("unexpected request: %s?%s", gotPath, gotQuery)
	}
}

func TestFindConversion(t *testing.T) {
	ideaID := "idea-1"
	projects := []Project{
		{ID: "p1"},
		{ID: "p2", IdeaID: &ideaID},
	}
	p, ok := FindConversion(projects, "idea-1")
	if !ok || p.ID != "p2" {
		t.Fatalf("expected p2, got %+v ok=%v", p, ok)
	}
	if _, ok := FindConversion(projects, "idea-2"); ok {
		t.Fatal("idea-2 has no conversion")
	}
}

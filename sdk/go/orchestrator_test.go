package creetonbizsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

var orchestratorProfile = Profile{
	Sector:    "coaching",
	Objective: "2000 EUR/month",
	Skills:    []string{"writing"},
}

// stepServer records the premium steps requested, optionally failing one.
type stepServer struct {
	mu       sync.Mutex
	requests []string
	failAt   string
}

func (s *stepServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		step := strings.TrimPrefix(r.URL.Path, "/premium/")
		s.mu.Lock()
		s.requests = append(s.requests, step)
		s.mu.Unlock()
		if step == s.failAt {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"code":"internal_error","message":"boom"}}`))
			return
		}
		json.NewEncoder(w).Encode(Deliverable{ID: "d-" + step, Kind: step})
	})
}

func (s *stepServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func TestGenerateAllPremiumOrderAndProgress(t *testing.T) {
	backend := &stepServer{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	var progress []string
	c := New(srv.URL)
	results, err := c.GenerateAllPremium(context.Background(), orchestratorProfile, "p1", func(step string) {
		// Progress must fire before the step's request goes out.
		if len(backend.seen()) != len(progress) {
			t.Errorf("progress for %s fired after its request", step)
		}
		progress = append(progress, step)
	})
	if err != nil {
		t.Fatalf("generate all: %v", err)
	}

	want := []string{"offer", "model", "brand", "landing", "marketing", "plan"}
	if len(results) != len(want) {
		t.Fatalf("expected %d deliverables, got %d", len(want), len(results))
	}
	for i, step := range want {
		if progress[i] != step {
			t.Fatalf("progress[%d] = %s, want %s", i, progress[i], step)
		}
		if backend.seen()[i] != step {
			t.Fatalf("request[%d] = %s, want %s", i, backend.seen()[i], step)
		}
		if results[i].Kind != step {
			t.Fatalf("result[%d].Kind = %s, want %s", i, results[i].Kind, step)
		}
	}
}

func TestGenerateAllPremiumFailFast(t *testing.T) {
	backend := &stepServer{failAt: "brand"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	var progress []string
	c := New(srv.URL)
	results, err := c.GenerateAllPremium(context.Background(), orchestratorProfile, "p1", func(step string) {
		progress = append(progress, step)
	})
	if err == nil {
		t.Fatal("expected the brand failure to surface")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected the step error unchanged, got %v", err)
	}

	// The failing step was announced and attempted; nothing after it ran.
	want := []string{"offer", "model", "brand"}
	if strings.Join(progress, ",") != strings.Join(want, ",") {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	if got := backend.seen(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 completed deliverables, got %d", len(results))
	}
}

func TestGenerateAllPremiumAcceptsEmptySkills(t *testing.T) {
	backend := &stepServer{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	// Skills are optional in a profile; only sector and objective gate the run.
	c := New(srv.URL)
	results, err := c.GenerateAllPremium(context.Background(), Profile{Sector: "Tech", Objective: "side project"}, "p1", nil)
	if err != nil {
		t.Fatalf("generate all without skills: %v", err)
	}
	if len(results) != len(GenerationSteps) {
		t.Fatalf("expected %d deliverables, got %d", len(GenerationSteps), len(results))
	}
	if got := backend.seen(); len(got) != len(GenerationSteps) {
		t.Fatalf("expected all six requests, got %v", got)
	}
}

func TestGenerateAllPremiumValidatesBeforeAnyCall(t *testing.T) {
	backend := &stepServer{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GenerateAllPremium(context.Background(), Profile{Sector: "x"}, "p1", nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := backend.seen(); len(got) != 0 {
		t.Fatalf("no request should be made for an invalid profile, got %v", got)
	}

	_, err = c.GenerateAllPremium(context.Background(), orchestratorProfile, "", nil)
	if err == nil {
		t.Fatal("expected missing project id error")
	}
	if got := backend.seen(); len(got) != 0 {
		t.Fatalf("no request should be made without a project id, got %v", got)
	}
}

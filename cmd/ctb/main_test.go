package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"

	creetonbizsdk "creetonbiz/sdk/go"
)

func TestAuthHint(t *testing.T) {
	expired := fmt.Errorf("me: %w", &creetonbizsdk.APIError{StatusCode: http.StatusUnauthorized, Code: "invalid_credentials"})
	if hint := authHint(expired); !strings.Contains(hint, "ctb login") {
		t.Fatalf("expected login hint for a rejected token, got %q", hint)
	}

	if hint := authHint(nil); hint != "" {
		t.Fatalf("no hint expected for success, got %q", hint)
	}
	if hint := authHint(errors.New("connection refused")); hint != "" {
		t.Fatalf("no hint expected for transport errors, got %q", hint)
	}
	denied := &creetonbizsdk.APIError{StatusCode: http.StatusPaymentRequired, Code: "premium_required"}
	if hint := authHint(denied); hint != "" {
		t.Fatalf("no hint expected for 402, got %q", hint)
	}
}

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	if err := fn(); err != nil {
		t.Fatalf("print: %v", err)
	}
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return string(out)
}

func TestPrintJSONOrTable(t *testing.T) {
	user := creetonbizsdk.User{ID: "u1", Email: "a@b.c", Plan: "free"}

	viper.Set("json", false)
	defer viper.Set("json", false)
	out := captureStdout(t, func() error { return printJSONOrTable(user) })
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("table mode should not print JSON:\n%s", out)
	}
	for _, want := range []string{"email", "a@b.c", "plan", "free"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}

	viper.Set("json", true)
	out = captureStdout(t, func() error { return printJSONOrTable(user) })
	if !strings.Contains(out, `"email": "a@b.c"`) {
		t.Fatalf("json output missing email:\n%s", out)
	}
}

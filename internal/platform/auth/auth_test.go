package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	ok := []Config{
		{Mode: ModeStatic, StaticToken: "secret"},
		{Mode: ModeOIDC, OIDCIssuerURL: "https://issuer.example.com", OIDCClientID: "relay"},
		{Mode: ModeDisabled},
	}
	for _, cfg := range ok {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("mode %q: %v", cfg.Mode, err)
		}
	}

	bad := []Config{
		{Mode: ModeStatic},
		{Mode: ModeOIDC, OIDCClientID: "relay"},
		{Mode: ModeOIDC, OIDCIssuerURL: "https://issuer.example.com"},
		{Mode: "basic"},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("mode %q: expected error", cfg.Mode)
		}
	}
}

func TestConfigFromEnv_RejectsUnknownMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "basic")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStaticTokenAuthenticator(t *testing.T) {
	a := &StaticTokenAuthenticator{Token: "secret", Subject: "relay-client"}

	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	identity, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Subject != "relay-client" {
		t.Fatalf("unexpected subject: %q", identity.Subject)
	}

	for _, header := range []string{"", "Bearer wrong", "Basic secret", "secret"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if _, err := a.Authenticate(context.Background(), req); err == nil {
			t.Fatalf("expected rejection for header %q", header)
		}
	}
}

func TestDisabledAuthenticator(t *testing.T) {
	a, err := New(context.Background(), Config{Mode: ModeDisabled})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	identity, err := a.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Subject != "anonymous" {
		t.Fatalf("unexpected subject: %q", identity.Subject)
	}
}

func TestMiddleware_RejectsAndSkips(t *testing.T) {
	mw := Middleware{
		Authenticator: &StaticTokenAuthenticator{Token: "secret", Subject: "relay-client"},
		SkipPrefixes:  []string{"/healthz"},
	}
	var gotIdentity Identity
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token: denied.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	// Skipped prefix passes without a token.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	// Valid token passes and carries the identity.
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if gotIdentity.Subject != "relay-client" {
		t.Fatalf("unexpected identity: %+v", gotIdentity)
	}
}

package meshcapade

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testTokenConfig(authURL string) TokenConfig {
	return TokenConfig{
		AuthURL:  authURL,
		Realm:    "meshcapade-me",
		ClientID: "meshcapade-me",
		Username: "alice",
		Password: "secret",
	}
}

func TestTokenExchange(t *testing.T) {
	var gotPath string
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"grant_type": r.PostFormValue("grant_type"),
			"client_id":  r.PostFormValue("client_id"),
			"username":   r.PostFormValue("username"),
			"password":   r.PostFormValue("password"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-1", "expires_in": 300}`))
	}))
	defer server.Close()

	ts := NewTokenSource(testTokenConfig(server.URL), server.Client())
	token, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("expected tok-1, got %q", token)
	}
	if gotPath != "/realms/meshcapade-me/protocol/openid-connect/token" {
		t.Fatalf("unexpected token path %q", gotPath)
	}
	want := map[string]string{
		"grant_type": "password",
		"client_id":  "meshcapade-me",
		"username":   "alice",
		"password":   "secret",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Fatalf("form field %s = %q, want %q", k, gotForm[k], v)
		}
	}
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"access_token": "tok", "expires_in": 300}`))
	}))
	defer server.Close()

	ts := NewTokenSource(testTokenConfig(server.URL), server.Client())
	now := time.Now()
	ts.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := ts.Token(context.Background()); err != nil {
			t.Fatalf("Token call %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single exchange for fresh token, got %d", calls)
	}

	// Advance past expiry minus skew; the next call must re-exchange.
	now = now.Add(300 * time.Second)
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected re-exchange after expiry, got %d calls", calls)
	}
}

func TestTokenRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_grant"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	ts := NewTokenSource(testTokenConfig(server.URL), server.Client())
	_, err := ts.Token(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", authErr.Status)
	}
}

func TestTokenMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type": "Bearer"}`))
	}))
	defer server.Close()

	ts := NewTokenSource(testTokenConfig(server.URL), server.Client())
	var authErr *AuthError
	if _, err := ts.Token(context.Background()); !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError for missing access_token, got %v", err)
	}
}

package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveJSON(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestFetchNestedSecret(t *testing.T) {
	srv := serveJSON(200, `{"id":"sess_123","model":"gpt-4o-realtime-preview","client_secret":{"value":"ek_abc","expires_at":1735689600}}`)
	defer srv.Close()

	eph, err := Fetch(context.Background(), nil, srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if eph.Secret != "ek_abc" {
		t.Fatalf("secret=%q, want %q", eph.Secret, "ek_abc")
	}
	if eph.Model != "gpt-4o-realtime-preview" {
		t.Fatalf("model=%q, want %q", eph.Model, "gpt-4o-realtime-preview")
	}
}

func TestFetchAlternateKeyPaths(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"flat client_secret", `{"client_secret":"ek_flat"}`, "ek_flat"},
		{"value", `{"value":"ek_value"}`, "ek_value"},
		{"token", `{"token":"ek_token"}`, "ek_token"},
		{"nested wins over flat", `{"client_secret":{"value":"ek_nested"},"token":"ek_other"}`, "ek_nested"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(200, tt.body)
			defer srv.Close()

			eph, err := Fetch(context.Background(), nil, srv.URL)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if eph.Secret != tt.want {
				t.Fatalf("secret=%q, want %q", eph.Secret, tt.want)
			}
		})
	}
}

func TestFetchServerError(t *testing.T) {
	srv := serveJSON(500, `{"error":"no API key configured"}`)
	defer srv.Close()

	_, err := Fetch(context.Background(), nil, srv.URL)
	var ce *CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("err=%v, want CredentialError", err)
	}
	if ce.Status != 500 {
		t.Fatalf("status=%d, want 500", ce.Status)
	}
}

func TestFetchNoRecognizableSecret(t *testing.T) {
	srv := serveJSON(200, `{"session":"opaque"}`)
	defer srv.Close()

	_, err := Fetch(context.Background(), nil, srv.URL)
	var ce *CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("err=%v, want CredentialError", err)
	}
}

func TestFetchUnreachable(t *testing.T) {
	_, err := Fetch(context.Background(), nil, "http://127.0.0.1:1/session")
	var ce *CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("err=%v, want CredentialError", err)
	}
}

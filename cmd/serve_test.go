package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voicemap/voicemap/internal/config"
)

func newTestProxy(t *testing.T, vendorStatus int, vendorBody string) (*proxyServer, *httptest.Server) {
	t.Helper()
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/sessions" {
			t.Errorf("vendor path=%q, want /realtime/sessions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-server" {
			t.Errorf("authorization=%q, want server API key", got)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode mint request: %v", err)
		}
		if req["model"] != "gpt-4o-realtime-preview" {
			t.Errorf("model=%q, want configured model", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(vendorStatus)
		w.Write([]byte(vendorBody))
	}))
	t.Cleanup(vendor.Close)

	cfg := &config.Config{
		OpenAI: config.OpenAIConfig{
			APIKey:  "sk-server",
			Model:   "gpt-4o-realtime-preview",
			Voice:   "verse",
			BaseURL: vendor.URL,
		},
	}
	return &proxyServer{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}, vendor
}

func TestHandleSessionPassThrough(t *testing.T) {
	const body = `{"client_secret":{"value":"ek_minted"},"model":"gpt-4o-realtime-preview"}`
	s, _ := newTestProxy(t, http.StatusOK, body)

	rec := httptest.NewRecorder()
	s.handleSession(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != body {
		t.Fatalf("body=%q, want vendor response verbatim", got)
	}
}

func TestHandleSessionPropagatesVendorError(t *testing.T) {
	s, _ := newTestProxy(t, http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`)

	rec := httptest.NewRecorder()
	s.handleSession(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want vendor 401 propagated", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid api key") {
		t.Fatalf("body=%q, want vendor error passed through", rec.Body.String())
	}
}

func TestHandleSessionMethodNotAllowed(t *testing.T) {
	s, _ := newTestProxy(t, http.StatusOK, `{}`)

	rec := httptest.NewRecorder()
	s.handleSession(rec, httptest.NewRequest(http.MethodPost, "/session", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestProxy(t, http.StatusOK, `{}`)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status field=%v, want ok", resp["status"])
	}
}

func TestHandleIndexServesDemoPage(t *testing.T) {
	s, _ := newTestProxy(t, http.StatusOK, `{}`)

	rec := httptest.NewRecorder()
	s.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "voicemap") {
		t.Fatal("demo page missing")
	}

	rec = httptest.NewRecorder()
	s.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d for unknown path, want 404", rec.Code)
	}
}

func TestParseCenter(t *testing.T) {
	lat, lng, err := parseCenter("40.7, -74.0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if lat != 40.7 || lng != -74.0 {
		t.Fatalf("got %v,%v, want 40.7,-74.0", lat, lng)
	}

	if _, _, err := parseCenter("garbage"); err == nil {
		t.Fatal("expected error for malformed center")
	}
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voicemap/voicemap/internal/config"
	"github.com/voicemap/voicemap/internal/serveui"
	"github.com/voicemap/voicemap/internal/signal"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credential proxy and demo page",
	Long: `Run the local HTTP server backing voicemap clients.

Endpoints:
  GET /session   mint a short-lived realtime credential
  GET /healthz   liveness
  GET /          demo page

The server-held OPENAI_API_KEY never leaves this process; clients only see
the ephemeral credential.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Serve.Host = serveHost
	}
	if servePort != 0 {
		cfg.Serve.Port = servePort
	}
	if cfg.Serve.Port <= 0 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", cfg.Serve.Port)
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("no API key configured (set OPENAI_API_KEY or openai.api_key)")
	}

	ctx, stop := signal.NotifyContext()
	defer stop()

	s := &proxyServer{cfg: cfg}
	if err := s.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "voicemap serve listening on http://%s:%d\n", cfg.Serve.Host, cfg.Serve.Port)
	fmt.Fprintf(cmd.ErrOrStderr(), "model: %s voice: %s\n", cfg.OpenAI.Model, cfg.OpenAI.Voice)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

type proxyServer struct {
	cfg    *config.Config
	server *http.Server
	client *http.Client
}

func (s *proxyServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/session", s.cors(s.handleSession))
	mux.HandleFunc("/", s.handleIndex)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Serve.Host, s.cfg.Serve.Port),
		Handler: mux,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 15 * time.Second}
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

func (s *proxyServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *proxyServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *proxyServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(serveui.IndexHTML())
}

// handleSession mints an ephemeral realtime credential from the server-held
// API key and passes the vendor response through verbatim, so clients can
// extract the secret the same way against either endpoint shape.
func (s *proxyServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := json.Marshal(map[string]string{
		"model": s.cfg.OpenAI.Model,
		"voice": s.cfg.OpenAI.Voice,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	url := strings.TrimSuffix(s.cfg.OpenAI.BaseURL, "/") + "/realtime/sessions"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenAI.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("mint credential: %v", err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("read vendor response: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func (s *proxyServer) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

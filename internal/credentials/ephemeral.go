// Package credentials fetches the short-lived client credential from the
// local proxy endpoint. The proxy holds the real API key; clients only ever
// see the ephemeral value.
package credentials

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// CredentialError indicates the credential endpoint was unreachable,
// non-200, or returned a body with no recognizable secret. Fatal to
// session start.
type CredentialError struct {
	Status int
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential fetch: %v", e.Err)
	}
	return fmt.Sprintf("credential fetch: status %d", e.Status)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Ephemeral is the short-lived credential plus the model the proxy
// resolved for it, when present.
type Ephemeral struct {
	Secret string
	Model  string
}

// secretPaths are the key paths probed for the ephemeral value. Proxy
// payload shapes have drifted across vendor API revisions, so extraction
// is defensive.
var secretPaths = []string{
	"client_secret.value",
	"client_secret",
	"value",
	"token",
}

// Fetch GETs url and extracts the ephemeral credential from the JSON body.
func Fetch(ctx context.Context, client *http.Client, url string) (*Ephemeral, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CredentialError{Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &CredentialError{Status: resp.StatusCode}
	}

	secret := ""
	for _, path := range secretPaths {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			secret = v.Str
			break
		}
	}
	if secret == "" {
		return nil, &CredentialError{Err: fmt.Errorf("no credential found in response")}
	}

	return &Ephemeral{
		Secret: secret,
		Model:  gjson.GetBytes(body, "model").String(),
	}, nil
}

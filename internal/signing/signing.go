// Package signing produces detached document signatures through a signing
// bridge that holds the taxpayer's hardware token. The bridge exposes a single
// endpoint that accepts the canonical document bytes and returns a CAdES-BES
// signature; this package does not implement any signing algorithm itself.
package signing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const signPath = "/api/v1/sign"

// maxResponseSize bounds the bridge response body.
const maxResponseSize = 1 << 20

type signRequest struct {
	Data       string `json:"data"`
	Credential string `json:"credential"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// Remote signs documents by calling the signing bridge over HTTP.
type Remote struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// New creates a Remote signer from the given configuration.
func New(cfg *Config, logger *slog.Logger) *Remote {
	return &Remote{
		client:  &http.Client{Timeout: cfg.TimeoutDuration()},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger.With("system", "signing"),
	}
}

// Sign returns the signature of canonical made with the named credential.
// All failures wrap ErrSigningFailed.
func (s *Remote) Sign(ctx context.Context, canonical []byte, credential string) ([]byte, error) {
	body, err := json.Marshal(signRequest{
		Data:       base64.StdEncoding.EncodeToString(canonical),
		Credential: credential,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrSigningFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+signPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrSigningFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrSigningFailed, err)
	}

	var out signResponse
	if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("%w: decode response: %w", ErrSigningFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: bridge returned %d: %s", ErrSigningFailed, resp.StatusCode, msg)
	}

	sig, err := base64.StdEncoding.DecodeString(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: decode signature: %w", ErrSigningFailed, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrSigningFailed)
	}

	s.logger.Debug("document signed", "bytes", len(canonical))
	return sig, nil
}

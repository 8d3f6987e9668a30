// Package regulator submits signed documents to the Egyptian Tax Authority
// e-invoicing API. Access tokens are obtained with the OAuth2 client
// credentials grant against the ETA identity service.
package regulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/JaimeStill/einvoice/internal/documents"
	"github.com/JaimeStill/einvoice/pkg/lifecycle"
	"github.com/JaimeStill/einvoice/pkg/storage"
)

const submissionPath = "/api/v1/documentsubmissions"

const maxResponseSize = 4 << 20

// Outcome is the regulator's decision for a submitted document.
type Outcome struct {
	Accepted     bool     `json:"accepted"`
	ExternalRef  string   `json:"external_ref,omitempty"`
	SubmissionID string   `json:"submission_id,omitempty"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Client submits documents to the regulator.
type Client struct {
	cfg    Config
	store  storage.System
	logger *slog.Logger

	mu   sync.RWMutex
	http *http.Client
}

// New creates a regulator client. The client is not usable until Connect
// succeeds, either directly or through the startup hook registered by Start.
// store may be nil, in which case receipts are not archived.
func New(cfg *Config, store storage.System, logger *slog.Logger) *Client {
	return &Client{
		cfg:    *cfg,
		store:  store,
		logger: logger.With("system", "regulator"),
	}
}

// Start registers a startup hook that resolves the token endpoint.
func (c *Client) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting regulator client")

	lc.OnStartup(func() error {
		if err := c.Connect(lc.Context()); err != nil {
			c.logger.Error("regulator connection failed", "error", err)
			return err
		}
		return nil
	})

	return nil
}

// Connect resolves the token endpoint, through OIDC discovery unless a token
// URL is configured, and prepares the authenticated HTTP client.
func (c *Client) Connect(ctx context.Context) error {
	tokenURL := c.cfg.TokenURL
	if tokenURL == "" {
		provider, err := oidc.NewProvider(ctx, c.cfg.IssuerURL)
		if err != nil {
			return fmt.Errorf("discover issuer %s: %w", c.cfg.IssuerURL, err)
		}
		tokenURL = provider.Endpoint().TokenURL
	}

	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       c.cfg.ScopeList(),
	}

	// The token source outlives ctx, which may be a startup-scoped context.
	client := cc.Client(context.WithoutCancel(ctx))
	client.Timeout = c.cfg.TimeoutDuration()

	c.mu.Lock()
	c.http = client
	c.mu.Unlock()

	c.logger.Info("regulator client connected", "token_url", tokenURL)
	return nil
}

// Submit sends one signed document to the regulator.
// A business decision, accepted or rejected, is returned as an Outcome.
// Failures that prevent a decision are returned as *TransportError.
func (c *Client) Submit(ctx context.Context, doc *documents.Document) (Outcome, error) {
	c.mu.RLock()
	client := c.http
	c.mu.RUnlock()

	if client == nil {
		return Outcome{}, &TransportError{Err: ErrNotConnected}
	}
	if !doc.Signed() {
		return Outcome{}, fmt.Errorf("document %s is not signed", doc.ID)
	}

	body, err := buildEnvelope(doc.Payload, doc.Signature)
	if err != nil {
		return Outcome{}, fmt.Errorf("build envelope for %s: %w", doc.ID, err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + submissionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Outcome{}, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return rejectedFromBody(data, resp.StatusCode), nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Outcome{}, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var sr submissionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return Outcome{}, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	outcome := decide(sr, doc.InternalID)
	if outcome.Accepted {
		c.archiveReceipt(ctx, doc, data)
	}

	c.logger.Debug(
		"document submission decided",
		"id", doc.ID,
		"accepted", outcome.Accepted,
		"submission_id", outcome.SubmissionID,
	)
	return outcome, nil
}

func decide(sr submissionResponse, internalID string) Outcome {
	for _, a := range sr.AcceptedDocuments {
		if a.InternalID == internalID || len(sr.AcceptedDocuments) == 1 {
			return Outcome{Accepted: true, ExternalRef: a.UUID, SubmissionID: sr.SubmissionID}
		}
	}

	out := Outcome{SubmissionID: sr.SubmissionID}
	for _, r := range sr.RejectedDocuments {
		if r.InternalID == internalID || len(sr.RejectedDocuments) == 1 {
			out.Reasons = r.Error.reasons()
			break
		}
	}
	if len(out.Reasons) == 0 {
		out.Reasons = []string{"document missing from submission response"}
	}
	return out
}

func rejectedFromBody(data []byte, status int) Outcome {
	var body struct {
		Error etaError `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if reasons := body.Error.reasons(); len(reasons) > 0 {
			return Outcome{Reasons: reasons}
		}
	}
	return Outcome{Reasons: []string{http.StatusText(status)}}
}

// ReceiptKey returns the storage key of the archived submission receipt for a document.
func ReceiptKey(id uuid.UUID) string {
	return fmt.Sprintf("receipts/%s.json", id)
}

func (c *Client) archiveReceipt(ctx context.Context, doc *documents.Document, data []byte) {
	if c.store == nil {
		return
	}
	key := ReceiptKey(doc.ID)
	if err := c.store.Put(ctx, key, data, "application/json"); err != nil {
		c.logger.Warn("receipt archive failed", "id", doc.ID, "key", key, "error", err)
	}
}

package tags

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// VerifiedTag is the tag value applied to a customer record once the shopper
// proves ownership of their email address.
const VerifiedTag = "email-verified"

// Mutator applies the verified tag to a customer on the storefront platform.
// Implementations must be safe for concurrent use.
type Mutator interface {
	AddVerifiedTag(ctx context.Context, customerID string) error
}

// HTTPConfig points the mutator at the storefront admin API. The endpoint
// and token are process-wide configuration injected at startup.
type HTTPConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// HTTPMutator POSTs a tag mutation to the storefront admin API.
type HTTPMutator struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPMutator describes the newhttpmutator operation and its observable behavior.
func NewHTTPMutator(cfg HTTPConfig) (*HTTPMutator, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tag mutation endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPMutator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type tagRequest struct {
	CustomerID string `json:"customer_id"`
	Tag        string `json:"tag"`
}

// AddVerifiedTag describes the addverifiedtag operation and its observable behavior.
//
// AddVerifiedTag may return an error when input validation, dependency calls, or security checks fail.
func (m *HTTPMutator) AddVerifiedTag(ctx context.Context, customerID string) error {
	if customerID == "" {
		return errors.New("empty customer id")
	}

	body, err := json.Marshal(tagRequest{CustomerID: customerID, Tag: VerifiedTag})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.Token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tag mutation rejected: status %d", resp.StatusCode)
	}
	return nil
}

// NoOpMutator accepts every mutation without side effects. Test and
// development use.
type NoOpMutator struct{}

// AddVerifiedTag describes the addverifiedtag operation and its observable behavior.
func (NoOpMutator) AddVerifiedTag(context.Context, string) error { return nil }

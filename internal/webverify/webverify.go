// Package webverify is the external product-verification collaborator
// (C9's web-verification reconciliation step), modeled as a bounded-
// timeout HTTP call returning discovered products for a manufacturer/
// hints pair, per SPEC_FULL.md §4.9. An async external collaborator per
// spec.md §1; no pack dependency targets this bespoke lookup protocol, so
// stdlib net/http is used deliberately (DESIGN.md).
package webverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VerifyResult is the reconciliation input internal/classify folds back
// into the relational graph: products discovered for the manufacturer
// that the LLM call didn't already name.
type VerifyResult struct {
	Manufacturer     string           `json:"manufacturer"`
	DiscoveredModels []DiscoveredModel `json:"discovered_models"`
}

type DiscoveredModel struct {
	Model  string `json:"model"`
	Series string `json:"series"`
}

// Client calls the web-verification service.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type verifyRequest struct {
	Manufacturer string   `json:"manufacturer"`
	Hints        []string `json:"hints"`
}

// Verify asks the external collaborator to confirm/discover products for
// manufacturer given hint strings (model numbers, series names already
// seen in the text). A non-2xx or network failure is always treated as
// transient by the caller: classification must proceed in AUTO/degraded
// mode rather than block on this collaborator, per spec.md §4.9.
func (c *Client) Verify(ctx context.Context, manufacturer string, hints []string) (*VerifyResult, error) {
	payload, err := json.Marshal(verifyRequest{Manufacturer: manufacturer, Hints: hints})
	if err != nil {
		return nil, fmt.Errorf("webverify: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("webverify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webverify: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("webverify: returned status %d", resp.StatusCode)
	}

	var result VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("webverify: decode response: %w", err)
	}
	return &result, nil
}

// Package modelserver is the remote model-serving client (C5/C9/C11/C14's
// shared dependency): a plain net/http JSON client treated as a remote
// embed(text)→float32[768] / analyze(pages)→classification / generate
// (prompt,context)→answer service, per spec.md §4.11's "model server is
// treated as a remote embed(text) → float32[768]" framing. No available
// library targets this engine's bespoke model-serving protocol, so stdlib
// net/http is the deliberate, justified choice here (DESIGN.md).
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

// Client is the Model[Req,Res]-shaped (per internal/pdftext, internal/
// visual) HTTP client wired to config.ModelServer.
type Client struct {
	baseURL     string
	visionModel string
	http        *http.Client
}

func New(baseURL, visionModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: baseURL, visionModel: visionModel, http: &http.Client{Timeout: timeout}}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Embed implements the Embedder port internal/embedding depends on.
func (c *Client) Embed(ctx context.Context, text string) ([engine.EmbeddingDim]float32, error) {
	var out [engine.EmbeddingDim]float32
	var resp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Text: text}, &resp); err != nil {
		return out, err
	}
	if len(resp.Vector) != engine.EmbeddingDim {
		return out, fmt.Errorf("model server returned %d-dim vector, want %d", len(resp.Vector), engine.EmbeddingDim)
	}
	copy(out[:], resp.Vector)
	return out, nil
}

// AnalyzeRequest carries the first N pages classification reads, spec.md §4.9.
type AnalyzeRequest struct {
	Pages []string `json:"pages"`
}

// AnalyzeResponse is the raw classification call result, before AUTO
// degraded-mode handling in internal/classify.
type AnalyzeResponse struct {
	DocumentType string   `json:"document_type"`
	Manufacturer string   `json:"manufacturer"`
	Series       string   `json:"series"`
	Models       []string `json:"models"`
	Options      []string `json:"options"`
	Version      string   `json:"version"`
	Confidence   float64  `json:"confidence"`
	Language     string   `json:"language"`
}

// Analyze runs the classification LLM call, spec.md §4.9.
func (c *Client) Analyze(ctx context.Context, pages []string) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.post(ctx, "/api/analyze", AnalyzeRequest{Pages: pages}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type generateRequest struct {
	Prompt  string   `json:"prompt"`
	Context []string `json:"context"`
}

type generateResponse struct {
	Answer string `json:"answer"`
}

// Generate runs the short-answer LLM call of spec.md §4.14's two-stage
// image retrieval: generate(prompt, context=top_k).
func (c *Client) Generate(ctx context.Context, prompt string, contextChunks []string) (string, error) {
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", generateRequest{Prompt: prompt, Context: contextChunks}, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("modelserver: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("modelserver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("modelserver: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("modelserver: %s returned %d (transient)", path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("modelserver: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("modelserver: decode %s response: %w", path, err)
	}
	return nil
}

package pdftext

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// execBackend shells out to an external converter process: neither pymupdf
// nor pdfplumber has a Go binding, so both named backends below are thin
// wrappers around a converter binary that emits the PageSet shape as JSON
// on stdout.
type execBackend struct {
	name string
	bin  string
	args []string
}

// pageSetWire is the converter binary's JSON output contract: {"pages":
// {"1": "text", ...}, "structured": {"1": "..."}, "page_count": N,
// "title": "...", "language": "...", "creator": "..."}.
type pageSetWire struct {
	Pages      map[string]string `json:"pages"`
	Structured map[string]string `json:"structured"`
	PageCount  int               `json:"page_count"`
	Title      string            `json:"title"`
	Language   string            `json:"language"`
	Creator    string            `json:"creator"`
}

func (b *execBackend) Name() string { return b.name }

func (b *execBackend) ExtractPages(ctx context.Context, path string) (*PageSet, error) {
	args := append(append([]string{}, b.args...), path)
	cmd := exec.CommandContext(ctx, b.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: extractor failed: %w: %s", b.name, err, stderr.String())
	}

	var wire pageSetWire
	if err := json.NewDecoder(bufio.NewReader(&stdout)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%s: decode extractor output: %w", b.name, err)
	}

	out := &PageSet{
		PageTexts: make(map[int]string, len(wire.Pages)),
		Metadata: DocumentMetadata{
			PageCount: wire.PageCount,
			Title:     wire.Title,
			Language:  wire.Language,
			Creator:   wire.Creator,
		},
	}
	for k, v := range wire.Pages {
		n, err := parsePageNumber(k)
		if err != nil {
			continue
		}
		out.PageTexts[n] = v
	}
	if len(wire.Structured) > 0 {
		out.StructuredTexts = make(map[int]string, len(wire.Structured))
		for k, v := range wire.Structured {
			if n, err := parsePageNumber(k); err == nil {
				out.StructuredTexts[n] = v
			}
		}
	}
	return out, nil
}

func parsePageNumber(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// NewPyMuPDFEquivBackend wraps the PYMUPDF_EXTRACTOR_BIN binary (default
// "pymupdf-extractor"), the fast default path of spec.md §4.5.
func NewPyMuPDFEquivBackend() Backend {
	bin := os.Getenv("PYMUPDF_EXTRACTOR_BIN")
	if bin == "" {
		bin = "pymupdf-extractor"
	}
	return &execBackend{name: "pymupdf_equiv", bin: bin, args: []string{"--mode", "fast"}}
}

// NewPDFPlumberEquivBackend wraps the PDFPLUMBER_EXTRACTOR_BIN binary
// (default "pdfplumber-extractor"), the layout-aware alternate backend of
// spec.md §4.5 (selected via PDF_ENGINE=pdfplumber_equiv).
func NewPDFPlumberEquivBackend() Backend {
	bin := os.Getenv("PDFPLUMBER_EXTRACTOR_BIN")
	if bin == "" {
		bin = "pdfplumber-extractor"
	}
	return &execBackend{name: "pdfplumber_equiv", bin: bin, args: []string{"--mode", "layout"}}
}

package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
)

// Extractor selects a Backend by config.EngineConfig.PDFEngine and applies
// the OCR fallback rule of spec.md §4.5: OCR runs per-page, only for pages
// with empty text, never re-OCRing a page that already extracted text.
type Extractor struct {
	backend Backend
	ocr     OCRBackend
	ocrOn   bool
	logger  *slog.Logger
}

func NewExtractor(cfg *config.EngineConfig, ocr OCRBackend, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	var backend Backend
	switch cfg.PDFEngine {
	case config.PDFEnginePDFPlumberEquiv:
		backend = NewPDFPlumberEquivBackend()
	default:
		backend = NewPyMuPDFEquivBackend()
	}
	return &Extractor{backend: backend, ocr: ocr, ocrOn: cfg.EnableOCRFallback, logger: logger}
}

// ExtractText runs the selected backend and, where enabled, OCRs any page
// that came back with empty text.
func (e *Extractor) ExtractText(ctx context.Context, path string) (*PageSet, error) {
	pages, err := e.backend.ExtractPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("pdftext: %s: %w", e.backend.Name(), err)
	}
	if !e.ocrOn || e.ocr == nil {
		return pages, nil
	}
	for page, text := range pages.PageTexts {
		if strings.TrimSpace(text) != "" {
			continue
		}
		ocrText, err := e.ocr.OCRPage(ctx, path, page)
		if err != nil {
			e.logger.Warn("ocr fallback failed", slog.Int("page", page), slog.String("err", err.Error()))
			continue
		}
		pages.PageTexts[page] = ocrText
	}
	return pages, nil
}

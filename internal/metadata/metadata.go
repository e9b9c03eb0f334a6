// Package metadata is C9's second sub-component: a manufacturer-aware
// regex catalogue pulling error codes and a best-version string from the
// first few pages of the document, per spec.md §4.9.
package metadata

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/contextextract"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pattern"
)

// versionPattern matches a firmware/version string following one of the
// common labels service manuals use.
var versionPattern = regexp.MustCompile(`(?i)\b(?:(?:firmware\s+)?version|firmware|rev\.?)\s*[:\-]?\s*([A-Za-z0-9][A-Za-z0-9.\-]{0,14}[A-Za-z0-9])`)

var (
	criticalKeywords   = []string{"safety", "fire", "electric shock", "critical"}
	highKeywords       = []string{"malfunction", "failure", "fail", "fault"}
	lowKeywords        = []string{"paper jam", "low toner", "cover open"}
	technicianKeywords = []string{"technician", "call service", "service personnel"}
	partsKeywords      = []string{"replace", "replacement part", "new part", "install a new"}
)

// ErrorCodeWriter is the DatabaseAdapter-shaped primary write path.
type ErrorCodeWriter interface {
	InsertErrorCode(ctx context.Context, ec *engine.ErrorCode) error
}

// TableInserter is the Supabase-style fallback write path: a generic
// table-insert RPC the primary adapter doesn't have to implement.
type TableInserter interface {
	InsertRow(ctx context.Context, table string, row map[string]any) error
}

// Stage implements engine.Processor for C9's metadata-extraction
// sub-component.
type Stage struct {
	Primary  ErrorCodeWriter
	Fallback TableInserter
	MaxPages int
	Logger   *slog.Logger
}

func NewStage(primary ErrorCodeWriter, fallback TableInserter, maxPages int, logger *slog.Logger) *Stage {
	if maxPages <= 0 {
		maxPages = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{Primary: primary, Fallback: fallback, MaxPages: maxPages, Logger: logger}
}

func (s *Stage) Name() string             { return "metadata_extraction" }
func (s *Stage) Stage() engine.Stage      { return engine.StageMetadataExtraction }
func (s *Stage) RequiredInputs() []string { return []string{"page_texts"} }
func (s *Stage) Outputs() []string        { return []string{"error_code_count", "version"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()
	maxPages := s.MaxPages
	if pc.Config.MetadataMaxPages > 0 {
		maxPages = pc.Config.MetadataMaxPages
	}

	if s.Primary == nil && s.Fallback == nil {
		s.Logger.Warn("metadata extraction has no write path wired, skipping persistence")
	}

	pages := sortedPages(pc.PageTexts)
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}

	version := ""
	written := 0
	for _, page := range pages {
		text := pc.PageTexts[page]
		if version == "" {
			if m := versionPattern.FindStringSubmatch(text); m != nil {
				version = m[1]
			}
		}
		for _, code := range pattern.FindErrorCodes(text) {
			offset := strings.Index(text, code)
			if offset < 0 {
				continue
			}
			mc := contextextract.Extract(text, offset)
			ec := &engine.ErrorCode{
				ID:                uuid.New(),
				DocumentID:        pc.DocumentID,
				Code:              code,
				Description:       mc.ContextCaption,
				PageNumber:        page,
				Confidence:        0.6,
				Severity:          classifySeverity(mc.ContextCaption),
				ExtractionMethod:  "regex",
				RequiresTechnician: containsAny(mc.ContextCaption, technicianKeywords),
				RequiresParts:      containsAny(mc.ContextCaption, partsKeywords),
			}
			if ok := s.writeErrorCode(ctx, ec); ok {
				written++
			}
		}
	}

	return engine.Completed(s.Name(), map[string]any{
		"error_code_count": written,
		"version":          version,
	}, time.Since(start)), nil
}

func (s *Stage) writeErrorCode(ctx context.Context, ec *engine.ErrorCode) bool {
	switch {
	case s.Primary != nil:
		if err := s.Primary.InsertErrorCode(ctx, ec); err != nil {
			s.Logger.Warn("primary error code write failed", slog.String("code", ec.Code), slog.String("err", err.Error()))
			return false
		}
		return true
	case s.Fallback != nil:
		row := map[string]any{
			"id":                  ec.ID,
			"document_id":         ec.DocumentID,
			"code":                ec.Code,
			"description":         ec.Description,
			"page_number":         ec.PageNumber,
			"confidence":          ec.Confidence,
			"severity":            ec.Severity,
			"extraction_method":   ec.ExtractionMethod,
			"requires_technician": ec.RequiresTechnician,
			"requires_parts":      ec.RequiresParts,
		}
		if err := s.Fallback.InsertRow(ctx, "error_codes", row); err != nil {
			s.Logger.Warn("fallback error code write failed", slog.String("code", ec.Code), slog.String("err", err.Error()))
			return false
		}
		return true
	default:
		return false
	}
}

func classifySeverity(caption string) engine.Severity {
	lower := strings.ToLower(caption)
	switch {
	case containsAny(lower, criticalKeywords):
		return engine.SeverityCritical
	case containsAny(lower, highKeywords):
		return engine.SeverityHigh
	case containsAny(lower, lowKeywords):
		return engine.SeverityLow
	default:
		return engine.SeverityMedium
	}
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func sortedPages(pageTexts map[int]string) []int {
	pages := make([]int, 0, len(pageTexts))
	for p := range pageTexts {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Package classify is the document classification stage (C9's first
// sub-component): a small model-server call over the first N pages
// deciding document_type/manufacturer/series/models/options/version/
// confidence/language, reconciled with an external web-verification
// collaborator that can discover additional products, per spec.md §4.9.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/ptr"
)

// AutoManufacturer is the degraded-mode manufacturer value downstream
// stages must accept when the LLM is unavailable, spec.md §4.9.
const AutoManufacturer = "AUTO"

// UnknownDocumentType is recorded, alongside confidence 0, when the model
// server responds but its output can't be parsed into a usable
// classification — the Open Question resolution in SPEC_FULL.md §9: never
// a defaulted 0.5/service_manual guess.
const UnknownDocumentType = "unknown"

// Extra context keys the Classification stage writes, that Metadata/Parts/
// Series declare as RequiredInputs.
const (
	ExtraManufacturer = "manufacturer"
	ExtraModel        = "model"
	ExtraModels       = "models"
)

// AnalyzeResponse mirrors the fields of internal/modelserver.AnalyzeResponse
// this package actually reads, narrowing the dependency to a Model[Req,Res]
// shaped port like C5/C11.
type AnalyzeResponse struct {
	DocumentType string
	Manufacturer string
	Series       string
	Models       []string
	Options      []string
	Version      string
	Confidence   float64
	Language     string
}

// Analyzer is the model-server classification call.
type Analyzer interface {
	Analyze(ctx context.Context, pages []string) (*AnalyzeResponse, error)
}

// DiscoveredModel is one product the web-verification collaborator found.
type DiscoveredModel struct {
	Model  string
	Series string
}

// VerifyResult is the web-verification reconciliation response.
type VerifyResult struct {
	Manufacturer     string
	DiscoveredModels []DiscoveredModel
}

// Verifier is the external web-verification collaborator, spec.md §4.9.
type Verifier interface {
	Verify(ctx context.Context, manufacturer string, hints []string) (*VerifyResult, error)
}

// Stage implements engine.Processor for C9's classification sub-component.
type Stage struct {
	Analyzer  Analyzer
	Verifier  Verifier
	Documents store.DocumentStore
	Graph     store.GraphStore
	MaxPages  int
	Logger    *slog.Logger
}

func NewStage(analyzer Analyzer, verifier Verifier, documents store.DocumentStore, graph store.GraphStore, maxPages int, logger *slog.Logger) *Stage {
	if maxPages <= 0 {
		maxPages = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{Analyzer: analyzer, Verifier: verifier, Documents: documents, Graph: graph, MaxPages: maxPages, Logger: logger}
}

func (s *Stage) Name() string             { return "classification" }
func (s *Stage) Stage() engine.Stage      { return engine.StageClassification }
func (s *Stage) RequiredInputs() []string { return []string{"page_texts"} }
func (s *Stage) Outputs() []string        { return []string{ExtraManufacturer, ExtraModel, "document_type"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()
	maxPages := s.MaxPages
	if pc.Config.ClassificationMaxPages > 0 {
		maxPages = pc.Config.ClassificationMaxPages
	}
	pages := firstNPages(pc.PageTexts, maxPages)

	resp, err := s.Analyzer.Analyze(ctx, pages)
	degraded := false
	switch {
	case err != nil:
		s.Logger.Warn("classification model call failed, degrading to AUTO", slog.String("err", err.Error()))
		resp = &AnalyzeResponse{Manufacturer: AutoManufacturer, DocumentType: UnknownDocumentType}
		degraded = true
	case !looksParsed(resp):
		s.Logger.Warn("classification response unparsable, recording confidence 0")
		resp.DocumentType = UnknownDocumentType
		resp.Confidence = 0
	}

	doc, err := s.Documents.GetDocument(ctx, pc.DocumentID)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}
	doc.DocumentType = resp.DocumentType
	doc.Manufacturer = nonEmptyPtr(resp.Manufacturer)
	if len(resp.Models) > 0 {
		doc.Model = ptr.Pointer(resp.Models[0])
	}
	doc.Language = nonEmptyPtr(resp.Language)
	doc.Version = nonEmptyPtr(resp.Version)
	if err := s.Documents.UpdateDocument(ctx, doc); err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	pc.Extra.Put(ExtraManufacturer, resp.Manufacturer)
	if len(resp.Models) > 0 {
		pc.Extra.Put(ExtraModel, resp.Models[0])
	}
	pc.Extra.Put(ExtraModels, resp.Models)
	pc.Extra.Put("document_type", resp.DocumentType)

	discovered := 0
	if !degraded && resp.Manufacturer != "" && resp.Manufacturer != AutoManufacturer && s.Verifier != nil && s.Graph != nil {
		discovered = s.reconcile(ctx, resp)
	}

	data := map[string]any{
		"document_type":     resp.DocumentType,
		"manufacturer":      resp.Manufacturer,
		"confidence":        resp.Confidence,
		"degraded":          degraded,
		"discovered_models": discovered,
	}
	return engine.Completed(s.Name(), data, time.Since(start)), nil
}

// reconcile asks the web-verification collaborator to confirm/discover
// products for the classified manufacturer and persists any it finds.
// Failures here are logged and swallowed: classification's own result
// already stands, and the collaborator is best-effort per spec.md §4.9.
func (s *Stage) reconcile(ctx context.Context, resp *AnalyzeResponse) int {
	result, err := s.Verifier.Verify(ctx, resp.Manufacturer, resp.Models)
	if err != nil {
		s.Logger.Warn("web verification reconciliation failed", slog.String("err", err.Error()))
		return 0
	}
	mfg, err := s.Graph.UpsertManufacturer(ctx, resp.Manufacturer)
	if err != nil {
		s.Logger.Warn("upsert manufacturer failed", slog.String("err", err.Error()))
		return 0
	}
	count := 0
	for _, dm := range result.DiscoveredModels {
		if dm.Model == "" {
			continue
		}
		_, err := s.Graph.UpsertProduct(ctx, &engine.Product{
			ID:             uuid.New(),
			ManufacturerID: mfg.ID,
			Model:          dm.Model,
		})
		if err != nil {
			var dup *store.ErrUniqueViolation
			if errors.As(err, &dup) {
				continue
			}
			s.Logger.Warn("upsert discovered product failed", slog.String("model", dm.Model), slog.String("err", err.Error()))
			continue
		}
		count++
	}
	return count
}

func looksParsed(resp *AnalyzeResponse) bool {
	return resp != nil && (resp.DocumentType != "" || resp.Manufacturer != "")
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return ptr.Pointer(s)
}

// firstNPages joins up to n page texts, in ascending page-number order, the
// input the classification model call reads, spec.md §4.9.
func firstNPages(pageTexts map[int]string, n int) []string {
	if n <= 0 || len(pageTexts) == 0 {
		return nil
	}
	pages := make([]int, 0, len(pageTexts))
	for p := range pageTexts {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	if len(pages) > n {
		pages = pages[:n]
	}
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, strings.TrimSpace(pageTexts[p]))
	}
	return out
}

// Package textextract adapts internal/pdftext's Extractor into an
// engine.Processor for stage 2, text_extraction, per spec.md §4.5. The
// extraction algorithm itself lives in internal/pdftext; this package
// owns only the stage boundary — reading pc.FilePath, writing
// pc.PageTexts back onto the shared context for every later stage to read.
package textextract

import (
	"context"
	"fmt"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pdftext"
)

// Extractor is the narrow port over *pdftext.Extractor this stage depends
// on, so tests can substitute a stub without building a *config.EngineConfig.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (*pdftext.PageSet, error)
}

type Stage struct {
	Extractor Extractor
}

func NewStage(extractor Extractor) *Stage {
	return &Stage{Extractor: extractor}
}

func (s *Stage) Name() string             { return "text_extraction_stage" }
func (s *Stage) Stage() engine.Stage      { return engine.StageTextExtraction }
func (s *Stage) RequiredInputs() []string { return []string{"file_path"} }
func (s *Stage) Outputs() []string        { return []string{"page_count", "page_texts"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	if pc.FilePath == "" {
		return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("text_extraction: file_path required"))
	}

	pages, err := s.Extractor.ExtractText(ctx, pc.FilePath)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("text_extraction: %w", err))
	}

	pc.PageTexts = pages.PageTexts

	return engine.Completed(s.Name(), map[string]any{
		"page_count": len(pages.PageTexts),
	}, time.Since(start)), nil
}

// Package parts is C9's third sub-component: manufacturer-keyed
// part-number extraction over chunks, category classification from
// context keywords, and best-effort linking of parts to the error codes
// that reference them, per spec.md §4.9.
package parts

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/classify"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/sets"
)

// manufacturerPatterns maps a lowercase manufacturer substring to the
// part-number shape that manufacturer's catalogues use, spec.md §4.9.
var manufacturerPatterns = map[string]*regexp.Regexp{
	"hp":      regexp.MustCompile(`\b[A-Z]{1,2}\d{3,4}[A-Z]{0,2}\b`),
	"konica":  regexp.MustCompile(`\bA[0-9A-Z]{4}-R\d{3}-\d{2}\b`),
	"canon":   regexp.MustCompile(`\bFM\d-\d{4}-\d{3}\b`),
	"lexmark": regexp.MustCompile(`\b40X\d{4}\b`),
}

// genericPattern is the fallback shape tried when no manufacturer-specific
// pattern matches or the manufacturer is AUTO/unknown.
var genericPattern = regexp.MustCompile(`\b[A-Z]{1,3}\d{3,6}[A-Z]{0,2}\b`)

type categoryRule struct {
	keywords []string
	category engine.PartCategory
}

// categoryRules are checked in order; the first keyword match wins,
// per spec.md §4.9's toner/drum → consumable, etc. mapping.
var categoryRules = []categoryRule{
	{[]string{"toner", "drum"}, engine.PartCategoryConsumable},
	{[]string{"assembly", "unit"}, engine.PartCategoryAssembly},
	{[]string{"sensor", "motor", "board"}, engine.PartCategoryComponent},
	{[]string{"roller", "gear", "belt"}, engine.PartCategoryMechanical},
	{[]string{"cable", "harness", "connector"}, engine.PartCategoryElectrical},
}

// Stage implements engine.Processor for C9's parts-extraction sub-component.
type Stage struct {
	Graph  store.GraphStore
	Logger *slog.Logger
}

func NewStage(graph store.GraphStore, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{Graph: graph, Logger: logger}
}

func (s *Stage) Name() string             { return "parts_extraction" }
func (s *Stage) Stage() engine.Stage      { return engine.StagePartsExtraction }
func (s *Stage) RequiredInputs() []string { return []string{"chunks"} }
func (s *Stage) Outputs() []string        { return []string{"parts_count", "links_count"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()
	manufacturerName, _ := pc.Extra.Get(classify.ExtraManufacturer).(string)
	if manufacturerName == "" {
		manufacturerName = classify.AutoManufacturer
	}
	mfg, err := s.Graph.UpsertManufacturer(ctx, manufacturerName)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	partPattern := patternFor(manufacturerName)
	partIDs := map[string]uuid.UUID{}
	partsWritten := 0

	for _, chunk := range pc.Chunks {
		matches := partPattern.FindAllString(chunk.Text, -1)
		if matches == nil {
			continue
		}
		for _, m := range dedup(matches) {
			if _, ok := partIDs[m]; ok {
				continue
			}
			p, err := s.Graph.UpsertPart(ctx, &engine.Part{
				ID:             uuid.New(),
				PartNumber:     m,
				ManufacturerID: mfg.ID,
				Description:    contextWindow(chunk.Text, m),
				Category:       categoryFor(chunk.Text),
			})
			if err != nil {
				s.Logger.Warn("upsert part failed", slog.String("part_number", m), slog.String("err", err.Error()))
				continue
			}
			partIDs[m] = p.ID
			partsWritten++
		}
	}

	linksWritten := s.linkToErrorCodes(ctx, pc, partPattern, partIDs)

	return engine.Completed(s.Name(), map[string]any{
		"parts_count": partsWritten,
		"links_count": linksWritten,
	}, time.Since(start)), nil
}

// linkToErrorCodes links parts to the error codes whose solution_text or
// referenced chunk mentions them, per spec.md §4.9. Link creation is
// best-effort: a duplicate-link error is logged and ignored.
func (s *Stage) linkToErrorCodes(ctx context.Context, pc *engine.ProcessingContext, partPattern *regexp.Regexp, partIDs map[string]uuid.UUID) int {
	codes, err := s.Graph.GetErrorCodes(ctx, pc.DocumentID)
	if err != nil || len(codes) == 0 {
		return 0
	}
	chunksByID := make(map[uuid.UUID]*engine.Chunk, len(pc.Chunks))
	for _, c := range pc.Chunks {
		chunksByID[c.ID] = c
	}

	written := 0
	for _, ec := range codes {
		var matches []string
		source := engine.ExtractionSourceChunk
		if ec.Solution != nil && *ec.Solution != "" {
			matches = partPattern.FindAllString(*ec.Solution, -1)
			source = engine.ExtractionSourceSolutionText
		}
		if len(matches) == 0 && ec.ChunkID != nil {
			if c, ok := chunksByID[*ec.ChunkID]; ok {
				matches = partPattern.FindAllString(c.Text, -1)
				source = engine.ExtractionSourceChunk
			}
		}
		for _, m := range dedup(matches) {
			partID, ok := partIDs[m]
			if !ok {
				continue
			}
			err := s.Graph.LinkErrorCodeToPart(ctx, &engine.ErrorCodePartLink{
				ErrorCodeID:      ec.ID,
				PartID:           partID,
				RelevanceScore:   1.0,
				ExtractionSource: source,
			})
			if err != nil {
				var dup *store.ErrUniqueViolation
				if errors.As(err, &dup) {
					continue
				}
				s.Logger.Warn("link error code to part failed", slog.String("code", ec.Code), slog.String("part_number", m), slog.String("err", err.Error()))
				continue
			}
			written++
		}
	}
	return written
}

func patternFor(manufacturer string) *regexp.Regexp {
	lower := strings.ToLower(manufacturer)
	for key, re := range manufacturerPatterns {
		if strings.Contains(lower, key) {
			return re
		}
	}
	return genericPattern
}

func categoryFor(text string) *engine.PartCategory {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				cat := rule.category
				return &cat
			}
		}
	}
	return nil
}

func contextWindow(text, match string) string {
	idx := strings.Index(text, match)
	if idx < 0 {
		return ""
	}
	const radius = 80
	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(match) + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func dedup(items []string) []string {
	set := sets.NewHashSet[string](len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set.ToSlice()
}

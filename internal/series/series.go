// Package series is C9's fourth sub-component: a manufacturer-specific
// pattern matcher deriving a product series name from a model number,
// upserting the ProductSeries and linking the product to it, per spec.md
// §4.9.
package series

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/classify"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

type rule struct {
	manufacturerSubstr string
	pattern            *regexp.Regexp
	seriesName         func(model string, n string) string
}

// rules hold the manufacturer-specific model_number → series derivations
// named in spec.md §4.9: HP M\d{3} → "LaserJet M{n}00 Series", Konica
// Minolta C\d{3} → "bizhub C{n}xx Series", Canon C\d{4} → "imageRUNNER
// ADVANCE C{n}xx Series".
var rules = []rule{
	{
		manufacturerSubstr: "hp",
		pattern:            regexp.MustCompile(`M(\d{3})`),
		seriesName:         func(model, n string) string { return fmt.Sprintf("LaserJet M%s00 Series", n) },
	},
	{
		manufacturerSubstr: "konica",
		pattern:            regexp.MustCompile(`C(\d{3})`),
		seriesName:         func(model, n string) string { return fmt.Sprintf("bizhub C%sxx Series", n) },
	},
	{
		manufacturerSubstr: "canon",
		pattern:            regexp.MustCompile(`C(\d{4})`),
		seriesName:         func(model, n string) string { return fmt.Sprintf("imageRUNNER ADVANCE C%sxx Series", n) },
	},
}

// Derive returns the series name and the model_pattern (the matched
// regex fragment) for a manufacturer/model pair, or ok=false if no
// manufacturer-specific rule matches.
func Derive(manufacturer, model string) (seriesName, modelPattern string, ok bool) {
	lower := strings.ToLower(manufacturer)
	for _, r := range rules {
		if !strings.Contains(lower, r.manufacturerSubstr) {
			continue
		}
		m := r.pattern.FindStringSubmatch(model)
		if m == nil {
			continue
		}
		return r.seriesName(model, m[1]), r.pattern.String(), true
	}
	return "", "", false
}

// Stage implements engine.Processor for C9's series-detection
// sub-component.
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

func (s *Stage) Name() string             { return "series_detection" }
func (s *Stage) Stage() engine.Stage      { return engine.StageSeriesDetection }
func (s *Stage) RequiredInputs() []string { return []string{classify.ExtraManufacturer, classify.ExtraModel} }
func (s *Stage) Outputs() []string        { return []string{"series_name"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()
	manufacturerName, _ := pc.Extra.Get(classify.ExtraManufacturer).(string)
	model, _ := pc.Extra.Get(classify.ExtraModel).(string)

	if manufacturerName == "" || manufacturerName == classify.AutoManufacturer || model == "" {
		return engine.Completed(s.Name(), map[string]any{"series_name": "", "skipped": "no_manufacturer_or_model"}, time.Since(start)), nil
	}

	seriesName, modelPattern, ok := Derive(manufacturerName, model)
	if !ok {
		return engine.Completed(s.Name(), map[string]any{"series_name": "", "skipped": "no_matching_pattern"}, time.Since(start)), nil
	}

	mfg, err := s.Graph.UpsertManufacturer(ctx, manufacturerName)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	productSeries := &engine.ProductSeries{
		ID:             uuid.New(),
		ManufacturerID: mfg.ID,
		SeriesName:     seriesName,
		ModelPattern:   modelPattern,
	}
	if err := s.Graph.CreateProductSeries(ctx, productSeries); err != nil {
		var dup *store.ErrUniqueViolation
		if !errors.As(err, &dup) {
			return nil, engine.NewStageError(engine.ErrorKindTransient, err)
		}
		existing, lookupErr := s.Graph.FindProductSeries(ctx, mfg.ID, seriesName, modelPattern)
		if lookupErr != nil {
			return nil, engine.NewStageError(engine.ErrorKindTransient, lookupErr)
		}
		if existing == nil {
			return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("series %q reported duplicate but lookup found none", seriesName))
		}
		productSeries = existing
	}

	product, err := s.Graph.UpsertProduct(ctx, &engine.Product{
		ID:             uuid.New(),
		ManufacturerID: mfg.ID,
		Model:          model,
		SeriesID:       &productSeries.ID,
	})
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}
	if err := s.Graph.LinkProductToSeries(ctx, product.ID, productSeries.ID); err != nil {
		s.Logger.Warn("link product to series failed", slog.String("series", seriesName), slog.String("err", err.Error()))
	}

	return engine.Completed(s.Name(), map[string]any{"series_name": seriesName}, time.Since(start)), nil
}

package visual

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/dataunit"
)

// SVGStage extracts vector graphics three ways in decreasing specificity
// (per-drawing bbox, embedded xobject, full-page fallback), uploads the
// original SVG, converts it to PNG for downstream vision analysis, and
// queues a ProcessingQueueItem for the Storage stage — exactly spec.md
// §4.7's SVG stage.
type SVGStage struct {
	Backend  Backend
	Objects  ObjectStore
	Pool     *ConverterPool
	Queue    store.QueueStore
	InlineKB int
}

func NewSVGStage(backend Backend, objects ObjectStore, pool *ConverterPool, queue store.QueueStore, inlineThresholdKB int) *SVGStage {
	if inlineThresholdKB <= 0 {
		inlineThresholdKB = 32
	}
	return &SVGStage{Backend: backend, Objects: objects, Pool: pool, Queue: queue, InlineKB: inlineThresholdKB}
}

func (s *SVGStage) Name() string              { return "svg_stage" }
func (s *SVGStage) Stage() engine.Stage       { return engine.StageSVGProcessing }
func (s *SVGStage) RequiredInputs() []string  { return []string{"file_path"} }
func (s *SVGStage) Outputs() []string         { return []string{"svg_count"} }

func (s *SVGStage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()
	if !pc.Config.EnableSVGExtraction {
		return engine.Completed(s.Name(), map[string]any{"svg_count": 0, "skipped": "disabled"}, time.Since(start)), nil
	}

	byPage, err := s.Backend.ExtractVectors(ctx, pc.FilePath)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("extract vectors: %w", err))
	}

	threshold := dataunit.DataSize(s.InlineKB * dataunit.KB)
	count := 0
	for page, vectors := range byPage {
		for _, v := range vectors {
			v = refineMethod(v)
			if err := s.processOne(ctx, pc.DocumentID, page, v, pc.FilePath, threshold); err != nil {
				return nil, engine.NewStageError(engine.ErrorKindPermanent, err)
			}
			count++
		}
	}

	return engine.Completed(s.Name(), map[string]any{"svg_count": count}, time.Since(start)), nil
}

// refineMethod upgrades a backend-reported full-page fallback to the
// embedded-xobject tier when the SVG's own viewBox yields a real bbox the
// backend didn't report, per spec.md §4.7's decreasing-specificity order.
func refineMethod(v RawVector) RawVector {
	if v.BBox != nil {
		return v
	}
	if bbox := svgViewBox(v.SVG); bbox != nil {
		v.BBox = bbox
		if v.Method == MethodFullPage || v.Method == "" {
			v.Method = MethodXObject
		}
	} else if v.Method == "" {
		v.Method = MethodFullPage
	}
	return v
}

func (s *SVGStage) processOne(ctx context.Context, documentID uuid.UUID, page int, v RawVector, pdfPath string, threshold dataunit.DataSize) error {
	key := fmt.Sprintf("%s/svg/%d/%s.svg", documentID, page, uuid.NewString())
	storageURL, err := s.Objects.Put(ctx, key, v.SVG, "image/svg+xml")
	if err != nil {
		return fmt.Errorf("upload svg: %w", err)
	}

	var inline []byte
	if dataunit.DataSize(len(v.SVG)) < threshold {
		inline = v.SVG
	}

	var pngContent []byte
	hasPNG := false
	if s.Pool != nil {
		res := s.Pool.Convert(ctx, pdfPath, v)
		if res.Err == nil {
			pngContent, hasPNG = res.PNG, true
		}
		// Both the library conversion and the PDF-region fallback failing
		// is not a stage failure: the SVG is preserved without a PNG
		// derivative and vision analysis is skipped for this artifact,
		// per spec.md §4.7.
	}

	item := &engine.ProcessingQueueItem{
		ID:           uuid.New(),
		DocumentID:   documentID,
		Stage:        engine.StageStorage.Name(),
		ArtifactType: engine.ArtifactSVG,
		Status:       engine.StatusPending,
		Payload: engine.QueuePayload{
			Image: &engine.ImagePayload{
				Content:          pngContent,
				TempPath:         "",
				ImageType:        string(engine.ImageTypeVectorGraphic),
				PageNumber:       page,
				BBox:             v.BBox,
				SVGStorageURL:    storageURL,
				HasPNGDerivative: hasPNG,
			},
		},
	}
	if inline != nil && item.Payload.Image.Content == nil {
		item.Payload.Image.Content = inline
	}
	return s.Queue.Enqueue(ctx, item)
}

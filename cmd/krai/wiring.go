// Package main is krai, the CLI/HTTP entry point (C15): it wires
// config.EngineConfig into every stage constructor built in the other
// internal packages, registers the resulting engine.Processors with
// internal/pipeline, and exposes --list-stages/--file-path/--document-id/
// --smart/--status over a cobra CLI, per spec.md §6.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/broker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/chunkstage"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/chunker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/classify"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/embedding"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/metadata"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/modelserver"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/objectstore"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/parts"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pdftext"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pipeline"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/processor"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry/broker/dbqueue"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/search"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/searchindex"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/series"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/storagestage"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store/postgres"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/telemetry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/textextract"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/upload"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/videoenrich"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/visual"
)

// deps holds every long-lived collaborator the CLI and HTTP surfaces share,
// so neither has to rebuild a database pool or object-store client.
type deps struct {
	cfg         *config.EngineConfig
	store       *postgres.Store
	pipeline    *pipeline.Pipeline
	search      *search.Service
	thumbBucket *objectstore.Bucket
	renderer    visual.PDFRegionRenderer
	videoClient *videoenrich.Client
	retryBroker broker.Broker
	logger      *slog.Logger
}

// buildDeps assembles the whole engine: database, object store, model
// server client, every per-stage processor, the Master Pipeline registry,
// and the search service — one call, shared by every CLI subcommand and by
// the HTTP server's bootstrap.
func buildDeps(ctx context.Context, cfg *config.EngineConfig) (*deps, error) {
	logger := slog.Default()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("krai: connect database: %w", err)
	}

	objects, err := objectstore.New(ctx, cfg.ObjectStorage)
	if err != nil {
		return nil, fmt.Errorf("krai: connect object store: %w", err)
	}
	imageBucket := objects.Bucket(cfg.ObjectStorage.BucketImages)
	thumbBucket := objects.Bucket(cfg.ObjectStorage.BucketThumbs)

	model := modelserver.New(cfg.ModelServer.URL, cfg.ModelServer.VisionModel, 0)

	processors := buildProcessors(cfg, db, imageBucket, model, logger)

	// dbqueue.Broker polls stage_status for due retries, the default
	// background-retry backend per spec.md §4.2; the coordinator schedules
	// onto it instead of retrying synchronously once a stage has failed
	// past its first attempt.
	retryBroker := dbqueue.New(db, time.Second)

	coordinator := processor.NewCoordinator(db, retryBroker, telemetry.NewSlogRecorder(logger), retry.PolicyFor(cfg, "", nil), nil, logger)
	pl := pipeline.New(coordinator, db, processors)
	searchSvc := search.New(model, model, db, db, logger)

	// spec.md §6's environment surface names no Brightcove account/policy
	// key, only the enable/batch-size toggles; buildProcessors passes the
	// batch size to storagestage.NewStage with a nil Enricher and enrichment
	// switched off. videoClient stays nil for the same reason, and POST
	// /process/video answers 503 until real credentials are added to
	// EngineConfig.
	var videoClient *videoenrich.Client

	return &deps{
		cfg:         cfg,
		store:       db,
		pipeline:    pl,
		search:      searchSvc,
		thumbBucket: thumbBucket,
		renderer:    visual.NewPDFRegionRenderer(),
		videoClient: videoClient,
		retryBroker: retryBroker,
		logger:      logger,
	}, nil
}

// buildProcessors instantiates one engine.Processor per declared stage.
// Collaborators spec.md §6 gives no environment variable for — the
// web-verification reconciliation service (classify.Verifier) and the
// Brightcove enrichment client (storagestage.Enricher) — are left nil,
// which both stages already treat as an optional, gracefully-degraded
// collaborator rather than a required one.
func buildProcessors(cfg *config.EngineConfig, db *postgres.Store, imageBucket *objectstore.Bucket, model *modelserver.Client, logger *slog.Logger) []engine.Processor {
	backend := visual.NewBackend()
	pool := visual.NewConverterPool(visual.NewPNGConverter(), visual.NewPDFRegionRenderer(), cfg.SVGConversionWorkers, 150)
	textExtractor := pdftext.NewExtractor(cfg, nil, logger)
	chunk := chunker.New(chunker.NewTiktoken("cl100k_base"))

	return []engine.Processor{
		upload.NewStage(db, nil),
		textextract.NewStage(textExtractor),
		visual.NewTableStage(backend, db),
		visual.NewSVGStage(backend, imageBucket, pool, db, cfg.SVGInlineStorageThresholdKB),
		visual.NewImageStage(backend, db),
		visual.NewVisualEmbeddingStage(db),
		visual.NewLinkStage(backend, db),
		chunkstage.NewStage(chunk, db),
		classify.NewStage(classify.ModelServerAnalyzer{Client: model}, nil, db, db, cfg.ClassificationMaxPages, logger),
		metadata.NewStage(db, nil, cfg.MetadataMaxPages, logger),
		parts.NewStage(db, logger),
		series.NewStage(db, logger),
		storagestage.NewStage(db, db, imageBucket, nil, false, cfg.BrightcoveEnrichmentBatchSize, logger),
		embedding.NewStage(model, db, db, cfg, logger),
		searchindex.NewStage(db, db, db, logger),
	}
}

var _ store.Store = (*postgres.Store)(nil)

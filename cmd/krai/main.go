package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/lynx"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/api"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pipeline"

	"github.com/google/uuid"
)

var (
	listStages bool
	filePath   string
	documentID string
	stageArg   string
	stagesArg  string
	smart      bool
	statusID   string
	serve      bool
	httpAddr   string
)

var rootCmd = &cobra.Command{
	Use:   "krai",
	Short: "krai is the document-understanding pipeline operator tool",
	Long:  "krai drives the 15-stage document-understanding pipeline: upload a PDF, run or resume its stages, and inspect per-stage status.",
	RunE:  runCommand,
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.Flags().BoolVar(&listStages, "list-stages", false, "print the numbered list of pipeline stages and exit")
	rootCmd.Flags().StringVar(&filePath, "file-path", "", "path to a PDF (or gzipped .pdfz) to upload")
	rootCmd.Flags().StringVar(&documentID, "document-id", "", "document id to run stages against")
	rootCmd.Flags().StringVar(&stageArg, "stage", "", "stage name or number to run (with --file-path or --document-id)")
	rootCmd.Flags().StringVar(&stagesArg, "stages", "", "comma-separated stage names/numbers to run in order (with --document-id)")
	rootCmd.Flags().BoolVar(&smart, "smart", false, "re-run only the stages not already completed (with --document-id)")
	rootCmd.Flags().StringVar(&statusID, "status", "", "print per-stage status for the given document id and exit")
	rootCmd.Flags().BoolVar(&serve, "serve", false, "start the HTTP API server instead of running a CLI command")
	rootCmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "address the HTTP API server listens on (with --serve)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// cliError distinguishes user error (exit 1) from engine failure (exit 2)
// per spec.md §6's exit-code contract. A plain error defaults to exit 2:
// it means a collaborator (database, object store) failed, not the caller.
type cliError struct {
	err error
}

func (e cliError) Error() string { return e.err.Error() }

func userError(format string, args ...any) error {
	return cliError{err: fmt.Errorf(format, args...)}
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := err.(cliError); ok {
		return 1
	}
	return 2
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	switch {
	case serve:
		return runServe(ctx, cfg)
	case listStages:
		return runListStages()
	case statusID != "":
		return runStatus(ctx, cfg, statusID)
	case filePath != "":
		return runUpload(ctx, cfg, filePath, stageArg)
	case documentID != "":
		return runOnDocument(ctx, cfg, documentID, stageArg, stagesArg, smart)
	default:
		return userError("one of --list-stages, --file-path, --document-id, --status is required")
	}
}

func runListStages() error {
	for _, st := range engine.AllStages() {
		fmt.Printf("%2d  %s\n", st.Number(), st.Name())
	}
	return nil
}

// runServe starts the gin HTTP server of spec.md §6's HTTP API under one
// lynx.Lynx process, together with the background retry supervisor and the
// retry reconciler when a retry broker is configured (newBackgroundJobs),
// reusing the same deps the CLI subcommands build. Run blocks until a
// termination signal arrives, then stops every job in turn.
func runServe(ctx context.Context, cfg *config.EngineConfig) error {
	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	server := api.NewServer(cfg, deps.store, deps.pipeline, deps.thumbBucket, deps.renderer, deps.videoClient, deps.logger)
	httpSrv := &http.Server{Addr: httpAddr, Handler: server.SetupRoutes()}

	deps.logger.Info("krai http server listening", "addr", httpAddr)
	proc := lynx.New(&lynx.Options{Jobs: newBackgroundJobs(deps, httpSrv)})
	if err := proc.Run(ctx); err != nil {
		return fmt.Errorf("krai: %w", err)
	}
	return nil
}

func runStatus(ctx context.Context, cfg *config.EngineConfig, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return userError("invalid document id %q: %v", rawID, err)
	}

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	result, err := deps.pipeline.GetStageStatus(ctx, id)
	if err != nil {
		return err
	}
	if !result.Found {
		fmt.Printf("document %s: no stage history\n", id)
		return nil
	}
	for _, st := range engine.AllStages() {
		status, ok := result.StageStatus[st.Name()]
		if !ok {
			status = engine.StatusPending
		}
		fmt.Printf("%-20s %s\n", st.Name(), status)
	}
	return nil
}

// runUpload is the --file-path path: a fresh ProcessingContext carries
// FilePath and the config-derived ProcessingConfig through
// RunSingleStageFrom into the requested stage (upload by default).
// runOnDocument below seeds its document-id-addressed context with the same
// ProcessingConfig.
func runUpload(ctx context.Context, cfg *config.EngineConfig, path, stage string) error {
	if _, err := os.Stat(path); err != nil {
		return userError("file not found: %s", path)
	}

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	stageName := engine.StageUpload.Name()
	if stage != "" {
		st, err := engine.StageByName(stage)
		if err != nil {
			return userError("%v", err)
		}
		stageName = st.Name()
	}

	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = path
	pc.Config = cfg.ToProcessingConfig()

	result, err := deps.pipeline.RunSingleStageFrom(ctx, pc, stageName)
	if err != nil {
		return userError("%v", err)
	}
	if !result.Success {
		return fmt.Errorf("upload: %s", result.Error)
	}

	fmt.Println(pc.DocumentID)
	return nil
}

func runOnDocument(ctx context.Context, cfg *config.EngineConfig, rawID, stage, stages string, smart bool) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return userError("invalid document id %q: %v", rawID, err)
	}

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	pc := engine.NewProcessingContext(id)
	pc.Config = cfg.ToProcessingConfig()

	switch {
	case smart:
		names, err := deps.pipeline.SmartResumeStages(ctx, id)
		if err != nil {
			return err
		}
		result, err := deps.pipeline.RunStagesFrom(ctx, pc, names, false)
		if err != nil {
			return userError("%v", err)
		}
		return reportStages(result.StageResults, result.Failed)

	case stages != "":
		names, err := parseStageList(stages)
		if err != nil {
			return userError("%v", err)
		}
		result, err := deps.pipeline.RunStagesFrom(ctx, pc, names, false)
		if err != nil {
			return userError("%v", err)
		}
		return reportStages(result.StageResults, result.Failed)

	case stage != "":
		st, err := engine.StageByName(stage)
		if err != nil {
			return userError("%v", err)
		}
		result, err := deps.pipeline.RunSingleStageFrom(ctx, pc, st.Name())
		if err != nil {
			return userError("%v", err)
		}
		if !result.Success {
			return fmt.Errorf("%s: %s", result.Stage, result.Error)
		}
		fmt.Printf("%s: ok\n", result.Stage)
		return nil

	default:
		return userError("--document-id requires --stage, --stages, or --smart")
	}
}

func parseStageList(csv string) ([]string, error) {
	parts := strings.Split(csv, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		st, err := engine.StageByName(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		names = append(names, st.Name())
	}
	return names, nil
}

// reportStages prints one line per stage result and turns any failure into
// the exit-2 engine-failure path spec.md §6 reserves for that case (as
// opposed to exit 1 for a bad CLI argument).
func reportStages(results []pipeline.StageResult, failed int) error {
	for _, r := range results {
		if r.Success {
			fmt.Printf("%-20s ok\n", r.Stage)
		} else {
			fmt.Printf("%-20s failed: %s\n", r.Stage, r.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d stage(s) failed", failed)
	}
	return nil
}

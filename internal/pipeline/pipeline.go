// Package pipeline is the Master Pipeline (C13): owns the processor
// registry and exposes run_single_stage/run_stages/get_stage_status plus
// the smart-resume stage selection the CLI derives from it, per spec.md
// §4.13.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/flow"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/processor"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// Pipeline owns the stage-name → processor registry and runs them through
// the shared processor.Coordinator (C4's safe_process loop).
type Pipeline struct {
	Coordinator *processor.Coordinator
	Tracking    store.StageTrackingStore
	processors  map[string]engine.Processor
}

func New(coordinator *processor.Coordinator, tracking store.StageTrackingStore, processors []engine.Processor) *Pipeline {
	registry := make(map[string]engine.Processor, len(processors))
	for _, p := range processors {
		registry[p.Stage().Name()] = p
	}
	return &Pipeline{Coordinator: coordinator, Tracking: tracking, processors: registry}
}

// StageResult is one entry of RunStagesResult.StageResults, the wire shape
// of spec.md §4.13's stage_results array.
type StageResult struct {
	Stage           string
	Success         bool
	Data            map[string]any
	Error           string
	ProcessingTimeS float64
}

// RunSingleStageResult is the {success, data, stage, processing_time}
// shape spec.md §4.13 names for run_single_stage.
type RunSingleStageResult struct {
	Success         bool
	Stage           string
	Data            map[string]any
	ProcessingTimeS float64
	Error           string
}

// RunSingleStage runs exactly one processor via safe_process.
func (p *Pipeline) RunSingleStage(ctx context.Context, documentID uuid.UUID, stageName string) (*RunSingleStageResult, error) {
	return p.RunSingleStageFrom(ctx, engine.NewProcessingContext(documentID), stageName)
}

// RunSingleStageFrom is RunSingleStage given a caller-seeded
// ProcessingContext, so the CLI's --file-path invocation can populate
// FilePath/Config before the upload stage ever runs.
func (p *Pipeline) RunSingleStageFrom(ctx context.Context, pc *engine.ProcessingContext, stageName string) (*RunSingleStageResult, error) {
	proc, ok := p.processors[stageName]
	if !ok {
		return nil, fmt.Errorf("pipeline: no processor registered for stage %q", stageName)
	}
	result := p.Coordinator.SafeProcess(ctx, proc, pc)
	out := &RunSingleStageResult{
		Success:         result.Success,
		Stage:           stageName,
		Data:            result.Data,
		ProcessingTimeS: result.ProcessingTimeS,
	}
	if result.Error != nil {
		out.Error = result.Error.Error()
	}
	return out, nil
}

// RunStagesResult is the {total_stages, successful, failed, success_rate,
// stage_results} shape spec.md §4.13 names for run_stages.
type RunStagesResult struct {
	TotalStages  int
	Successful   int
	Failed       int
	SuccessRate  float64
	StageResults []StageResult
}

// RunStages runs the given stages in the order passed, honoring
// StageDependencies — a stage whose dependency has not completed (neither
// earlier in this same run nor in prior history) fails without being
// invoked — and optionally stopping at the first failure.
//
// Sequencing is built with flow.Builder: each requested stage becomes one
// node in the chain, threading the shared ProcessingContext through Run.
func (p *Pipeline) RunStages(ctx context.Context, documentID uuid.UUID, stageNames []string, stopOnError bool) (*RunStagesResult, error) {
	return p.RunStagesFrom(ctx, engine.NewProcessingContext(documentID), stageNames, stopOnError)
}

// RunStagesFrom is RunStages given a caller-seeded ProcessingContext, so a
// fresh upload run can carry FilePath/Config into the chain instead of the
// zero-valued context RunStages builds for a resume-by-document-id call.
func (p *Pipeline) RunStagesFrom(ctx context.Context, pc *engine.ProcessingContext, stageNames []string, stopOnError bool) (*RunStagesResult, error) {
	var results []StageResult

	builder := flow.NewBuilder()
	completedThisRun := make(map[string]bool)
	for _, name := range stageNames {
		name := name
		builder = builder.Then(stageNode{
			pipeline:         p,
			stageName:        name,
			stopOnError:      stopOnError,
			completedThisRun: completedThisRun,
			results:          &results,
		})
	}

	node, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("pipeline: build run_stages flow: %w", err)
	}
	if _, err := node.Run(ctx, pc); err != nil && stopOnError {
		// The chain stopped early; fall through and report what ran.
		_ = err
	}

	out := &RunStagesResult{TotalStages: len(stageNames), StageResults: results}
	for _, r := range results {
		if r.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	if out.TotalStages > 0 {
		out.SuccessRate = float64(out.Successful) / float64(out.TotalStages)
	}
	return out, nil
}

// stageNode adapts one named stage into a flow.Node[any, any], checking
// declared dependencies before invoking safe_process.
type stageNode struct {
	pipeline         *Pipeline
	stageName        string
	stopOnError      bool
	completedThisRun map[string]bool
	results          *[]StageResult
}

func (n stageNode) Run(ctx context.Context, input any) (any, error) {
	pc, _ := input.(*engine.ProcessingContext)

	proc, ok := n.pipeline.processors[n.stageName]
	if !ok {
		r := StageResult{Stage: n.stageName, Success: false, Error: fmt.Sprintf("no processor registered for stage %q", n.stageName)}
		*n.results = append(*n.results, r)
		if n.stopOnError {
			return nil, fmt.Errorf(r.Error)
		}
		return pc, nil
	}

	if err := n.pipeline.checkDependencies(ctx, pc.DocumentID, proc.Stage(), n.completedThisRun); err != nil {
		r := StageResult{Stage: n.stageName, Success: false, Error: err.Error()}
		*n.results = append(*n.results, r)
		if n.stopOnError {
			return nil, err
		}
		return pc, nil
	}

	result := n.pipeline.Coordinator.SafeProcess(ctx, proc, pc)
	r := StageResult{
		Stage:           n.stageName,
		Success:         result.Success,
		Data:            result.Data,
		ProcessingTimeS: result.ProcessingTimeS,
	}
	if result.Error != nil {
		r.Error = result.Error.Error()
	}
	*n.results = append(*n.results, r)

	if result.Success {
		n.completedThisRun[n.stageName] = true
	} else if n.stopOnError {
		return nil, fmt.Errorf("stage %s failed: %s", n.stageName, r.Error)
	}
	return pc, nil
}

func (p *Pipeline) checkDependencies(ctx context.Context, documentID uuid.UUID, stage engine.Stage, completedThisRun map[string]bool) error {
	for _, dep := range engine.StageDependencies(stage) {
		if completedThisRun[dep.Name()] {
			continue
		}
		status, err := p.Tracking.GetStageStatus(ctx, documentID, dep.Name())
		if err != nil {
			return fmt.Errorf("check dependency %s: %w", dep.Name(), err)
		}
		if status == nil || status.Status != engine.StatusCompleted {
			return fmt.Errorf("stage %s requires %s to be completed first", stage.Name(), dep.Name())
		}
	}
	return nil
}

// StageStatusResult is the {found, stage_status} shape spec.md §4.13 names
// for get_stage_status.
type StageStatusResult struct {
	Found       bool
	StageStatus map[string]engine.StageStatusValue
}

func (p *Pipeline) GetStageStatus(ctx context.Context, documentID uuid.UUID) (*StageStatusResult, error) {
	rows, err := p.Tracking.GetAllStageStatus(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &StageStatusResult{Found: false}, nil
	}
	statuses := make(map[string]engine.StageStatusValue, len(rows))
	for name, row := range rows {
		statuses[name] = row.Status
	}
	return &StageStatusResult{Found: true, StageStatus: statuses}, nil
}

// SmartResumeStages returns every stage (in declared order) whose status
// is not completed, the selection the CLI's --smart flag derives from
// get_stage_status per spec.md §4.13.
func (p *Pipeline) SmartResumeStages(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	status, err := p.GetStageStatus(ctx, documentID)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, stage := range engine.AllStages() {
		if !status.Found || status.StageStatus[stage.Name()] != engine.StatusCompleted {
			pending = append(pending, stage.Name())
		}
	}
	return pending, nil
}

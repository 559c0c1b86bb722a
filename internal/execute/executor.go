// Package execute turns a build plan into ffmpeg invocations: snippet
// extractions first, then effect operations in plan order, then the final
// composition.
package execute

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/komposer/komposer/internal/export"
	"github.com/komposer/komposer/internal/logging"
	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/plan"
)

// Executor implements plan.Renderer. Extractions are independent and run
// concurrently up to the worker limit; effect operations depend on upstream
// outputs and run sequentially in plan order.
type Executor struct {
	engine  media.Engine
	workDir string
	workers int
	logger  *slog.Logger
}

func NewExecutor(engine media.Engine, workDir string, workers int, logger *slog.Logger) *Executor {
	if workers <= 0 {
		workers = 2
	}
	return &Executor{
		engine:  engine,
		workDir: workDir,
		workers: workers,
		logger:  logger,
	}
}

// Render executes every step of the plan and returns the final output path.
// Intermediate files live under <workDir>/<planID>/ and are kept on failure
// for inspection.
func (e *Executor) Render(ctx context.Context, p *plan.BuildPlan, progress func(int)) (string, error) {
	if err := export.ValidateDir(e.workDir); err != nil {
		return "", fmt.Errorf("work dir %s: %w", e.workDir, err)
	}
	log := logging.WithPlanID(e.logger, p.ID)

	planDir := filepath.Join(e.workDir, p.ID)
	if err := os.MkdirAll(planDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}

	totalSteps := len(p.SnippetExtractions) + len(p.EffectOperations) + 1
	var mu sync.Mutex
	doneSteps := 0
	stepDone := func() {
		mu.Lock()
		doneSteps++
		pct := doneSteps * 100 / totalSteps
		mu.Unlock()
		if progress != nil {
			progress(pct)
		}
	}

	sourcePaths := make(map[string]string, len(p.Sources))
	for _, src := range p.Sources {
		sourcePaths[src.ID] = src.Path
	}

	// Output refs and their durations are both known up front, so the
	// concurrent phase never writes shared maps.
	refPaths := make(map[string]string, len(p.SnippetExtractions)+len(p.EffectOperations))
	refSeconds := make(map[string]float64, len(p.SnippetExtractions)+len(p.EffectOperations))
	for _, ex := range p.SnippetExtractions {
		refPaths[ex.OutputRef] = filepath.Join(planDir, ex.OutputRef+".mp4")
		refSeconds[ex.OutputRef] = ex.TargetDurationSeconds
	}

	if err := e.runExtractions(ctx, p, log, sourcePaths, refPaths, stepDone); err != nil {
		return "", err
	}

	lastRef, err := e.runEffects(ctx, p, log, planDir, refPaths, refSeconds, stepDone)
	if err != nil {
		return "", err
	}

	outputPath, err := e.compose(ctx, p, planDir, lastRef, refPaths)
	if err != nil {
		return "", err
	}
	stepDone()

	log.Info("render complete", "output", outputPath)
	return outputPath, nil
}

func (e *Executor) runExtractions(
	ctx context.Context,
	p *plan.BuildPlan,
	log *slog.Logger,
	sourcePaths, refPaths map[string]string,
	stepDone func(),
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, ex := range p.SnippetExtractions {
		g.Go(func() error {
			sourcePath, ok := sourcePaths[ex.SourceID]
			if !ok {
				return fmt.Errorf("extraction %s: source %s not in plan", ex.ID, ex.SourceID)
			}

			outputPath := refPaths[ex.OutputRef]
			log.Debug("extracting snippet", "segment_id", ex.SegmentID, "method", ex.Method)

			if err := e.run(gctx, extractionArgs(ex, sourcePath, outputPath), outputPath); err != nil {
				return fmt.Errorf("extraction %s: %w", ex.ID, err)
			}
			stepDone()
			return nil
		})
	}
	return g.Wait()
}

// runEffects executes every effect operation in plan order and returns the
// output ref of the last one, or "" when the plan has no effects.
func (e *Executor) runEffects(
	ctx context.Context,
	p *plan.BuildPlan,
	log *slog.Logger,
	planDir string,
	refPaths map[string]string,
	refSeconds map[string]float64,
	stepDone func(),
) (string, error) {
	lastRef := ""
	for _, op := range p.EffectOperations {
		if len(op.Inputs) == 0 {
			return "", fmt.Errorf("effect %s has no inputs", op.ID)
		}
		inputs := make([]string, 0, len(op.Inputs))
		totalSeconds := 0.0
		for _, ref := range op.Inputs {
			path, ok := refPaths[ref]
			if !ok {
				return "", fmt.Errorf("effect %s: input %q not yet produced", op.ID, ref)
			}
			inputs = append(inputs, path)
			totalSeconds += refSeconds[ref]
		}

		outputPath := filepath.Join(planDir, op.OutputRef+".mp4")
		firstInputSeconds := refSeconds[op.Inputs[0]]

		log.Debug("applying effect",
			"effect_id", op.EffectID, "type", op.Type, "inputs", len(inputs))

		if err := e.run(ctx, effectArgs(op, inputs, firstInputSeconds, outputPath), outputPath); err != nil {
			return "", fmt.Errorf("effect %s: %w", op.ID, err)
		}

		refPaths[op.OutputRef] = outputPath
		if op.Params.Transition != nil {
			totalSeconds -= op.Params.Transition.DurationSeconds
		}
		refSeconds[op.OutputRef] = totalSeconds
		lastRef = op.OutputRef
		stepDone()
	}
	return lastRef, nil
}

func (e *Executor) compose(
	ctx context.Context,
	p *plan.BuildPlan,
	planDir, lastRef string,
	refPaths map[string]string,
) (string, error) {
	outputPath := filepath.Join(planDir, p.FinalOutputRef+".mp4")

	var args []string
	if lastRef != "" {
		args = composeArgs(refPaths[lastRef], p.OutputWidth, p.OutputHeight, outputPath)
	} else {
		// No effects tree: concatenate the snippets in segment order, then
		// the compose step handles scaling in the same pass.
		if len(p.SnippetExtractions) == 0 {
			return "", fmt.Errorf("plan %s has nothing to compose", p.ID)
		}
		inputs := make([]string, 0, len(p.SnippetExtractions))
		for _, ex := range p.SnippetExtractions {
			inputs = append(inputs, refPaths[ex.OutputRef])
		}
		if len(inputs) == 1 {
			args = composeArgs(inputs[0], p.OutputWidth, p.OutputHeight, outputPath)
		} else {
			concatPath := filepath.Join(planDir, "concat.mp4")
			if err := e.run(ctx, concatArgs(inputs, concatPath), concatPath); err != nil {
				return "", fmt.Errorf("concat: %w", err)
			}
			args = composeArgs(concatPath, p.OutputWidth, p.OutputHeight, outputPath)
		}
	}

	if err := e.run(ctx, args, outputPath); err != nil {
		return "", fmt.Errorf("compose: %w", err)
	}
	return outputPath, nil
}

func (e *Executor) run(ctx context.Context, args []string, outputPath string) error {
	result, err := e.engine.Execute(ctx, media.Command{Args: args, OutputPath: outputPath})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("engine exited with code %d: %s", result.ExitCode, result.Log)
	}
	return nil
}

package execute

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/plan"
	"github.com/komposer/komposer/internal/timing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlan(t *testing.T) *plan.BuildPlan {
	t.Helper()
	tm, err := timing.NewTiming(120, 4, 0, 32)
	if err != nil {
		t.Fatalf("NewTiming: %v", err)
	}

	return &plan.BuildPlan{
		ID:           "plan-x",
		Timing:       tm,
		RenderRange:  plan.RenderRange{StartBeat: 0, EndBeat: 32},
		OutputWidth:  1920,
		OutputHeight: 1080,
		Sources: []plan.Source{
			{ID: "src-city", Name: "city.mp4", Path: "/media/city.mp4"},
			{ID: "src-drive", Name: "drive.mp4", Path: "/media/drive.mp4"},
		},
		SnippetExtractions: []plan.SnippetExtraction{
			{
				ID: "extract_a", SegmentID: "a", SourceID: "src-city",
				StartBeat: 0, EndBeat: 16,
				TargetDurationSeconds: 8, OriginalDuration: 8,
				Method: komposition.MethodTrim, OutputRef: "snippet_a",
			},
			{
				ID: "extract_b", SegmentID: "b", SourceID: "src-drive",
				StartBeat: 16, EndBeat: 32,
				TargetDurationSeconds: 8, OriginalDuration: 8,
				Method: komposition.MethodTrim, OutputRef: "snippet_b",
			},
		},
		EffectOperations: []plan.EffectOperation{
			{
				ID: "fx_root", EffectID: "root", Type: komposition.EffectCrossfade,
				Params:    plan.EffectParams{Transition: &plan.TransitionParams{DurationSeconds: 1}},
				Inputs:    []string{"snippet_a", "snippet_b"},
				OutputRef: "out_root",
			},
		},
		ExecutionOrder: []string{"extract_a", "extract_b", "fx_root", "compose_final"},
		FinalOutputRef: plan.FinalOutputRef,
	}
}

func TestExecutor_Render_RejectsMissingWorkDir(t *testing.T) {
	engine := media.NewStubEngine(discardLogger())
	exec := NewExecutor(engine, filepath.Join(t.TempDir(), "missing"), 1, discardLogger())

	_, err := exec.Render(context.Background(), testPlan(t), nil)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("error = %v, want missing work dir rejection", err)
	}
	if len(engine.Executed) != 0 {
		t.Errorf("engine ran %d commands, want none", len(engine.Executed))
	}
}

func TestExecutor_Render(t *testing.T) {
	engine := media.NewStubEngine(discardLogger())
	workDir := t.TempDir()
	// One worker keeps the stub's command log deterministic.
	exec := NewExecutor(engine, workDir, 1, discardLogger())

	var progressValues []int
	outputPath, err := exec.Render(context.Background(), testPlan(t), func(pct int) {
		progressValues = append(progressValues, pct)
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wantOutput := filepath.Join(workDir, "plan-x", "final_output.mp4")
	if outputPath != wantOutput {
		t.Errorf("output = %q, want %q", outputPath, wantOutput)
	}

	// Two extractions, one effect, one compose.
	if len(engine.Executed) != 4 {
		t.Fatalf("executed %d commands, want 4", len(engine.Executed))
	}

	for i, wantSuffix := range []string{"snippet_a.mp4", "snippet_b.mp4", "out_root.mp4", "final_output.mp4"} {
		if got := engine.Executed[i].OutputPath; !strings.HasSuffix(got, wantSuffix) {
			t.Errorf("command %d output = %q, want suffix %q", i, got, wantSuffix)
		}
	}

	// The effect consumes the snippet files, the compose step the effect
	// output.
	fxArgs := strings.Join(engine.Executed[2].Args, " ")
	if !strings.Contains(fxArgs, "snippet_a.mp4") || !strings.Contains(fxArgs, "snippet_b.mp4") {
		t.Errorf("effect step must read both snippets, got %v", engine.Executed[2].Args)
	}
	composeArgs := strings.Join(engine.Executed[3].Args, " ")
	if !strings.Contains(composeArgs, "out_root.mp4") {
		t.Errorf("compose step must read the effect output, got %v", engine.Executed[3].Args)
	}

	if len(progressValues) != 4 {
		t.Fatalf("progress reported %d times, want 4", len(progressValues))
	}
	for i := 1; i < len(progressValues); i++ {
		if progressValues[i] < progressValues[i-1] {
			t.Errorf("progress went backwards: %v", progressValues)
		}
	}
	if progressValues[len(progressValues)-1] != 100 {
		t.Errorf("final progress = %d, want 100", progressValues[len(progressValues)-1])
	}
}

func TestExecutor_Render_NoEffects(t *testing.T) {
	engine := media.NewStubEngine(discardLogger())
	exec := NewExecutor(engine, t.TempDir(), 1, discardLogger())

	p := testPlan(t)
	p.EffectOperations = nil
	p.ExecutionOrder = []string{"extract_a", "extract_b", "compose_final"}

	if _, err := exec.Render(context.Background(), p, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// Two extractions, one concat, one compose.
	if len(engine.Executed) != 4 {
		t.Fatalf("executed %d commands, want 4", len(engine.Executed))
	}
	concat := strings.Join(engine.Executed[2].Args, " ")
	if !strings.Contains(concat, "concat=n=2:v=1:a=1") {
		t.Errorf("expected a concat step, got %v", engine.Executed[2].Args)
	}
}

func TestExecutor_Render_SingleSnippet(t *testing.T) {
	engine := media.NewStubEngine(discardLogger())
	exec := NewExecutor(engine, t.TempDir(), 1, discardLogger())

	p := testPlan(t)
	p.SnippetExtractions = p.SnippetExtractions[:1]
	p.EffectOperations = nil
	p.ExecutionOrder = []string{"extract_a", "compose_final"}

	if _, err := exec.Render(context.Background(), p, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// One snippet needs no concat pass.
	if len(engine.Executed) != 2 {
		t.Fatalf("executed %d commands, want 2", len(engine.Executed))
	}
}

func TestExecutor_Render_EmptyPlan(t *testing.T) {
	engine := media.NewStubEngine(discardLogger())
	exec := NewExecutor(engine, t.TempDir(), 1, discardLogger())

	p := testPlan(t)
	p.SnippetExtractions = nil
	p.EffectOperations = nil

	if _, err := exec.Render(context.Background(), p, nil); err == nil {
		t.Error("expected an error for a plan with nothing to compose")
	}
}

func TestExecutor_Render_UnknownSource(t *testing.T) {
	engine := media.NewStubEngine(discardLogger())
	exec := NewExecutor(engine, t.TempDir(), 1, discardLogger())

	p := testPlan(t)
	p.SnippetExtractions[0].SourceID = "src-ghost"

	if _, err := exec.Render(context.Background(), p, nil); err == nil {
		t.Error("expected an error for an extraction with an unknown source")
	}
}

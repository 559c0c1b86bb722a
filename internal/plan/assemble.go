package plan

import (
	"sort"
	"time"

	"github.com/komposer/komposer/internal/timing"
)

// Processing-time heuristic constants. These feed progress reporting only;
// nothing depends on them being accurate.
const (
	estimateBaseSeconds       = 10.0
	estimatePerExtraction     = 2.0
	estimateExtractionPerSec  = 0.5
	estimatePerEffect         = 60.0
	estimateCompositionFactor = 1.5
)

// FinalOutputRef names the composed output of every plan.
const FinalOutputRef = "final_output"

// composeStepID is the synthetic final composition step's id in the
// execution order.
const composeStepID = "compose_final"

// AssembleInput carries everything Assemble merges into one plan.
type AssembleInput struct {
	ID              string
	Title           string
	Timing          timing.Timing
	RenderRange     RenderRange
	TotalBeats      int // the document's full beat span, not the render window
	OutputWidth     int
	OutputHeight    int
	Sources         []Source
	Extractions     []SnippetExtraction
	Operations      []EffectOperation
	SkippedSegments []string
}

// Assemble merges extractions and effect operations into one ordered plan.
// The execution order is three phases: extractions (mutually independent),
// effect operations in resolver order (post-order already respects their
// dependencies), then one synthetic composition step. The result is a valid
// topological order without running a general dependency solver.
func Assemble(in AssembleInput) *BuildPlan {
	order := make([]string, 0, len(in.Extractions)+len(in.Operations)+1)

	for _, ex := range in.Extractions {
		order = append(order, ex.ID)
	}

	ops := make([]EffectOperation, len(in.Operations))
	copy(ops, in.Operations)
	for i := range ops {
		ops[i].ExecutionOrder = len(order)
		order = append(order, ops[i].ID)
	}

	if len(order) > 0 {
		order = append(order, composeStepID)
	}

	sources := make([]Source, len(in.Sources))
	copy(sources, in.Sources)
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })

	return &BuildPlan{
		ID:                 in.ID,
		Title:              in.Title,
		Timing:             in.Timing,
		RenderRange:        in.RenderRange,
		TotalBeats:         in.TotalBeats,
		OutputWidth:        in.OutputWidth,
		OutputHeight:       in.OutputHeight,
		Sources:            sources,
		SnippetExtractions: in.Extractions,
		EffectOperations:   ops,
		ExecutionOrder:     order,
		EstimatedSeconds:   estimateSeconds(in),
		FinalOutputRef:     FinalOutputRef,
		SkippedSegments:    in.SkippedSegments,
		CreatedAt:          time.Now(),
	}
}

func estimateSeconds(in AssembleInput) float64 {
	estimate := estimateBaseSeconds
	for _, ex := range in.Extractions {
		estimate += estimatePerExtraction + estimateExtractionPerSec*ex.TargetDurationSeconds
	}
	estimate += estimatePerEffect * float64(len(in.Operations))

	renderTiming, err := timing.NewTiming(in.Timing.BPM, in.Timing.BeatsPerMeasure,
		in.RenderRange.StartBeat, in.RenderRange.EndBeat)
	if err == nil {
		estimate += estimateCompositionFactor * renderTiming.Duration()
	}
	return estimate
}

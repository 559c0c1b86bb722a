package plan

import (
	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/timing"
)

// Node states of the post-order walk. A node referenced before it reaches
// stateResolved is a forward reference and fails resolution.
type nodeState int

const (
	stateUnvisited nodeState = iota
	stateVisiting
	stateResolved
)

type effectResolver struct {
	tm       timing.Timing
	snippets map[string]*SnippetExtraction // keyed by segment id
	states   map[string]nodeState
	outputs  map[string]string // effect id -> output ref
	ops      []EffectOperation
}

// resolveEffects walks the effects tree in strict post-order, children fully
// resolved before their parent, and produces exactly one operation per tree
// node. Operation ids are derived from effect ids so resolving the same
// tree twice yields structurally identical output.
func resolveEffects(
	root *komposition.EffectNode,
	extractions []SnippetExtraction,
	tm timing.Timing,
) ([]EffectOperation, error) {
	if root == nil {
		return nil, nil
	}

	r := &effectResolver{
		tm:       tm,
		snippets: make(map[string]*SnippetExtraction, len(extractions)),
		states:   make(map[string]nodeState),
		outputs:  make(map[string]string),
	}
	for i := range extractions {
		r.snippets[extractions[i].SegmentID] = &extractions[i]
	}

	if err := r.visit(root); err != nil {
		return nil, err
	}
	return r.ops, nil
}

func (r *effectResolver) visit(node *komposition.EffectNode) error {
	r.states[node.EffectID] = stateVisiting

	var childOutputs []string
	for _, child := range node.Children {
		if err := r.visit(child); err != nil {
			return err
		}
		childOutputs = append(childOutputs, r.outputs[child.EffectID])
	}

	inputs, err := r.resolveInputs(node, childOutputs)
	if err != nil {
		return err
	}

	params, err := r.buildParams(node, inputs)
	if err != nil {
		return err
	}

	outputRef := "out_" + node.EffectID
	r.ops = append(r.ops, EffectOperation{
		ID:        "fx_" + node.EffectID,
		EffectID:  node.EffectID,
		Type:      node.Type,
		Params:    params,
		Inputs:    inputs,
		OutputRef: outputRef,
	})
	r.outputs[node.EffectID] = outputRef
	r.states[node.EffectID] = stateResolved
	return nil
}

// resolveInputs maps a node's applies_to references to upstream output
// refs. A node without applies_to consumes its children's outputs.
func (r *effectResolver) resolveInputs(node *komposition.EffectNode, childOutputs []string) ([]string, error) {
	if len(node.AppliesTo) == 0 {
		if len(childOutputs) == 0 {
			return nil, planErr(ErrUnresolvedReference, node.EffectID, "effect has no inputs")
		}
		return childOutputs, nil
	}

	inputs := make([]string, 0, len(node.AppliesTo))
	for _, ref := range node.AppliesTo {
		switch ref.Kind {
		case komposition.RefSegment:
			snippet, ok := r.snippets[ref.ID]
			if !ok {
				return nil, planErr(ErrUnresolvedReference, node.EffectID,
					"segment %q is not in the plan", ref.ID)
			}
			inputs = append(inputs, snippet.OutputRef)

		case komposition.RefEffectOutput:
			if r.states[ref.ID] != stateResolved {
				return nil, planErr(ErrUnresolvedReference, node.EffectID,
					"effect output %q is not resolved yet (forward reference)", ref.ID)
			}
			inputs = append(inputs, r.outputs[ref.ID])

		default:
			return nil, planErr(ErrUnresolvedReference, node.EffectID,
				"unknown reference kind %q", ref.Kind)
		}
	}
	return inputs, nil
}

func (r *effectResolver) buildParams(node *komposition.EffectNode, inputs []string) (EffectParams, error) {
	var params EffectParams

	switch cfg := node.Config.(type) {
	case komposition.TransitionConfig:
		if len(inputs) != 2 {
			return params, planErr(ErrBadArity, node.EffectID, "got %d inputs", len(inputs))
		}
		// Beat offsets convert at the plan's global tempo, never per node.
		duration, err := timing.BeatsToSeconds(cfg.DurationBeats, r.tm.BPM)
		if err != nil {
			return params, err
		}
		startOffset, _ := timing.BeatsToSeconds(cfg.StartOffsetBeats, r.tm.BPM)
		endOffset, _ := timing.BeatsToSeconds(cfg.EndOffsetBeats, r.tm.BPM)
		params.Transition = &TransitionParams{
			DurationSeconds:    duration,
			StartOffsetSeconds: startOffset,
			EndOffsetSeconds:   endOffset,
		}

	case komposition.ResizeConfig:
		params.Resize = &cfg

	case komposition.ColorGradeConfig:
		params.ColorGrade = &cfg

	case komposition.PassthroughConfig:
		// Identity over one input, concatenation over several.
	}

	return params, nil
}

package komposition

import (
	"encoding/json"
	"fmt"
)

// EffectConfig is the closed set of per-effect-type configurations. Each
// effect type owns one concrete config struct, decoded and validated when
// the document is parsed.
type EffectConfig interface {
	effectConfig()
}

// TransitionConfig configures the two-input blend effects. DurationBeats is
// the transition window length on the composition's beat timeline;
// StartOffsetBeats/EndOffsetBeats extend the window into the preceding
// (negative) and following (positive) input.
type TransitionConfig struct {
	DurationBeats    float64 `json:"duration_beats"`
	StartOffsetBeats float64 `json:"start_offset_beats,omitempty"`
	EndOffsetBeats   float64 `json:"end_offset_beats,omitempty"`
}

func (TransitionConfig) effectConfig() {}

// ResizeConfig configures a resize effect.
type ResizeConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (ResizeConfig) effectConfig() {}

// ColorGradeConfig configures a color grade effect. Values are ffmpeg eq
// filter ranges: brightness [-1,1], contrast and saturation multipliers.
type ColorGradeConfig struct {
	Brightness float64 `json:"brightness,omitempty"`
	Contrast   float64 `json:"contrast,omitempty"`
	Saturation float64 `json:"saturation,omitempty"`
}

func (ColorGradeConfig) effectConfig() {}

// PassthroughConfig carries no parameters; passthrough forwards or
// concatenates its inputs.
type PassthroughConfig struct{}

func (PassthroughConfig) effectConfig() {}

// decodeEffectConfig turns the raw parameter bag of one document node into
// the typed config for its effect type, rejecting invalid values here so the
// planner never touches a string-keyed map.
func decodeEffectConfig(effectType EffectType, params json.RawMessage) (EffectConfig, error) {
	switch effectType {
	case EffectPassthrough:
		return PassthroughConfig{}, nil

	case EffectGradientWipe, EffectCrossfade, EffectOpacity:
		cfg := TransitionConfig{}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &cfg); err != nil {
				return nil, fmt.Errorf("invalid transition parameters: %w", err)
			}
		}
		if cfg.DurationBeats <= 0 {
			return nil, fmt.Errorf("transition requires duration_beats > 0 (got %g)", cfg.DurationBeats)
		}
		return cfg, nil

	case EffectResize:
		cfg := ResizeConfig{}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &cfg); err != nil {
				return nil, fmt.Errorf("invalid resize parameters: %w", err)
			}
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, fmt.Errorf("resize requires positive width and height (got %dx%d)", cfg.Width, cfg.Height)
		}
		return cfg, nil

	case EffectColorGrade:
		cfg := ColorGradeConfig{Contrast: 1, Saturation: 1}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &cfg); err != nil {
				return nil, fmt.Errorf("invalid color grade parameters: %w", err)
			}
		}
		if cfg.Brightness < -1 || cfg.Brightness > 1 {
			return nil, fmt.Errorf("color grade brightness must be in [-1,1] (got %g)", cfg.Brightness)
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown effect type %q", effectType)
	}
}

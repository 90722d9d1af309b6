// ABOUTME: Renders progress frame payloads into a single status line
// ABOUTME: Understands plain strings, stage/message objects, and tracker percentage objects

package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/2389/coven-research/internal/frame"
)

// stageProgress is the {stage, message} progress shape.
type stageProgress struct {
	Stage   string `mapstructure:"stage"`
	Message string `mapstructure:"message"`
}

// trackerProgress is the percentage/elapsed/remaining progress shape.
type trackerProgress struct {
	Percentage *float64 `mapstructure:"percentage"`
	Completed  *int     `mapstructure:"completed"`
	Total      *int     `mapstructure:"total"`
	Elapsed    *float64 `mapstructure:"elapsed"`
	Remaining  *float64 `mapstructure:"remaining"`
}

// RenderProgress turns a progress payload into display text. Unknown
// shapes fall back to compact JSON.
func RenderProgress(f frame.Frame) string {
	var raw any
	if err := json.Unmarshal(f.Data, &raw); err != nil {
		return f.Text()
	}

	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		if text, ok := renderTracker(v); ok {
			return text
		}
		if text, ok := renderStage(v); ok {
			return text
		}
	}
	return f.Text()
}

func renderTracker(m map[string]any) (string, bool) {
	var p trackerProgress
	if err := mapstructure.Decode(m, &p); err != nil || p.Percentage == nil {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Researching... %.1f%%", *p.Percentage)
	if p.Completed != nil && p.Total != nil {
		fmt.Fprintf(&b, " (%d/%d)", *p.Completed, *p.Total)
	}
	if p.Elapsed != nil {
		fmt.Fprintf(&b, ", %.1fs elapsed", *p.Elapsed)
	}
	if p.Remaining != nil {
		fmt.Fprintf(&b, ", ~%.1fs remaining", *p.Remaining)
	}
	return b.String(), true
}

func renderStage(m map[string]any) (string, bool) {
	var p stageProgress
	if err := mapstructure.Decode(m, &p); err != nil {
		return "", false
	}
	switch {
	case p.Stage != "" && p.Message != "":
		return fmt.Sprintf("[%s] %s", p.Stage, p.Message), true
	case p.Message != "":
		return p.Message, true
	case p.Stage != "":
		return fmt.Sprintf("[%s]", p.Stage), true
	default:
		return "", false
	}
}

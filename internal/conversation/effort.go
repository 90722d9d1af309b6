// ABOUTME: Maps the user's coarse effort selection to research breadth and depth
// ABOUTME: Also parses effort names from flags and config, including the interactive form labels (quick, balanced, deep)

package conversation

import (
	"fmt"
	"strings"
)

// Level is the user-selected research effort.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Levels lists every level from least to most thorough.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

// Params are the numeric research parameters derived from a Level.
type Params struct {
	Breadth int
	Depth   int
}

// Params returns the breadth and depth for a level. Anything unrecognized
// gets the medium parameters.
func (l Level) Params() Params {
	switch l {
	case LevelLow:
		return Params{Breadth: 2, Depth: 1}
	case LevelHigh:
		return Params{Breadth: 10, Depth: 5}
	default:
		return Params{Breadth: 5, Depth: 3}
	}
}

// Label is the human-facing name shown in interactive prompts.
func (l Level) Label() string {
	switch l {
	case LevelLow:
		return "Quick Research"
	case LevelHigh:
		return "Deep Research"
	default:
		return "Balanced Research"
	}
}

// ParseLevel accepts a level name or one of its labels ("quick", "balanced", "deep").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "quick":
		return LevelLow, nil
	case "medium", "balanced", "":
		return LevelMedium, nil
	case "high", "deep":
		return LevelHigh, nil
	default:
		return "", fmt.Errorf("unknown effort level %q (want low, medium, or high)", s)
	}
}

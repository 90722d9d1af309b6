// ABOUTME: Tests for effort level mapping and parsing
// ABOUTME: Pins the breadth/depth table and the accepted aliases

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_Params(t *testing.T) {
	tests := []struct {
		level Level
		want  Params
	}{
		{LevelLow, Params{Breadth: 2, Depth: 1}},
		{LevelMedium, Params{Breadth: 5, Depth: 3}},
		{LevelHigh, Params{Breadth: 10, Depth: 5}},
		{Level("extreme"), Params{Breadth: 5, Depth: 3}},
		{Level(""), Params{Breadth: 5, Depth: 3}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.Params())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"low", LevelLow},
		{"Quick", LevelLow},
		{"medium", LevelMedium},
		{" balanced ", LevelMedium},
		{"", LevelMedium},
		{"HIGH", LevelHigh},
		{"deep", LevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("maximum")
	assert.ErrorContains(t, err, "unknown effort level")
}

func TestLevel_Label(t *testing.T) {
	assert.Equal(t, "Quick Research", LevelLow.Label())
	assert.Equal(t, "Balanced Research", LevelMedium.Label())
	assert.Equal(t, "Deep Research", LevelHigh.Label())
}

// ABOUTME: Builds the combined research query from the prompt and answered questions
// ABOUTME: The exact text is what the research backend expects

package conversation

import (
	"fmt"
	"strings"
)

// BuildResearchQuery joins the prompt and each question/answer pair, one per line.
func BuildResearchQuery(prompt string, pairs []Pair) string {
	lines := make([]string, 0, len(pairs)+1)
	lines = append(lines, "Initial Query: "+prompt)
	for i, p := range pairs {
		lines = append(lines, fmt.Sprintf("Q%d: %s | A: %s", i+1, p.Question, p.Answer))
	}
	return strings.Join(lines, "\n")
}

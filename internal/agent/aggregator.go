package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Aggregator synthesizes per-sub-query results into one final answer.
type Aggregator struct {
	Oracle  TextGenerator
	Prompts *PromptManager
}

func NewAggregator(o TextGenerator, prompts *PromptManager) *Aggregator {
	return &Aggregator{Oracle: o, Prompts: prompts}
}

// Combine asks the oracle for one markdown answer to mainQuery built from
// results, which are presented in the order given.
func (a *Aggregator) Combine(ctx context.Context, mainQuery string, results Results) (string, error) {
	messages, err := a.Prompts.Render(PromptAggregator, map[string]any{
		"context":   failureContext(results),
		"responses": FormatResponses(results),
		"query":     mainQuery,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAggregation, err)
	}

	resp, err := a.Oracle.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAggregation, err)
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return "", fmt.Errorf("%w: empty synthesis", ErrAggregation)
	}
	return answer, nil
}

// FormatResponses lists every result as "Response {id}: {text}", one block
// per result, separated by blank lines.
func FormatResponses(results Results) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Response %d: %s", r.ID, r.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// failureContext tells the oracle which responses are failure markers.
func failureContext(results Results) string {
	var failed []string
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, strconv.Itoa(r.ID))
		}
	}
	switch len(failed) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("No result could be computed for sub-query %s.", failed[0])
	default:
		return fmt.Sprintf("No result could be computed for sub-queries %s.", strings.Join(failed, ", "))
	}
}

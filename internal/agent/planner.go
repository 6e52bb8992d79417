package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/tally/internal/oracle"
	"github.com/tmc/langchaingo/llms"
)

// StructuredGenerator is the oracle capability the planner needs.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, messages []llms.MessageContent, tool llms.Tool, out any) error
}

// TextGenerator is the oracle capability the router and aggregator need.
type TextGenerator interface {
	Generate(ctx context.Context, messages []llms.MessageContent) (oracle.TextResponse, error)
}

const proposePlanTool = "propose_plan"

// planTool is the schema the oracle must answer with.
var planTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        proposePlanTool,
		Description: "Submit the ordered list of sub-queries that together answer the user's prompt.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sub_queries": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id": map[string]any{
								"type":        "integer",
								"description": "Unique id, numbered from 1 in order of appearance.",
							},
							"question": map[string]any{
								"type":        "string",
								"description": "The focused sub-query.",
							},
							"operand_a": map[string]any{
								"type":        "number",
								"description": "First number the sub-query operates on.",
							},
							"operand_b": map[string]any{
								"type":        "number",
								"description": "Second number the sub-query operates on.",
							},
						},
						"required": []string{"id", "question"},
					},
				},
			},
			"required": []string{"sub_queries"},
		},
	},
}

// Planner decomposes a raw query into a QueryPlan.
type Planner struct {
	Oracle  StructuredGenerator
	Prompts *PromptManager
}

func NewPlanner(o StructuredGenerator, prompts *PromptManager) *Planner {
	return &Planner{Oracle: o, Prompts: prompts}
}

// Decompose asks the oracle for a plan. Any response that does not fit the
// plan schema fails the whole request; no partial plan is returned.
func (p *Planner) Decompose(ctx context.Context, query string) (*QueryPlan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrPlanning)
	}

	messages, err := p.Prompts.Render(PromptPlanner, map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanning, err)
	}

	var plan QueryPlan
	if err := p.Oracle.GenerateStructured(ctx, messages, planTool, &plan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanning, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanning, err)
	}

	plan.OriginalQuery = query
	// A single-item plan is the query itself, not a paraphrase of it.
	if len(plan.SubQueries) == 1 {
		plan.SubQueries[0].Question = query
	}
	return &plan, nil
}

package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/tally/internal/observability"
	"github.com/rahul/tally/internal/tools"
)

// Router classifies sub-queries and dispatches them to the operation registry.
type Router struct {
	Oracle   TextGenerator
	Registry *tools.Registry
	Prompts  *PromptManager
	Logger   *observability.Logger
}

func NewRouter(o TextGenerator, registry *tools.Registry, prompts *PromptManager, logger *observability.Logger) *Router {
	return &Router{
		Oracle:   o,
		Registry: registry,
		Prompts:  prompts,
		Logger:   logger,
	}
}

// Classify asks the oracle which operation should process text.
func (r *Router) Classify(ctx context.Context, text string) (tools.Kind, error) {
	kinds := tools.KnownKinds()
	options := make([]string, 0, len(kinds))
	tokens := make([]string, 0, len(kinds))
	for _, k := range kinds {
		options = append(options, fmt.Sprintf("- '%s' for %s,", k, k.Description()))
		tokens = append(tokens, string(k))
	}

	messages, err := r.Prompts.Render(PromptRouter, map[string]any{
		"options":        strings.Join(options, "\n"),
		"tokens":         strings.Join(tokens, " or "),
		"sub_query_text": text,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRouteClassification, err)
	}

	resp, err := r.Oracle.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRouteClassification, err)
	}

	decision := strings.ToLower(strings.TrimSpace(resp.Text))
	kind, ok := tools.ParseKind(decision)
	if !ok {
		return "", fmt.Errorf("%w: unexpected route decision %q", ErrRouteClassification, decision)
	}
	return kind, nil
}

// Execute classifies sq, validates its operands and runs the matching
// handler. The handler's text is returned unchanged.
func (r *Router) Execute(ctx context.Context, sq SubQuery) (ExecutionResult, error) {
	kind, err := r.Classify(ctx, sq.Question)
	if err != nil {
		return ExecutionResult{}, err
	}

	req := observability.RequestFromContext(ctx)
	log.Printf("[Router] decision: %s for question: %s", kind, sq.Question)
	r.Logger.LogRoute(req.ChatID, req.TaskID, sq.ID, sq.Question, string(kind))

	if sq.OperandA == nil || sq.OperandB == nil {
		return ExecutionResult{}, fmt.Errorf("%w: both operand_a and operand_b must be provided", ErrMissingOperand)
	}

	a, err := sq.OperandA.Float()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("%w: operand_a: %v", ErrInvalidNumber, err)
	}
	b, err := sq.OperandB.Float()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("%w: operand_b: %v", ErrInvalidNumber, err)
	}

	handler := r.Registry.Get(kind)
	if handler == nil {
		return ExecutionResult{}, fmt.Errorf("%w: %s", ErrUnsupportedOperation, kind)
	}

	return ExecutionResult{ID: sq.ID, Text: handler(a, b)}, nil
}

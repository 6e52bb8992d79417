package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/rahul/tally/internal/governance"
	"github.com/rahul/tally/internal/observability"
	"github.com/rahul/tally/internal/tools"
	"golang.org/x/sync/errgroup"
)

// Brain answers chat messages.
type Brain interface {
	Think(ctx context.Context, chatID string, input string) (string, error)
}

// Oracle is the language model collaborator: structured plans and free text.
type Oracle interface {
	StructuredGenerator
	TextGenerator
}

// PlanCache stores encoded plans keyed by query.
type PlanCache interface {
	LoadPlan(query string) ([]byte, bool, error)
	SavePlan(query string, plan []byte) error
	ForgetPlan(query string) error
}

type HistoryStore interface {
	AddMessage(chatID string, role string, content string) error
}

// Orchestrator runs planning, routing and aggregation for one request at a
// time per call. It keeps no state between calls.
type Orchestrator struct {
	Planner    *Planner
	Router     *Router
	Aggregator *Aggregator

	Cache   PlanCache
	History HistoryStore
	Policy  governance.PolicyEngine
	Logger  *observability.Logger

	// Concurrency bounds how many sub-queries are routed at once.
	Concurrency int

	// FailFast aborts the request on the first routing failure. When false,
	// failed sub-queries reach the aggregator as failure markers.
	FailFast bool
}

func NewOrchestrator(o Oracle, registry *tools.Registry, prompts *PromptManager, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		Planner:     NewPlanner(o, prompts),
		Router:      NewRouter(o, registry, prompts, logger),
		Aggregator:  NewAggregator(o, prompts),
		Logger:      logger,
		Concurrency: 1,
		FailFast:    true,
	}
}

// Process answers mainQuery end to end.
func (o *Orchestrator) Process(ctx context.Context, mainQuery string) (string, error) {
	return o.process(o.begin(ctx, ""), mainQuery)
}

// ProcessPlan answers mainQuery from a previously produced plan without
// calling the planner. An empty mainQuery falls back to plan.OriginalQuery.
func (o *Orchestrator) ProcessPlan(ctx context.Context, mainQuery string, plan *QueryPlan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("%w: no plan supplied", ErrInvalidPlan)
	}
	if err := plan.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if strings.TrimSpace(mainQuery) == "" {
		mainQuery = plan.OriginalQuery
	}
	if strings.TrimSpace(mainQuery) == "" {
		return "", fmt.Errorf("%w: missing originating query", ErrInvalidPlan)
	}

	ctx = o.begin(ctx, "")
	defer observability.ClearStatus(observability.RequestFromContext(ctx).TaskID)

	if err := o.check(ctx, governance.Request{Query: mainQuery}); err != nil {
		return "", err
	}
	return o.run(ctx, mainQuery, plan)
}

// ProcessEnvelope answers the query bundled with its plan.
func (o *Orchestrator) ProcessEnvelope(ctx context.Context, env PlanEnvelope) (string, error) {
	return o.ProcessPlan(ctx, env.Query, env.Plan)
}

// Think implements Brain: it answers input and records the exchange.
func (o *Orchestrator) Think(ctx context.Context, chatID string, input string) (string, error) {
	answer, err := o.process(o.begin(ctx, chatID), input)
	if err != nil {
		return "", err
	}

	if o.History != nil {
		if err := o.History.AddMessage(chatID, "human", input); err != nil {
			log.Printf("Warning: failed to record message: %v", err)
		}
		if err := o.History.AddMessage(chatID, "ai", answer); err != nil {
			log.Printf("Warning: failed to record message: %v", err)
		}
	}
	return answer, nil
}

func (o *Orchestrator) process(ctx context.Context, mainQuery string) (string, error) {
	defer observability.ClearStatus(observability.RequestFromContext(ctx).TaskID)

	mainQuery = strings.TrimSpace(mainQuery)
	if mainQuery == "" {
		return "", fmt.Errorf("%w: empty query", ErrPlanning)
	}
	if err := o.check(ctx, governance.Request{Query: mainQuery}); err != nil {
		return "", err
	}

	plan, err := o.plan(ctx, mainQuery)
	if err != nil {
		o.fail(ctx, "planning", err)
		return "", err
	}
	return o.run(ctx, mainQuery, plan)
}

func (o *Orchestrator) run(ctx context.Context, mainQuery string, plan *QueryPlan) (string, error) {
	req := observability.RequestFromContext(ctx)

	if err := o.check(ctx, governance.Request{Query: mainQuery, SubQueries: len(plan.SubQueries)}); err != nil {
		return "", err
	}

	observability.SetStatus(req.TaskID, observability.StageRouting, mainQuery)
	results, err := o.route(ctx, plan)
	if err != nil {
		o.fail(ctx, "routing", err)
		return "", err
	}

	observability.SetStatus(req.TaskID, observability.StageAggregating, mainQuery)
	answer, err := o.Aggregator.Combine(ctx, mainQuery, results)
	if err != nil {
		o.fail(ctx, "aggregation", err)
		return "", err
	}

	o.Logger.LogAggregate(req.ChatID, req.TaskID, len(results), answer)
	return answer, nil
}

func (o *Orchestrator) plan(ctx context.Context, mainQuery string) (*QueryPlan, error) {
	req := observability.RequestFromContext(ctx)
	observability.SetStatus(req.TaskID, observability.StagePlanning, mainQuery)

	if o.Cache != nil {
		if plan, ok := o.cachedPlan(mainQuery); ok {
			o.Logger.LogPlan(req.ChatID, req.TaskID, mainQuery, len(plan.SubQueries), true)
			return plan, nil
		}
	}

	plan, err := o.Planner.Decompose(ctx, mainQuery)
	if err != nil {
		return nil, err
	}
	log.Printf("[Planner] %d sub-queries for: %s", len(plan.SubQueries), mainQuery)
	o.Logger.LogPlan(req.ChatID, req.TaskID, mainQuery, len(plan.SubQueries), false)

	if o.Cache != nil {
		data, err := json.Marshal(plan)
		if err == nil {
			err = o.Cache.SavePlan(mainQuery, data)
		}
		if err != nil {
			log.Printf("Warning: failed to cache plan: %v", err)
		}
	}
	return plan, nil
}

func (o *Orchestrator) cachedPlan(mainQuery string) (*QueryPlan, bool) {
	data, ok, err := o.Cache.LoadPlan(mainQuery)
	if err != nil {
		log.Printf("Warning: failed to load cached plan: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var plan QueryPlan
	err = json.Unmarshal(data, &plan)
	if err == nil {
		err = plan.Validate()
	}
	if err != nil {
		log.Printf("Warning: discarding cached plan: %v", err)
		if err := o.Cache.ForgetPlan(mainQuery); err != nil {
			log.Printf("Warning: failed to forget cached plan: %v", err)
		}
		return nil, false
	}
	plan.OriginalQuery = mainQuery
	return &plan, true
}

// route executes every sub-query and returns the results in plan order,
// whatever order they complete in.
func (o *Orchestrator) route(ctx context.Context, plan *QueryPlan) (Results, error) {
	req := observability.RequestFromContext(ctx)
	results := make(Results, len(plan.SubQueries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.Concurrency))

	for i, sq := range plan.SubQueries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := o.Router.Execute(gctx, sq)
			if err != nil {
				rerr := &RouteError{ID: sq.ID, Err: err}
				if o.FailFast || gctx.Err() != nil {
					return rerr
				}
				log.Printf("[Router] sub-query %d failed, continuing: %v", sq.ID, err)
				res = ExecutionResult{
					ID:   sq.ID,
					Text: fmt.Sprintf("No result (%v)", err),
					Err:  rerr,
				}
			}

			o.Logger.LogStep(req.ChatID, req.TaskID, res.ID, res.Text)
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) check(ctx context.Context, req governance.Request) error {
	if o.Policy == nil {
		return nil
	}
	info := observability.RequestFromContext(ctx)
	req.ChatID = info.ChatID

	res, err := o.Policy.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	o.Logger.LogPolicyCheck(info.ChatID, info.TaskID, string(res.Effect), res.Reason)
	if res.Effect == governance.EffectDeny {
		return fmt.Errorf("%w: %s", ErrPolicyDenied, res.Reason)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, stage string, err error) {
	req := observability.RequestFromContext(ctx)
	log.Printf("[Orchestrator] %s failed: %v", stage, err)
	o.Logger.LogError(req.ChatID, req.TaskID, stage, err)
}

// begin tags ctx with a fresh task id unless the caller already set one.
func (o *Orchestrator) begin(ctx context.Context, chatID string) context.Context {
	if info := observability.RequestFromContext(ctx); info.TaskID != "" {
		return ctx
	}
	return observability.WithRequest(ctx, chatID, uuid.NewString())
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rahul/tally/internal/oracle"
	"github.com/rahul/tally/internal/oracle/oracletest"
	"github.com/rahul/tally/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// script drives a scripted oracle: the planner gets plan, the router looks
// the sub-query up in routes, and the aggregator echoes its prompt unless
// combine is set.
type script struct {
	plan    string
	routes  map[string]string
	delays  map[string]time.Duration
	combine func(prompt string) (*llms.ContentResponse, error)
}

const subQueryMarker = "Sub-query: "

func (s *script) model() *oracletest.Model {
	return &oracletest.Model{
		Respond: func(ctx context.Context, call oracletest.Call) (*llms.ContentResponse, error) {
			switch {
			case call.HasTool(proposePlanTool):
				return oracletest.ToolCall(proposePlanTool, s.plan), nil
			case strings.Contains(call.System(), "routing"):
				human := call.Human()
				q := human[strings.LastIndex(human, subQueryMarker)+len(subQueryMarker):]
				if d := s.delays[q]; d > 0 {
					select {
					case <-time.After(d):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}
				ans, ok := s.routes[q]
				if !ok {
					return nil, fmt.Errorf("unscripted sub-query %q", q)
				}
				return oracletest.Text(ans), nil
			default:
				if s.combine != nil {
					return s.combine(call.Human())
				}
				return oracletest.Text("## Answer\n\n" + call.Human()), nil
			}
		},
	}
}

func newTestOrchestrator(s *script) (*Orchestrator, *oracletest.Model) {
	model := s.model()
	o := NewOrchestrator(oracle.New(model), tools.NewArithmeticRegistry(), NewPromptManager(""), nil)
	return o, model
}

// routingCalls counts classifier calls recorded by model.
func routingCalls(model *oracletest.Model) int {
	n := 0
	for _, c := range model.Calls() {
		if strings.Contains(c.System(), "routing") {
			n++
		}
	}
	return n
}

// aggregationCalls counts synthesis calls recorded by model.
func aggregationCalls(model *oracletest.Model) []oracletest.Call {
	var out []oracletest.Call
	for _, c := range model.Calls() {
		if strings.Contains(c.System(), "helpful assistant") {
			out = append(out, c)
		}
	}
	return out
}

// textOracle answers every free-form call with fn.
type textOracle func(messages []llms.MessageContent) (oracle.TextResponse, error)

func (f textOracle) Generate(ctx context.Context, messages []llms.MessageContent) (oracle.TextResponse, error) {
	return f(messages)
}

// spyRegistry returns a registry whose handlers record that they ran.
type spyRegistry struct {
	mu    sync.Mutex
	calls int
}

func (s *spyRegistry) registry(kinds ...tools.Kind) *tools.Registry {
	r := tools.NewRegistry()
	for _, k := range kinds {
		r.Register(k, func(a, b float64) string {
			s.mu.Lock()
			s.calls++
			s.mu.Unlock()
			return fmt.Sprintf("%s(%s, %s)", k, tools.FormatNumber(a), tools.FormatNumber(b))
		})
	}
	return r
}

func (s *spyRegistry) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

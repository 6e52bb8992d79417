package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// QueryPlan is the ordered decomposition of one query. Order is preserved
// through routing and aggregation.
type QueryPlan struct {
	OriginalQuery string     `json:"original_query,omitempty"`
	SubQueries    []SubQuery `json:"sub_queries"`
}

// SubQuery is one atomic unit of a plan.
type SubQuery struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	OperandA *Operand `json:"operand_a,omitempty"`
	OperandB *Operand `json:"operand_b,omitempty"`
}

// Validate checks the structural invariants of the plan.
func (p *QueryPlan) Validate() error {
	if p == nil || len(p.SubQueries) == 0 {
		return ErrEmptyPlan
	}
	seen := make(map[int]bool, len(p.SubQueries))
	for i, sq := range p.SubQueries {
		if strings.TrimSpace(sq.Question) == "" {
			return fmt.Errorf("%w (position %d)", ErrEmptyQuestion, i)
		}
		if seen[sq.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateSubQueryID, sq.ID)
		}
		seen[sq.ID] = true
	}
	return nil
}

// Operand is a numeric parameter exactly as the planner produced it. Coercion
// to a number is deferred to execution so that a malformed value is reported
// against the sub-query that carries it.
type Operand struct {
	raw string
}

// Number returns an operand holding f.
func Number(f float64) *Operand {
	return &Operand{raw: strconv.FormatFloat(f, 'g', -1, 64)}
}

// RawOperand returns an operand holding unparsed text.
func RawOperand(s string) *Operand {
	return &Operand{raw: s}
}

func (o *Operand) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.raw = s
		return nil
	}
	o.raw = string(b)
	return nil
}

func (o Operand) MarshalJSON() ([]byte, error) {
	var f float64
	if err := json.Unmarshal([]byte(o.raw), &f); err == nil {
		return []byte(o.raw), nil
	}
	return json.Marshal(o.raw)
}

// Float coerces the operand to a finite float64.
func (o Operand) Float() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(o.raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", o.raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", o.raw)
	}
	return f, nil
}

func (o Operand) String() string {
	return o.raw
}

// ExecutionResult is the outcome of one sub-query, keyed by its id.
type ExecutionResult struct {
	ID   int    `json:"id"`
	Text string `json:"text"`

	// Err is set only when partial completion turned a routing failure
	// into a marker for the aggregator.
	Err error `json:"-"`
}

func (r ExecutionResult) Failed() bool {
	return r.Err != nil
}

// Results is the per-request result mapping, kept in plan order.
type Results []ExecutionResult

// PlanEnvelope is a previously produced plan bundled with its originating query.
type PlanEnvelope struct {
	Query string
	Plan  *QueryPlan
}

// DecodeEnvelope reads either {"query": ..., "answer": {plan}} or a bare plan
// carrying original_query.
func DecodeEnvelope(data []byte) (PlanEnvelope, error) {
	var raw struct {
		Query         string     `json:"query"`
		Answer        *QueryPlan `json:"answer"`
		OriginalQuery string     `json:"original_query"`
		SubQueries    []SubQuery `json:"sub_queries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return PlanEnvelope{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	var env PlanEnvelope
	switch {
	case raw.Answer != nil:
		env = PlanEnvelope{Query: raw.Query, Plan: raw.Answer}
		if env.Query == "" {
			env.Query = raw.Answer.OriginalQuery
		}
	case raw.SubQueries != nil:
		env = PlanEnvelope{
			Query: raw.OriginalQuery,
			Plan:  &QueryPlan{OriginalQuery: raw.OriginalQuery, SubQueries: raw.SubQueries},
		}
	default:
		return PlanEnvelope{}, fmt.Errorf("%w: no 'answer' key holding the query plan", ErrInvalidPlan)
	}

	if strings.TrimSpace(env.Query) == "" {
		return PlanEnvelope{}, fmt.Errorf("%w: missing originating query", ErrInvalidPlan)
	}
	return env, nil
}

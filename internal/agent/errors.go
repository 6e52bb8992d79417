package agent

import (
	"errors"
	"fmt"

	"github.com/rahul/tally/internal/oracle"
)

var (
	ErrPlanning             = errors.New("planning failed")
	ErrRouteClassification  = errors.New("route classification failed")
	ErrMissingOperand       = errors.New("missing operand")
	ErrInvalidNumber        = errors.New("invalid number")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrAggregation          = errors.New("aggregation failed")
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrPolicyDenied         = errors.New("denied by policy")

	// ErrUnexpectedOracleFormat is raised at the oracle boundary.
	ErrUnexpectedOracleFormat = oracle.ErrUnexpectedFormat
)

// Plan structure violations. The planner reports them wrapped in ErrPlanning,
// supplied plans wrapped in ErrInvalidPlan.
var (
	ErrEmptyPlan           = errors.New("plan has no sub-queries")
	ErrEmptyQuestion       = errors.New("sub-query has no question")
	ErrDuplicateSubQueryID = errors.New("duplicate sub-query id")
)

// RouteError reports which sub-query failed to route or execute.
type RouteError struct {
	ID  int
	Err error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("sub-query %d: %v", e.ID, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

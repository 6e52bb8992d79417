package tools

import (
	"sort"
)

// Kind identifies a deterministic operation a sub-query can be routed to.
type Kind string

const (
	KindMultiply Kind = "multiply"
	KindDivide   Kind = "divide"
)

// kindTokens is the lookup table from normalized classifier text to Kind.
// Text missing from the table never falls back to a default.
var kindTokens = map[string]Kind{
	"multiply": KindMultiply,
	"divide":   KindDivide,
}

// ParseKind decodes an already normalized classifier answer.
func ParseKind(token string) (Kind, bool) {
	k, ok := kindTokens[token]
	return k, ok
}

// KnownKinds returns every Kind the classifier may answer with, in a stable order.
func KnownKinds() []Kind {
	kinds := make([]Kind, 0, len(kindTokens))
	for _, k := range kindTokens {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (k Kind) String() string {
	return string(k)
}

var kindDescriptions = map[Kind]string{
	KindMultiply: "queries that require multiplication",
	KindDivide:   "queries that require division",
}

// Description tells the classifier when to choose k.
func (k Kind) Description() string {
	if d, ok := kindDescriptions[k]; ok {
		return d
	}
	return "queries about " + string(k)
}

// Handler computes the human readable result of an operation.
// Handlers are pure and must not fail for any finite input.
type Handler func(a, b float64) string

// Registry manages the set of available operations. The zero value is
// empty and ready to use; a nil *Registry has no handlers.
type Registry struct {
	Handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		Handlers: make(map[Kind]Handler),
	}
}

// NewArithmeticRegistry returns a registry with every built-in handler registered.
func NewArithmeticRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindMultiply, Multiply)
	r.Register(KindDivide, Divide)
	return r
}

func (r *Registry) Register(k Kind, h Handler) {
	if r.Handlers == nil {
		r.Handlers = make(map[Kind]Handler)
	}
	r.Handlers[k] = h
}

func (r *Registry) Get(k Kind) Handler {
	if r == nil {
		return nil
	}
	return r.Handlers[k]
}

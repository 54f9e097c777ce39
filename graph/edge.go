package graph

// ForwardFunc decides whether an edge is taken and what value crosses it.
// Returning ok=false skips the edge; the engine then tries the next edge in
// declaration order. This one primitive covers both conditional routing and
// data transformation.
type ForwardFunc func(rc *RunContext, output any) (any, bool)

// ForwardAlways passes the node output through unchanged. It is the forward
// function of an unconditional edge.
var ForwardAlways ForwardFunc = func(_ *RunContext, output any) (any, bool) {
	return output, true
}

// When narrows the forward function with a predicate: the edge is taken only
// when the existing function matches AND pred holds on its result.
//
// Example:
//
//	onRetry := graph.ForwardAlways.When(func(_ *graph.RunContext, v any) bool {
//	    return v == "retry"
//	})
func (f ForwardFunc) When(pred func(rc *RunContext, value any) bool) ForwardFunc {
	return func(rc *RunContext, output any) (any, bool) {
		v, ok := f(rc, output)
		if !ok || !pred(rc, v) {
			return nil, false
		}
		return v, true
	}
}

// Map composes a transform after the forward function: when the edge
// matches, the transformed value is what reaches the target node.
func (f ForwardFunc) Map(transform func(rc *RunContext, value any) any) ForwardFunc {
	return func(rc *RunContext, output any) (any, bool) {
		v, ok := f(rc, output)
		if !ok {
			return nil, false
		}
		return transform(rc, v), true
	}
}

// Edge is a directed, conditionally-taken link between two nodes of the same
// graph. A node's outgoing edges are evaluated in declaration order; the
// first match wins, so edge order is a semantic contract.
type Edge struct {
	from    string
	to      string
	forward ForwardFunc
}

// From returns the source node name.
func (e Edge) From() string { return e.from }

// To returns the target node name.
func (e Edge) To() string { return e.to }

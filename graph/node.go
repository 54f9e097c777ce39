package graph

import (
	"context"

	"github.com/google/uuid"
)

// Reserved node names. Every subgraph gets a Start and Finish node with
// these names at build time.
const (
	StartNodeName  = "start"
	FinishNodeName = "finish"
)

// Body is a node's unit of work: it receives the run context and the value
// that crossed the incoming edge, and returns the node's output or fails.
//
// Bodies own their retries and timeouts; the engine adds neither.
type Body func(ctx context.Context, rc *RunContext, input any) (any, error)

type nodeKind int

const (
	nodeSimple nodeKind = iota
	nodeStart
	nodeFinish
	nodeSubgraph
	nodeParallel
)

// Node is a named unit of work in a workflow graph. A node is one of:
//   - a simple node wrapping a Body function
//   - a Start or Finish marker (identity bodies)
//   - a nested Subgraph, executed recursively
//   - a Parallel composite that forks the run across branches
//
// Nodes are immutable once built; identity is fixed at creation. The engine
// dispatches on the variant.
type Node struct {
	id       string
	name     string
	inKind   string
	outKind  string
	kind     nodeKind
	body     Body
	sub      *Subgraph
	parallel *parallelSpec
}

// NewNode creates a simple node. inKind and outKind declare the element
// kinds the node consumes and produces ("string", "message", ...); they are
// used for build-time edge sanity and event serialization hints, not for
// runtime coercion.
func NewNode(name, inKind, outKind string, body Body) *Node {
	return &Node{
		id:      uuid.NewString(),
		name:    name,
		inKind:  inKind,
		outKind: outKind,
		kind:    nodeSimple,
		body:    body,
	}
}

// NewSubgraphNode wraps a built subgraph so it can be used as a node in a
// parent graph. The node carries the subgraph's name and boundary kinds.
func NewSubgraphNode(sub *Subgraph) *Node {
	return &Node{
		id:      uuid.NewString(),
		name:    sub.Name(),
		inKind:  sub.start.inKind,
		outKind: sub.finish.outKind,
		kind:    nodeSubgraph,
		sub:     sub,
	}
}

// NewParallelNode creates a composite that runs the branch nodes
// concurrently over forked contexts and merges their results. merge must
// select exactly one branch result; see MergeFunc.
func NewParallelNode(name, inKind, outKind string, merge MergeFunc, branches ...*Node) *Node {
	return &Node{
		id:      uuid.NewString(),
		name:    name,
		inKind:  inKind,
		outKind: outKind,
		kind:    nodeParallel,
		parallel: &parallelSpec{
			branches: branches,
			merge:    merge,
		},
	}
}

// WithMaxConcurrency caps how many branches of a parallel node run at once.
// Zero or negative means unlimited. Returns the node for chaining; calling
// it on a non-parallel node is a no-op.
func (n *Node) WithMaxConcurrency(limit int) *Node {
	if n.parallel != nil {
		n.parallel.maxConcurrency = limit
	}
	return n
}

func newMarkerNode(name string, kind nodeKind) *Node {
	return &Node{
		id:   uuid.NewString(),
		name: name,
		kind: kind,
	}
}

// ID returns the node's fixed identity.
func (n *Node) ID() string { return n.id }

// Name returns the node's human name, unique within its graph.
func (n *Node) Name() string { return n.name }

// InputKind returns the declared input element kind.
func (n *Node) InputKind() string { return n.inKind }

// OutputKind returns the declared output element kind.
func (n *Node) OutputKind() string { return n.outKind }

// IsFinish reports whether this is the graph's Finish marker.
func (n *Node) IsFinish() bool { return n.kind == nodeFinish }

// Subgraph returns the nested subgraph, or nil for other node variants.
func (n *Node) Subgraph() *Subgraph { return n.sub }

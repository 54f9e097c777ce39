// Package graph implements the workflow model and execution engine: nodes,
// conditional edges, recursive subgraphs, parallel fork/merge composites,
// and the run loop that reports every step to the lifecycle pipeline.
package graph

import (
	"errors"
	"fmt"
)

// ErrDeadEnd marks a traversal failure: a node completed but no outgoing
// edge matched its output. Check with errors.Is.
var ErrDeadEnd = errors.New("no matching edge")

// ErrCheckpointInParallel is returned when a parallel branch saved a
// checkpoint. Checkpoints are unsupported under parallel execution: no merge
// order is canonical for their side effects.
var ErrCheckpointInParallel = errors.New("checkpoint saved inside a parallel branch")

// ErrIterationLimit is returned when a run exceeds its step budget, the
// usual symptom of a cycle with no terminating edge condition.
var ErrIterationLimit = errors.New("iteration limit exceeded")

// BuildError reports a structural defect found at build time. Structural
// defects are fatal and surface before any node executes.
type BuildError struct {
	// Subgraph names the graph being built.
	Subgraph string

	// Reason describes the defect.
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building %q: %s", e.Subgraph, e.Reason)
}

// TraversalError reports a dead end: the named node produced output that no
// outgoing edge accepted. Wraps ErrDeadEnd.
type TraversalError struct {
	Subgraph string
	NodeName string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("node %q in %q: no outgoing edge matched", e.NodeName, e.Subgraph)
}

func (e *TraversalError) Unwrap() error { return ErrDeadEnd }

// NodeError wraps a failure raised by a node body, naming the node so callers
// can locate the failing step. The cause is available via Unwrap.
type NodeError struct {
	NodeName string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeName, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// MergeError reports a merge function that misbehaved: returned an error
// itself, or selected a context that is not one of the supplied forks.
type MergeError struct {
	NodeName string
	Reason   string
	Err      error
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parallel node %q: merge failed: %v", e.NodeName, e.Err)
	}
	return fmt.Sprintf("parallel node %q: %s", e.NodeName, e.Reason)
}

func (e *MergeError) Unwrap() error { return e.Err }

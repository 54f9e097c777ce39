package graph

import (
	"context"
	"fmt"

	"github.com/weavegraph/weave/graph/pipeline"
)

// Engine walks a subgraph for one run, reporting every step to the run
// context's pipeline.
//
// The engine adds no behavior of its own around node bodies: no retries, no
// timeouts, no sandboxing of handler errors. A body failure, a dead end, or
// a pipeline handler failure each abort the run after the corresponding
// failure event has been dispatched, so observers always see the failure
// the caller is about to receive.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Run executes the subgraph from its Start node and returns the value that
// reached Finish.
//
// Each step: dispatch NodeExecutionStarting, execute the body, dispatch
// NodeExecutionCompleted (or NodeExecutionFailed and abort), then follow the
// first outgoing edge whose forward function matches the output. Reaching
// Finish returns its value; a node whose output no edge accepts fails with a
// TraversalError.
func (e *Engine) Run(ctx context.Context, sub *Subgraph, rc *RunContext, input any) (any, error) {
	current := sub.start
	value := input

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rc.state.Advance(); err != nil {
			return nil, err
		}

		rc.setCurrentNode(current.name)
		encodedIn := encodePayload(value)
		if err := rc.notify(ctx, pipeline.NewNodeExecutionStarting(rc.runID, current.name, encodedIn)); err != nil {
			return nil, err
		}

		output, err := e.executeBody(ctx, current, rc, value)
		if err != nil {
			if nerr := rc.notify(ctx, pipeline.NewNodeExecutionFailed(rc.runID, current.name, encodedIn, err.Error())); nerr != nil {
				return nil, nerr
			}
			return nil, &NodeError{NodeName: current.name, Err: err}
		}

		if err := rc.notify(ctx, pipeline.NewNodeExecutionCompleted(rc.runID, current.name, encodedIn, encodePayload(output))); err != nil {
			return nil, err
		}

		if current.kind == nodeFinish {
			return output, nil
		}

		next, forwarded, ok := e.selectEdge(sub, rc, current, output)
		if !ok {
			return nil, &TraversalError{Subgraph: sub.name, NodeName: current.name}
		}
		current = next
		value = forwarded
	}
}

// selectEdge evaluates the node's outgoing edges in declaration order and
// returns the first match.
func (e *Engine) selectEdge(sub *Subgraph, rc *RunContext, node *Node, output any) (*Node, any, bool) {
	for _, edge := range sub.edges[node.name] {
		if v, ok := edge.forward(rc, output); ok {
			return sub.nodes[edge.to], v, true
		}
	}
	return nil, nil, false
}

// executeBody dispatches on the node variant.
func (e *Engine) executeBody(ctx context.Context, node *Node, rc *RunContext, input any) (any, error) {
	switch node.kind {
	case nodeStart, nodeFinish:
		return input, nil
	case nodeSimple:
		return node.body(ctx, rc, input)
	case nodeSubgraph:
		return e.runSubgraph(ctx, node.sub, rc, input)
	case nodeParallel:
		return e.runParallel(ctx, node, rc, input)
	default:
		return nil, fmt.Errorf("node %q: unknown variant", node.name)
	}
}

// runSubgraph recurses into a nested subgraph, bracketing it with subgraph
// lifecycle events.
func (e *Engine) runSubgraph(ctx context.Context, sub *Subgraph, rc *RunContext, input any) (any, error) {
	if err := rc.notify(ctx, pipeline.NewSubgraphExecutionStarting(rc.runID, sub.name, encodePayload(input))); err != nil {
		return nil, err
	}

	output, err := e.Run(ctx, sub, rc, input)
	if err != nil {
		if nerr := rc.notify(ctx, pipeline.NewSubgraphExecutionFailed(rc.runID, sub.name, err.Error())); nerr != nil {
			return nil, nerr
		}
		return nil, err
	}

	if err := rc.notify(ctx, pipeline.NewSubgraphExecutionCompleted(rc.runID, sub.name, encodePayload(output))); err != nil {
		return nil, err
	}
	return output, nil
}

package graph

import (
	"fmt"

	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/tool"
)

// Builder constructs a Subgraph. Structural mistakes (duplicate names, edges
// out of Finish, edges to foreign nodes) are collected as they happen and
// reported together by Build, so construction code can chain calls without
// per-call error handling.
//
// Example:
//
//	b := graph.NewBuilder("review")
//	draft := b.AddNode("draft", "string", "string", draftBody)
//	check := b.AddNode("check", "string", "string", checkBody)
//	b.AddEdge(b.Start(), draft, nil)
//	b.AddEdge(draft, check, nil)
//	b.AddEdge(check, b.Finish(), nil)
//	review, err := b.Build()
type Builder struct {
	name   string
	nodes  map[string]*Node
	byID   map[string]*Node
	order  []string
	edges  map[string][]Edge
	start  *Node
	finish *Node
	errs   []string

	toolSel       tool.Selection
	modelOverride model.ChatModel
}

// NewBuilder creates a builder for a subgraph with the given name. The Start
// and Finish marker nodes exist immediately; wire them with AddEdge.
func NewBuilder(name string) *Builder {
	b := &Builder{
		name:  name,
		nodes: make(map[string]*Node),
		byID:  make(map[string]*Node),
		edges: make(map[string][]Edge),
	}
	b.start = newMarkerNode(StartNodeName, nodeStart)
	b.finish = newMarkerNode(FinishNodeName, nodeFinish)
	b.register(b.start)
	b.register(b.finish)
	return b
}

// Start returns the graph's Start marker node.
func (b *Builder) Start() *Node { return b.start }

// Finish returns the graph's Finish marker node.
func (b *Builder) Finish() *Node { return b.finish }

// AddNode creates and registers a simple node. See NewNode for the kind
// parameters.
func (b *Builder) AddNode(name, inKind, outKind string, body Body) *Node {
	return b.Add(NewNode(name, inKind, outKind, body))
}

// AddSubgraph registers a built subgraph as a node of this graph.
func (b *Builder) AddSubgraph(sub *Subgraph) *Node {
	return b.Add(NewSubgraphNode(sub))
}

// AddParallel creates and registers a parallel composite node. See
// NewParallelNode.
func (b *Builder) AddParallel(name, inKind, outKind string, merge MergeFunc, branches ...*Node) *Node {
	return b.Add(NewParallelNode(name, inKind, outKind, merge, branches...))
}

// Add registers a pre-built node. Duplicate names within this graph are
// reported at Build time.
func (b *Builder) Add(n *Node) *Node {
	if _, exists := b.nodes[n.name]; exists {
		b.errs = append(b.errs, fmt.Sprintf("duplicate node name %q", n.name))
		return n
	}
	b.register(n)
	return n
}

func (b *Builder) register(n *Node) {
	b.nodes[n.name] = n
	b.byID[n.id] = n
	b.order = append(b.order, n.name)
}

// AddEdge wires from → to with the given forward function; nil means the
// edge is always taken and passes the value through unchanged. Edges out of
// the same node are evaluated in the order they were added.
//
// Edges out of Finish and edges touching nodes not registered in this
// builder are rejected at Build time.
func (b *Builder) AddEdge(from, to *Node, forward ForwardFunc) *Builder {
	if from.kind == nodeFinish {
		b.errs = append(b.errs, fmt.Sprintf("edge out of finish node (to %q)", to.name))
		return b
	}
	if _, ok := b.byID[from.id]; !ok {
		b.errs = append(b.errs, fmt.Sprintf("edge from %q: node not in this graph", from.name))
		return b
	}
	if _, ok := b.byID[to.id]; !ok {
		b.errs = append(b.errs, fmt.Sprintf("edge to %q: node not in this graph", to.name))
		return b
	}
	if forward == nil {
		forward = ForwardAlways
	}
	b.edges[from.name] = append(b.edges[from.name], Edge{from: from.name, to: to.name, forward: forward})
	return b
}

// WithToolSelection sets which registered tools are visible while this
// subgraph runs.
func (b *Builder) WithToolSelection(sel tool.Selection) *Builder {
	b.toolSel = sel
	return b
}

// WithModel overrides the run's default chat model inside this subgraph.
func (b *Builder) WithModel(m model.ChatModel) *Builder {
	b.modelOverride = m
	return b
}

// Build validates the graph and returns the immutable Subgraph.
//
// Checks, all before any run starts:
//  1. Every structural mistake recorded during construction.
//  2. Finish reachable from Start (depth-first walk).
//  3. Node names unique per scope across nested subgraphs, path-qualified
//     by parent subgraph name.
//
// Build is deterministic: the same construction sequence yields an
// equivalent graph.
func (b *Builder) Build() (*Subgraph, error) {
	if len(b.errs) > 0 {
		return nil, &BuildError{Subgraph: b.name, Reason: b.errs[0]}
	}

	sub := &Subgraph{
		name:          b.name,
		nodes:         b.nodes,
		order:         b.order,
		edges:         b.edges,
		start:         b.start,
		finish:        b.finish,
		toolSel:       b.toolSel,
		modelOverride: b.modelOverride,
	}

	if !b.finishReachable() {
		return nil, &BuildError{Subgraph: b.name, Reason: "finish node not reachable from start"}
	}

	seen := make(map[string]struct{})
	if reason := collectQualifiedNames(sub, "", seen); reason != "" {
		return nil, &BuildError{Subgraph: b.name, Reason: reason}
	}

	return sub, nil
}

// finishReachable walks the edge relation depth-first from Start.
func (b *Builder) finishReachable() bool {
	visited := make(map[string]bool)
	stack := []string{b.start.name}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		visited[name] = true
		if name == b.finish.name {
			return true
		}
		for _, e := range b.edges[name] {
			stack = append(stack, e.to)
		}
	}
	return false
}

// collectQualifiedNames records every transitively-reachable node name,
// path-qualified by its parent subgraphs, and reports the first duplicate.
// Parallel branches count as part of the enclosing scope.
func collectQualifiedNames(sub *Subgraph, prefix string, seen map[string]struct{}) string {
	scope := prefix + sub.name + "/"
	for _, name := range sub.order {
		qualified := scope + name
		if _, dup := seen[qualified]; dup {
			return fmt.Sprintf("duplicate node name %q in scope %q", name, scope)
		}
		seen[qualified] = struct{}{}

		node := sub.nodes[name]
		switch node.kind {
		case nodeSubgraph:
			if reason := collectQualifiedNames(node.sub, scope, seen); reason != "" {
				return reason
			}
		case nodeParallel:
			for _, branch := range node.parallel.branches {
				branchQualified := scope + name + "/" + branch.name
				if _, dup := seen[branchQualified]; dup {
					return fmt.Sprintf("duplicate branch name %q in parallel node %q", branch.name, name)
				}
				seen[branchQualified] = struct{}{}
				if branch.kind == nodeSubgraph {
					if reason := collectQualifiedNames(branch.sub, scope+name+"/", seen); reason != "" {
						return reason
					}
				}
			}
		}
	}
	return ""
}

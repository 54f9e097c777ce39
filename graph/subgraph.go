package graph

import (
	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/tool"
)

// Subgraph is a named, self-contained workflow graph with exactly one Start
// and one Finish node. A built subgraph is immutable and can itself be used
// as a node in a parent graph via NewSubgraphNode.
//
// A subgraph optionally carries a tool selection (which registered tools are
// visible while its nodes run) and a model override, both inherited by node
// bodies through the run context helpers.
type Subgraph struct {
	name   string
	nodes  map[string]*Node
	order  []string
	edges  map[string][]Edge
	start  *Node
	finish *Node

	toolSel       tool.Selection
	modelOverride model.ChatModel
}

// Name returns the subgraph's name.
func (s *Subgraph) Name() string { return s.name }

// Start returns the Start marker node.
func (s *Subgraph) Start() *Node { return s.start }

// Finish returns the Finish marker node.
func (s *Subgraph) Finish() *Node { return s.finish }

// Node returns the named node.
func (s *Subgraph) Node(name string) (*Node, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// NodeNames returns all node names in declaration order, Start first and
// Finish last.
func (s *Subgraph) NodeNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Edges returns the outgoing edges of the named node, in declaration order.
func (s *Subgraph) Edges(from string) []Edge {
	return s.edges[from]
}

// ToolSelection returns the subgraph's tool visibility, nil when every
// registered tool is visible.
func (s *Subgraph) ToolSelection() tool.Selection { return s.toolSel }

// Model returns the subgraph's model override, nil when the run's default
// model applies.
func (s *Subgraph) Model() model.ChatModel { return s.modelOverride }

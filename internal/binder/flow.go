package binder

import "github.com/oxhq/pytype/internal/syntax"

// FlowKind tags a node in the per-function/module flow graph (spec.md
// §4.3 bullet 3).
type FlowKind int

const (
	FlowStart FlowKind = iota
	FlowLabel        // an ordinary statement point, single antecedent
	FlowBranch       // before a conditional: one antecedent, the test
	FlowMerge        // after a conditional/loop: multiple antecedents
	FlowLoopHead     // loop entry, has a loop-back antecedent added later
	FlowLoopBack     // the loop-back edge itself
	FlowFinally      // unifies all exception paths after a try/finally
	FlowUnreachable  // dominated by an unconditional break/continue/return/raise
)

// FlowNode is one point in the flow graph. Antecedents record every
// predecessor flow point that can reach this one; narrowing is computed by
// walking Antecedents backward from a name use (spec.md §4.5).
type FlowNode struct {
	ID          int
	Kind        FlowKind
	Antecedents []*FlowNode
	Node        *syntax.Node // the statement/test this point corresponds to, if any

	// Polarity distinguishes the two FlowBranch points created for one Test
	// expression (the then-arm vs the else-arm), since both carry the same
	// Node (spec.md §4.5 narrowing keys on "a reference to the conditional
	// expression and a polarity"). Zero for every non-branch kind.
	Polarity Polarity
}

// Polarity is which side of a conditional a FlowBranch node represents.
type Polarity int8

const (
	PolarityNone Polarity = 0
	PolarityTrue Polarity = 1
	PolarityFalse Polarity = -1
)

// FlowGraph owns every FlowNode created while binding one module.
type FlowGraph struct {
	nodes  []*FlowNode
	nextID int
}

func newFlowGraph() *FlowGraph { return &FlowGraph{} }

func (g *FlowGraph) new(kind FlowKind, node *syntax.Node, antecedents ...*FlowNode) *FlowNode {
	g.nextID++
	n := &FlowNode{ID: g.nextID, Kind: kind, Node: node, Antecedents: antecedents}
	g.nodes = append(g.nodes, n)
	return n
}

// newBranch is like new(FlowBranch, ...) but also records which side of the
// conditional this flow point represents (spec.md §4.5 narrowing).
func (g *FlowGraph) newBranch(node *syntax.Node, polarity Polarity, antecedents ...*FlowNode) *FlowNode {
	n := g.new(FlowBranch, node, antecedents...)
	n.Polarity = polarity
	return n
}

func (g *FlowGraph) addAntecedent(n, ante *FlowNode) {
	n.Antecedents = append(n.Antecedents, ante)
}

// Nodes returns every flow node created, in creation order.
func (g *FlowGraph) Nodes() []*FlowNode { return g.nodes }

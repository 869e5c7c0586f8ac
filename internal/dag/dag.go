// Package dag provides directed acyclic graph operations for query topologies.
// Edges that would close a cycle (self-loops included) are rejected when they
// are added, and sorting is stable with respect to node insertion order.
package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
)

// Node represents a node in the DAG.
type Node struct {
	// ID is the unique identifier (topology node key)
	ID string
	// Data holds arbitrary node data
	Data any

	order int
}

// CycleError is returned by AddEdge when the edge would close a cycle.
// Path starts and ends with the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return graph.ErrEdgeCreatesCycle
}

// Graph represents a directed acyclic graph.
type Graph struct {
	g     graph.Graph[string, *Node]
	nodes map[string]*Node
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		g:     graph.New(func(n *Node) string { return n.ID }, graph.Directed(), graph.PreventCycles()),
		nodes: make(map[string]*Node),
	}
}

// AddNode adds a node to the graph. Adding an existing ID updates its data
// and keeps its original position.
func (g *Graph) AddNode(id string, data any) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	n := &Node{ID: id, Data: data, order: len(g.nodes)}
	g.nodes[id] = n
	_ = g.g.AddVertex(n)
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// Duplicate edges are ignored.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return &CycleError{Path: []string{parentID, parentID}}
	}

	err := g.g.AddEdge(parentID, childID)
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		back, perr := graph.ShortestPath(g.g, childID, parentID)
		if perr != nil {
			return &CycleError{Path: []string{parentID, childID, parentID}}
		}
		return &CycleError{Path: append([]string{parentID}, back...)}
	default:
		return fmt.Errorf("add edge %s -> %s: %w", parentID, childID, err)
	}
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node in insertion order.
func (g *Graph) GetParents(id string) []string {
	pm, err := g.g.PredecessorMap()
	if err != nil {
		return nil
	}
	return g.ordered(pm[id])
}

// GetChildren returns the children (dependents) of a node in insertion order.
func (g *Graph) GetChildren(id string) []string {
	am, err := g.g.AdjacencyMap()
	if err != nil {
		return nil
	}
	return g.ordered(am[id])
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	n, err := g.g.Size()
	if err != nil {
		return 0
	}
	return n
}

// TopologicalSort returns nodes in topological order (dependencies before
// dependents). Ties are broken by insertion order.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	ids, err := graph.StableTopologicalSort(g.g, func(a, b string) bool {
		return g.nodes[a].order < g.nodes[b].order
	})
	if err != nil {
		return nil, fmt.Errorf("topological sort: %w", err)
	}
	result := make([]*Node, len(ids))
	for i, id := range ids {
		result[i] = g.nodes[id]
	}
	return result, nil
}

func (g *Graph) ordered(set map[string]graph.Edge[string]) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.nodes[ids[i]].order < g.nodes[ids[j]].order
	})
	return ids
}

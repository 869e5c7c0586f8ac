// Package topology compiles a criteria snapshot into an ordered set of
// adapter fetch/action nodes.
//
// One node exists per resource namespace touched by the query. A constraint
// whose right-hand side references an attribute of another namespace makes
// its node depend on the referenced node, so the referenced records are
// fetched first. Nodes are ordered topologically with insertion order as
// the tie-breaker; the result is deterministic for a given criteria.
package topology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapquery/internal/dag"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// Node is one unit of adapter work.
type Node struct {
	// Key is namespace + "." + action ("facebook.user.find").
	Key string

	Resource    criteria.ResourceReference
	Action      criteria.ActionKind
	Data        []criteria.Record
	Constraints []*criteria.Constraint
	Sorting     []criteria.Sort
	Relations   []criteria.Relation

	// Paging is only set on the terminal node.
	Paging criteria.Paging

	// Terminal marks the node whose result the query returns.
	Terminal bool

	// DependsOn lists the keys of nodes that must run first.
	DependsOn []string

	// Result is the buffered result of the last execution, nil before.
	Result *adapter.Result
}

// Topology is a compiled, ordered execution plan.
type Topology struct {
	// Nodes in execution order.
	Nodes []*Node

	// Terminal is the node whose result is returned.
	Terminal *Node

	// DefaultAdapter is the adapter used for namespaces without one.
	DefaultAdapter string

	byNamespace map[string]*Node
}

// CyclicTopologyError is returned when node dependencies form a cycle.
// Path starts and ends with the same node key.
type CyclicTopologyError struct {
	Path []string
}

func (e *CyclicTopologyError) Error() string {
	return fmt.Sprintf("cyclic topology: %s", strings.Join(e.Path, " -> "))
}

// IsCycleError reports whether err is (or wraps) a CyclicTopologyError.
func IsCycleError(err error) bool {
	var ce *CyclicTopologyError
	return errors.As(err, &ce)
}

// Compile builds the topology for c.
func Compile(c *criteria.Criteria) (*Topology, error) {
	terminal, ok := c.Terminal()
	if !ok {
		return nil, &criteria.MissingSelectionError{Op: "compile"}
	}

	b := &builder{
		c:    c,
		term: terminal.Namespace,
		byNS: make(map[string]*Node),
	}

	for _, src := range c.Sources {
		b.ensure(src.Resource)
	}
	b.ensure(terminal)

	var edges [][2]*Node
	for _, con := range c.Constraints {
		left := b.ensure(resourceOf(con.Left))
		left.Constraints = append(left.Constraints, con)
		if con.CrossResource() {
			right := b.ensure(resourceOf(*con.Right.Ref))
			edges = append(edges, [2]*Node{right, left})
		}
	}
	for _, s := range c.Sorting {
		n := b.ensure(resourceOf(s.Attr))
		n.Sorting = append(n.Sorting, s)
	}
	for _, r := range c.Relations {
		n := b.ensure(resourceOf(r.Attr))
		n.Relations = append(n.Relations, r)
	}

	term := b.byNS[b.term]
	term.Paging = c.Paging
	term.Data = c.Action.Data

	g := dag.NewGraph()
	for _, n := range b.order {
		g.AddNode(n.Key, n)
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0].Key, e[1].Key); err != nil {
			var ce *dag.CycleError
			if errors.As(err, &ce) {
				return nil, &CyclicTopologyError{Path: ce.Path}
			}
			return nil, err
		}
	}

	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	t := &Topology{
		Nodes:          make([]*Node, 0, len(sorted)),
		Terminal:       term,
		DefaultAdapter: c.DefaultAdapter,
		byNamespace:    b.byNS,
	}
	for _, dn := range sorted {
		n := dn.Data.(*Node)
		n.DependsOn = g.GetParents(n.Key)
		t.Nodes = append(t.Nodes, n)
	}
	return t, nil
}

type builder struct {
	c     *criteria.Criteria
	term  string
	byNS  map[string]*Node
	order []*Node
}

// ensure returns the node for ref's namespace, creating it on first use.
func (b *builder) ensure(ref criteria.ResourceReference) *Node {
	if n, ok := b.byNS[ref.Namespace]; ok {
		return n
	}
	action := criteria.ActionFind
	if ref.Namespace == b.term {
		action = b.c.Action.Kind
	}
	n := &Node{
		Key:      ref.Namespace + "." + action.String(),
		Resource: ref,
		Action:   action,
		Terminal: ref.Namespace == b.term,
	}
	b.byNS[ref.Namespace] = n
	b.order = append(b.order, n)
	return n
}

func resourceOf(a criteria.AttributeReference) criteria.ResourceReference {
	return criteria.ResourceReference{Adapter: a.Adapter, Resource: a.Resource, Namespace: a.Namespace}
}

// Node returns the node with the given key.
func (t *Topology) Node(key string) (*Node, bool) {
	for _, n := range t.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return nil, false
}

// NodeFor returns the node of a resource namespace.
func (t *Topology) NodeFor(namespace string) (*Node, bool) {
	n, ok := t.byNamespace[namespace]
	return n, ok
}

// ResetResults clears buffered node results.
func (t *Topology) ResetResults() {
	for _, n := range t.Nodes {
		n.Result = nil
	}
}

// Keys returns node keys in execution order.
func (t *Topology) Keys() []string {
	keys := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		keys[i] = n.Key
	}
	return keys
}

// String renders the topology in a stable text form.
func (t *Topology) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "topology: %d node(s), terminal %s\n", len(t.Nodes), t.Terminal.Key)
	for i, n := range t.Nodes {
		fmt.Fprintf(&sb, "%d. %s", i+1, n.Key)
		if n.Terminal {
			sb.WriteString(" (terminal)")
		}
		if len(n.DependsOn) > 0 {
			fmt.Fprintf(&sb, " <- %s", strings.Join(n.DependsOn, ", "))
		}
		sb.WriteString("\n")

		fmt.Fprintf(&sb, "   adapter %s\n", n.Resource.Adapter)
		for _, c := range n.Constraints {
			fmt.Fprintf(&sb, "   where %s\n", c)
		}
		for _, s := range n.Sorting {
			fmt.Fprintf(&sb, "   sort %s %s\n", s.Attr.Path, s.Direction)
		}
		for _, r := range n.Relations {
			fmt.Fprintf(&sb, "   relation %s %s\n", r.Attr.Path, r.Direction)
		}
		if n.Paging.Limit > 0 {
			fmt.Fprintf(&sb, "   limit %d\n", n.Paging.Limit)
		}
		if n.Paging.Page > 0 {
			fmt.Fprintf(&sb, "   page %d\n", n.Paging.Page)
		}
		if n.Paging.Offset > 0 {
			fmt.Fprintf(&sb, "   offset %d\n", n.Paging.Offset)
		}
		if len(n.Data) > 0 {
			fmt.Fprintf(&sb, "   data %d record(s)\n", len(n.Data))
		}
	}
	return sb.String()
}

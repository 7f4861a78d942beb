package container

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	perr "recycle/internal/platform/errors"
)

// Node is one provider in the graph
type Node struct {
	Type     string `json:"type"`
	Lifetime string `json:"lifetime"`
	Seeded   bool   `json:"seeded,omitempty"`
	Built    bool   `json:"built"`
}

// Edge means "From depends on To"
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a snapshot of providers and their declared dependencies
type Graph struct {
	Nodes     []Node   `json:"nodes"`
	Edges     []Edge   `json:"edges"`
	TopoOrder []string `json:"topo_order"`
}

// TopoOrder lists provided types with dependencies before dependents. Ties
// keep declaration order.
func (c *Container) TopoOrder() ([]reflect.Type, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topo != nil {
		return slices.Clone(c.topo), nil
	}
	topo, err := c.topoSort()
	if err != nil {
		return nil, err
	}
	c.topo = topo
	return slices.Clone(topo), nil
}

// topoSort walks declared providers depth first; caller holds mu
func (c *Container) topoSort() ([]reflect.Type, error) {
	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	state := make(map[reflect.Type]uint8, len(c.declared))
	stack := make([]reflect.Type, 0, len(c.declared))
	topo := make([]reflect.Type, 0, len(c.declared))

	var visit func(t reflect.Type) error
	visit = func(t reflect.Type) error {
		switch state[t] {
		case stateDone:
			return nil
		case stateVisiting:
			pos := slices.Index(stack, t)
			path := append(append([]reflect.Type(nil), stack[pos:]...), t)
			return perr.Containerf("container: dependency cycle: %s", joinTypes(path, " -> "))
		}
		state[t] = stateVisiting
		stack = append(stack, t)

		for _, d := range c.providers[t].deps {
			if _, ok := c.providers[d]; !ok {
				return perr.Containerf("container: %s depends on %s which has no provider", t, d)
			}
			if err := visit(d); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[t] = stateDone
		topo = append(topo, t)
		return nil
	}

	for _, t := range c.declared {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return topo, nil
}

// rankOf maps provider keys to their topological position. A graph that
// does not sort yields an empty map.
func (c *Container) rankOf() map[reflect.Type]int {
	topo, err := c.TopoOrder()
	if err != nil {
		c.log.Warn().Err(err).Msg("graph does not sort; ranking disabled")
		return map[reflect.Type]int{}
	}
	rank := make(map[reflect.Type]int, len(topo))
	for i, t := range topo {
		rank[t] = i
	}
	return rank
}

// typeRank maps dynamic value types to the rank of the provider that made them
func (c *Container) typeRank() map[reflect.Type]int {
	rank := c.rankOf()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[reflect.Type]int, len(c.origin))
	for dyn, key := range c.origin {
		if r, ok := rank[key]; ok {
			out[dyn] = r
		}
	}
	return out
}

func sortByRank(ts []reflect.Type, rank map[reflect.Type]int) []reflect.Type {
	out := slices.Clone(ts)
	slices.SortStableFunc(out, func(a, b reflect.Type) int {
		return rankOr(rank, a) - rankOr(rank, b)
	})
	return out
}

func rankOr(rank map[reflect.Type]int, t reflect.Type) int {
	if r, ok := rank[t]; ok {
		return r
	}
	return math.MaxInt32
}

// Graph returns a snapshot for inspection or export
func (c *Container) Graph() (Graph, error) {
	topo, err := c.TopoOrder()
	if err != nil {
		return Graph{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	g := Graph{
		Nodes:     make([]Node, 0, len(c.declared)),
		TopoOrder: make([]string, len(topo)),
	}
	for _, t := range c.declared {
		p := c.providers[t]
		_, built := c.instances[t]
		g.Nodes = append(g.Nodes, Node{
			Type:     t.String(),
			Lifetime: p.lifetime.String(),
			Seeded:   p.seeded,
			Built:    built,
		})
		for _, d := range p.deps {
			g.Edges = append(g.Edges, Edge{From: t.String(), To: d.String()})
		}
	}
	for i, t := range topo {
		g.TopoOrder[i] = t.String()
	}
	return g, nil
}

// DOT exports Graphviz text
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph container {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.Type] = alias
		label := escapeQuotes(n.Type) + "\\n(" + n.Lifetime + ")"
		style := ""
		if n.Built {
			style = ", style=bold"
		}
		fmt.Fprintf(&b, "  %s [label=\"%s\"%s];\n", alias, label, style)
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s;\n", from, to)
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid flowchart text
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.Type] = alias
		fmt.Fprintf(&b, "    %s[\"%s<br/>(%s)\"]\n", alias, escapeQuotes(n.Type), n.Lifetime)
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		fmt.Fprintf(&b, "    %s --> %s\n", from, to)
	}
	return b.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// checkAcyclic runs Kahn's algorithm over the beaker graph and reports the
// beakers stuck in a cycle, if any.
func (p *Pipeline) checkAcyclic() error {
	if _, err := p.toposort(); err != nil {
		return err
	}
	return nil
}

// toposort returns beaker names in dependency order. Beakers with no
// incoming edges come first; ties break by registration order.
func (p *Pipeline) toposort() ([]string, error) {
	inDegree := map[string]int{}
	for _, name := range p.beakerOrder {
		inDegree[name] = 0
	}
	for _, edges := range p.edges {
		for _, edge := range edges {
			for _, dest := range edge.Destinations() {
				inDegree[dest]++
			}
			for _, route := range edge.ErrorRoutes {
				inDegree[route.To]++
			}
		}
	}

	var queue []string
	for _, name := range p.beakerOrder {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, edge := range p.edges[name] {
			dests := append(edge.Destinations(), errorDests(edge)...)
			for _, dest := range dests {
				inDegree[dest]--
				if inDegree[dest] == 0 {
					queue = append(queue, dest)
				}
			}
		}
	}

	if len(order) != len(p.beakerOrder) {
		var stuck []string
		for _, name := range p.beakerOrder {
			if inDegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, fmt.Errorf("%w: cycle involving %s", ErrInvalidGraph, strings.Join(stuck, ", "))
	}
	return order, nil
}

func errorDests(e *Edge) []string {
	dests := make([]string, 0, len(e.ErrorRoutes))
	for _, route := range e.ErrorRoutes {
		dests = append(dests, route.To)
	}
	return dests
}

// NodeData is one beaker's row in the show table.
type NodeData struct {
	Name      string
	Temp      bool
	Len       int
	Rank      int
	Processed int
	Edges     []*Edge
}

// GraphData collects per-beaker state for display, ordered by graph rank
// then name.
func (p *Pipeline) GraphData() ([]NodeData, error) {
	order, err := p.toposort()
	if err != nil {
		return nil, err
	}

	ranks := map[string]int{}
	nodes := make([]NodeData, 0, len(order))
	for _, name := range order {
		b := p.beakers[name]
		n, err := b.Len()
		if err != nil {
			return nil, err
		}

		rank := 0
		for from, edges := range p.edges {
			for _, edge := range edges {
				for _, dest := range append(edge.Destinations(), errorDests(edge)...) {
					if dest == name && ranks[from] > rank {
						rank = ranks[from]
					}
				}
			}
		}
		ranks[name] = rank + 1

		processed, err := p.processedCount(name)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, NodeData{
			Name:      name,
			Temp:      isTemp(b),
			Len:       n,
			Rank:      ranks[name],
			Processed: processed,
			Edges:     p.edges[name],
		})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Rank != nodes[j].Rank {
			return nodes[i].Rank < nodes[j].Rank
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}

// processedCount counts this beaker's ids that already appear in a
// destination of one of its out-edges.
func (p *Pipeline) processedCount(name string) (int, error) {
	edges := p.edges[name]
	if len(edges) == 0 {
		return 0, nil
	}
	downstream := map[string]struct{}{}
	for _, edge := range edges {
		for _, dest := range append(edge.Destinations(), errorDests(edge)...) {
			ids, err := p.beakers[dest].IDSet()
			if err != nil {
				return 0, err
			}
			for id := range ids {
				downstream[id] = struct{}{}
			}
		}
	}
	ours, err := p.beakers[name].IDSet()
	if err != nil {
		return 0, err
	}
	count := 0
	for id := range ours {
		if _, ok := downstream[id]; ok {
			count++
		}
	}
	return count, nil
}

// RenderGraph renders the pipeline graph as "text", "dot", or "mermaid".
func (p *Pipeline) RenderGraph(format string) (string, error) {
	order, err := p.toposort()
	if err != nil {
		return "", err
	}
	switch format {
	case "text":
		return p.renderText(order), nil
	case "dot":
		return p.renderDot(order), nil
	case "mermaid":
		return p.renderMermaid(order), nil
	}
	return "", fmt.Errorf("unknown graph format %q", format)
}

func (p *Pipeline) renderText(order []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pipeline %s\n", p.name)
	for _, name := range order {
		fmt.Fprintf(&sb, "  %s\n", name)
		for _, edge := range p.edges[name] {
			if edge.Kind == KindSplitter {
				fmt.Fprintf(&sb, "    %s:\n", edge.Name)
				for _, key := range sortedKeys(edge.Routes) {
					fmt.Fprintf(&sb, "      %s -> %s\n", key, edge.Routes[key].To)
				}
				continue
			}
			fmt.Fprintf(&sb, "    %s -> %s\n", edge.Name, edge.To)
			for _, route := range edge.ErrorRoutes {
				fmt.Fprintf(&sb, "      errors -> %s\n", route.To)
			}
		}
	}
	return sb.String()
}

func (p *Pipeline) renderDot(order []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", p.name)
	sb.WriteString("  rankdir=LR;\n")
	for _, name := range order {
		shape := "box"
		if isTemp(p.beakers[name]) {
			shape = "ellipse"
		}
		fmt.Fprintf(&sb, "  %q [shape=%s];\n", name, shape)
	}
	for _, name := range order {
		for _, edge := range p.edges[name] {
			if edge.Kind == KindSplitter {
				for _, key := range sortedKeys(edge.Routes) {
					fmt.Fprintf(&sb, "  %q -> %q [label=%q];\n", name, edge.Routes[key].To, edge.Name+":"+key)
				}
				continue
			}
			fmt.Fprintf(&sb, "  %q -> %q [label=%q];\n", name, edge.To, edge.Name)
			for _, route := range edge.ErrorRoutes {
				fmt.Fprintf(&sb, "  %q -> %q [label=%q, style=dashed];\n", name, route.To, "error")
			}
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (p *Pipeline) renderMermaid(order []string) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	for _, name := range order {
		for _, edge := range p.edges[name] {
			if edge.Kind == KindSplitter {
				for _, key := range sortedKeys(edge.Routes) {
					fmt.Fprintf(&sb, "    %s -->|%s:%s| %s\n", name, edge.Name, key, edge.Routes[key].To)
				}
				continue
			}
			fmt.Fprintf(&sb, "    %s -->|%s| %s\n", name, edge.Name, edge.To)
			for _, route := range edge.ErrorRoutes {
				fmt.Fprintf(&sb, "    %s -.->|error| %s\n", name, route.To)
			}
		}
	}
	return sb.String()
}

func sortedKeys(m map[string]SplitRoute) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package pipeline

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runWaterfall processes beakers one at a time in topological order, pushing
// each beaker's pending items through its out-edges with a bounded worker
// pool before moving on.
func (p *Pipeline) runWaterfall(ctx context.Context, only []string, report *RunReport) error {
	order, err := p.toposort()
	if err != nil {
		return err
	}
	for _, node := range order {
		if len(only) > 0 && !slices.Contains(only, node) {
			p.log.Debug("skipping beaker", "beaker", node)
			continue
		}
		for _, edge := range p.edges[node] {
			if err := p.runEdgeWaterfall(ctx, node, edge, report); err != nil {
				return err
			}
		}
	}
	return nil
}

type pendingItem struct {
	id   string
	item any
}

func (p *Pipeline) runEdgeWaterfall(ctx context.Context, node string, edge *Edge, report *RunReport) error {
	from := p.beakers[node]
	already, err := p.processedIDs(edge)
	if err != nil {
		return err
	}

	var pending []pendingItem
	err = from.Items(func(id string, item any) error {
		if _, done := already[id]; !done {
			pending = append(pending, pendingItem{id: id, item: item})
		}
		return nil
	})
	if err != nil {
		return err
	}

	fromLen, err := from.Len()
	if err != nil {
		return err
	}
	alreadyCount := fromLen - len(pending)
	p.log.Info("processing edge",
		"from", node, "edge", edge.Name,
		"to_process", len(pending), "already_processed", alreadyCount)

	var mu sync.Mutex
	if report.Nodes[node] == nil {
		report.Nodes[node] = map[string]int{}
	}
	report.Nodes[node][AlreadyProcessed] += alreadyCount

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.numWorkers)
	for _, pi := range pending {
		pi := pi
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dest, _, err := p.processItem(gctx, edge, pi.id, pi.item)
			if err != nil {
				return err
			}
			if dest != "" {
				mu.Lock()
				report.Nodes[node][dest]++
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

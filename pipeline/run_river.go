package pipeline

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runRiver takes each item in the start beaker and flows its record all the
// way downstream, fanning out across out-edges concurrently. The start
// beaker is only[0] when given, otherwise the first beaker in topological
// order.
func (p *Pipeline) runRiver(ctx context.Context, only []string, report *RunReport) error {
	order, err := p.toposort()
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return nil
	}
	start := order[0]
	if len(only) > 0 {
		start = only[0]
	}

	var ids []string
	err = p.beakers[start].Items(func(id string, _ any) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := p.FullRecord(id)
		if err != nil {
			return err
		}
		p.log.Debug("river record", "id", id)
		pairs, err := p.runOneItem(ctx, rec, start, only)
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			report.count(pair.from, pair.to)
		}
	}
	return nil
}

type fromTo struct {
	from, to string
}

// runOneItem pushes a record through every out-edge of cur and recurses into
// the beakers it lands in. Branches run concurrently; the returned pairs
// feed the run report.
func (p *Pipeline) runOneItem(ctx context.Context, rec *Record, cur string, only []string) ([]fromTo, error) {
	if len(only) > 0 && !slices.Contains(only, cur) {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		pairs []fromTo
	)
	g, gctx := errgroup.WithContext(ctx)

	for _, edge := range p.edges[cur] {
		already, err := p.processedIDs(edge)
		if err != nil {
			return nil, err
		}
		if _, done := already[rec.ID()]; done {
			mu.Lock()
			pairs = append(pairs, fromTo{cur, AlreadyProcessed})
			mu.Unlock()
			continue
		}

		item, ok := rec.Get(cur)
		if !ok {
			continue
		}
		dest, result, err := p.processItem(gctx, edge, rec.ID(), item)
		if err != nil {
			return nil, err
		}
		if dest == "" {
			continue
		}
		mu.Lock()
		pairs = append(pairs, fromTo{cur, dest})
		mu.Unlock()
		rec.SetIfAbsent(dest, result)

		g.Go(func() error {
			sub, err := p.runOneItem(gctx, rec, dest, only)
			if err != nil {
				return err
			}
			mu.Lock()
			pairs = append(pairs, sub...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}

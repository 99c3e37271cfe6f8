package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesturk/databeakers/beaker"
)

// Run executes the pipeline. only restricts processing to the named beakers'
// out-edges; empty means the whole graph.
func (p *Pipeline) Run(ctx context.Context, mode RunMode, only []string) (*RunReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, name := range only {
		if _, ok := p.beakers[name]; !ok {
			return nil, fmt.Errorf("%w: unknown beaker %q", ErrInvalidGraph, name)
		}
	}

	report := &RunReport{
		StartTime:   time.Now(),
		Mode:        mode,
		OnlyBeakers: only,
		Nodes:       map[string]map[string]int{},
	}
	p.log.Info("run started", "pipeline", p.name, "mode", mode, "only", only)

	var err error
	switch mode {
	case Waterfall:
		err = p.runWaterfall(ctx, only, report)
	case River:
		err = p.runRiver(ctx, only, report)
	default:
		err = fmt.Errorf("unknown run mode %q", mode)
	}
	report.EndTime = time.Now()
	if err != nil {
		return nil, err
	}

	p.rec.ObserveRunDuration(report.Duration())
	p.updateSizeGauges()
	p.log.Info("run finished", "pipeline", p.name, "duration", report.Duration())
	return report, nil
}

func (p *Pipeline) updateSizeGauges() {
	if p.rec == nil {
		return
	}
	for _, name := range p.beakerOrder {
		if n, err := p.beakers[name].Len(); err == nil {
			p.rec.SetBeakerSize(name, n)
		}
	}
}

// processedIDs returns the ids an edge has already handled: everything
// present in its destinations, error beakers included.
func (p *Pipeline) processedIDs(edge *Edge) (map[string]struct{}, error) {
	processed := map[string]struct{}{}
	for _, dest := range append(edge.Destinations(), errorDests(edge)...) {
		ids, err := p.beakers[dest].IDSet()
		if err != nil {
			return nil, err
		}
		for id := range ids {
			processed[id] = struct{}{}
		}
	}
	return processed, nil
}

// deliver adds a result to a destination beaker. Concurrent branches of a
// diamond graph can both find an id unprocessed before either has written
// it; the loser's duplicate insert is reported as an empty destination, the
// same as an item that was already processed.
func (p *Pipeline) deliver(edge *Edge, dest, id string, result any) (string, error) {
	if _, err := p.beakers[dest].AddItem(result, id); err != nil {
		if errors.Is(err, beaker.ErrDuplicateID) {
			p.log.Debug("item already delivered", "edge", edge.Name, "id", id, "beaker", dest)
			return "", nil
		}
		return "", err
	}
	p.rec.CountDispatch(edge.Name, dest)
	return dest, nil
}

// processItem pushes one item through one edge. It returns the destination
// beaker name (empty when the item was filtered out) and the stored result,
// which river mode threads into the item's record.
func (p *Pipeline) processItem(ctx context.Context, edge *Edge, id string, item any) (string, any, error) {
	input := item
	if edge.WholeRecord {
		rec, err := p.FullRecord(id)
		if err != nil {
			return "", nil, err
		}
		input = rec
	}

	switch edge.Kind {
	case KindTransform:
		result, err := edge.Func(ctx, input)
		if err != nil {
			return p.routeError(edge, id, item, err)
		}
		if result == nil {
			return p.filtered(edge, id, item)
		}
		dest, err := p.deliver(edge, edge.To, id, result)
		if err != nil {
			return "", nil, err
		}
		return dest, result, nil

	case KindConditional:
		ok, err := edge.Cond(ctx, input)
		if err != nil {
			return p.routeError(edge, id, item, err)
		}
		if !ok {
			return "", nil, nil
		}
		dest, err := p.deliver(edge, edge.To, id, item)
		if err != nil {
			return "", nil, err
		}
		return dest, item, nil

	case KindSplitter:
		key, err := edge.KeyFunc(ctx, input)
		if err != nil {
			return p.routeError(edge, id, item, err)
		}
		route, ok := edge.Routes[key]
		if key == "" || !ok {
			return p.filtered(edge, id, item)
		}
		result := item
		if route.Func != nil {
			result, err = route.Func(ctx, input)
			if err != nil {
				return p.routeError(edge, id, item, err)
			}
			if result == nil {
				return p.filtered(edge, id, item)
			}
		}
		dest, err := p.deliver(edge, route.To, id, result)
		if err != nil {
			return "", nil, err
		}
		return dest, result, nil
	}
	return "", nil, fmt.Errorf("unknown edge kind %q", edge.Kind)
}

// filtered handles a nil edge result: dropped silently when the edge allows
// filtering, ErrNoEdgeResult otherwise.
func (p *Pipeline) filtered(edge *Edge, id string, item any) (string, any, error) {
	if edge.AllowFilter {
		p.log.Debug("item filtered", "edge", edge.Name, "id", id)
		return "", nil, nil
	}
	return p.routeError(edge, id, item, fmt.Errorf("edge %s: %w", edge.Name, ErrNoEdgeResult))
}

// routeError sends a matched error to its error beaker; unmatched errors
// propagate and abort the run.
func (p *Pipeline) routeError(edge *Edge, id string, item any, err error) (string, any, error) {
	p.rec.CountEdgeError(edge.Name)
	for _, route := range edge.ErrorRoutes {
		if !route.Match(err) {
			continue
		}
		p.log.Info("error routed", "edge", edge.Name, "id", id, "beaker", route.To, "error", err)
		errItem := &ErrorItem{
			Item:      item,
			Error:     err.Error(),
			ErrorType: fmt.Sprintf("%T", err),
		}
		dest, addErr := p.deliver(edge, route.To, id, errItem)
		if addErr != nil {
			return "", nil, addErr
		}
		return dest, errItem, nil
	}
	p.log.Error("unhandled edge error", "edge", edge.Name, "id", id, "error", err)
	return "", nil, fmt.Errorf("edge %s: %w", edge.Name, err)
}

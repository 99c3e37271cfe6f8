// Package pipeline implements a directed acyclic graph of beakers connected
// by transform edges. Items seeded into upstream beakers flow along edges
// until every downstream beaker has seen them.
package pipeline

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/jamesturk/databeakers/beaker"
	"github.com/jamesturk/databeakers/metrics"
)

// Pipeline is a named graph of beakers and edges sharing one SQLite database.
type Pipeline struct {
	name       string
	dbPath     string
	numWorkers int
	log        *slog.Logger
	rec        *metrics.Recorder
	db         *sql.DB

	beakers     map[string]beaker.Beaker
	beakerOrder []string
	edges       map[string][]*Edge
	seeds       map[string]*seedDef
	seedOrder   []string
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithDatabase sets the SQLite database path (":memory:" for ephemeral).
func WithDatabase(path string) Option {
	return func(p *Pipeline) { p.dbPath = path }
}

// WithNumWorkers bounds edge-function concurrency during runs.
func WithNumWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.numWorkers = n
		}
	}
}

// WithLogger sets the pipeline's logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithMetrics attaches a metrics recorder; nil disables recording.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Pipeline) { p.rec = rec }
}

// New opens (or creates) the pipeline database and returns an empty pipeline.
func New(name string, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		name:       name,
		dbPath:     "beakers.db",
		numWorkers: 1,
		log:        slog.Default(),
		beakers:    map[string]beaker.Beaker{},
		edges:      map[string][]*Edge{},
		seeds:      map[string]*seedDef{},
	}
	for _, opt := range opts {
		opt(p)
	}

	db, err := sql.Open("sqlite", p.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", p.dbPath, err)
	}
	// one connection: sqlite allows a single writer, and a pooled
	// ":memory:" database would otherwise differ per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(seedRunsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize seed runs: %w", err)
	}
	p.db = db
	return p, nil
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// Metrics returns the attached metrics recorder, or nil.
func (p *Pipeline) Metrics() *metrics.Recorder { return p.rec }

// SetLogger replaces the pipeline's logger; the CLI calls this after
// configuring logging.
func (p *Pipeline) SetLogger(log *slog.Logger) {
	if log != nil {
		p.log = log
	}
}

// DatabasePath returns the path of the backing SQLite database.
func (p *Pipeline) DatabasePath() string { return p.dbPath }

// Close closes the backing database.
func (p *Pipeline) Close() error { return p.db.Close() }

// AddBeaker registers a SQLite-backed beaker holding items built by factory.
func (p *Pipeline) AddBeaker(name string, factory beaker.Factory) (beaker.Beaker, error) {
	b, err := beaker.NewSQLite(p.db, name, factory)
	if err != nil {
		return nil, err
	}
	return b, p.addBeaker(b)
}

// AddTempBeaker registers an in-memory beaker for transient stages.
func (p *Pipeline) AddTempBeaker(name string, factory beaker.Factory) (beaker.Beaker, error) {
	b := beaker.NewTemp(name, factory)
	return b, p.addBeaker(b)
}

func (p *Pipeline) addBeaker(b beaker.Beaker) error {
	if _, dup := p.beakers[b.Name()]; dup {
		return fmt.Errorf("%w: duplicate beaker %q", ErrInvalidGraph, b.Name())
	}
	p.beakers[b.Name()] = b
	p.beakerOrder = append(p.beakerOrder, b.Name())
	return nil
}

// Beaker returns the named beaker.
func (p *Pipeline) Beaker(name string) (beaker.Beaker, bool) {
	b, ok := p.beakers[name]
	return b, ok
}

// BeakerNames returns beaker names in registration order.
func (p *Pipeline) BeakerNames() []string {
	names := make([]string, len(p.beakerOrder))
	copy(names, p.beakerOrder)
	return names
}

// AddTransform connects two beakers with a transform edge. Both beakers must
// already be registered; error-route targets are created implicitly.
func (p *Pipeline) AddTransform(from, to string, fn EdgeFunc, opts ...EdgeOption) error {
	edge := &Edge{
		Name:        funcName(fn),
		From:        from,
		To:          to,
		Kind:        KindTransform,
		Func:        fn,
		AllowFilter: true,
	}
	for _, opt := range opts {
		opt(edge)
	}
	return p.addEdge(edge)
}

// AddConditional connects two beakers with a conditional edge: the original
// item is forwarded when cond returns true.
func (p *Pipeline) AddConditional(from, to string, cond CondFunc, opts ...EdgeOption) error {
	edge := &Edge{
		Name:        funcName(cond),
		From:        from,
		To:          to,
		Kind:        KindConditional,
		Cond:        cond,
		AllowFilter: true,
	}
	for _, opt := range opts {
		opt(edge)
	}
	return p.addEdge(edge)
}

// AddSplitter routes items from one beaker to several destinations. keyFn
// picks the route; an empty key (or a key with no route) drops the item.
func (p *Pipeline) AddSplitter(from string, keyFn KeyFunc, routes map[string]SplitRoute, opts ...EdgeOption) error {
	edge := &Edge{
		Name:        funcName(keyFn),
		From:        from,
		Kind:        KindSplitter,
		KeyFunc:     keyFn,
		Routes:      routes,
		AllowFilter: true,
	}
	for _, opt := range opts {
		opt(edge)
	}
	return p.addEdge(edge)
}

func (p *Pipeline) addEdge(edge *Edge) error {
	if _, ok := p.beakers[edge.From]; !ok {
		return fmt.Errorf("%w: edge %s from unknown beaker %q", ErrInvalidGraph, edge.Name, edge.From)
	}
	for _, dest := range edge.Destinations() {
		if _, ok := p.beakers[dest]; !ok {
			return fmt.Errorf("%w: edge %s to unknown beaker %q", ErrInvalidGraph, edge.Name, dest)
		}
	}
	for _, route := range edge.ErrorRoutes {
		if _, ok := p.beakers[route.To]; !ok {
			p.log.Warn("implicitly creating error beaker", "beaker", route.To, "edge", edge.Name)
			if _, err := p.AddBeaker(route.To, beaker.For[ErrorItem]()); err != nil {
				return err
			}
		}
	}
	p.edges[edge.From] = append(p.edges[edge.From], edge)
	if err := p.checkAcyclic(); err != nil {
		// roll the edge back so the pipeline stays usable
		out := p.edges[edge.From]
		p.edges[edge.From] = out[:len(out)-1]
		return err
	}
	return nil
}

// Destinations returns every beaker this edge can forward items to,
// not counting error routes. Splitter destinations come back sorted.
func (e *Edge) Destinations() []string {
	if e.Kind == KindSplitter {
		dests := make([]string, 0, len(e.Routes))
		for _, route := range e.Routes {
			dests = append(dests, route.To)
		}
		sort.Strings(dests)
		return dests
	}
	return []string{e.To}
}

// OutEdges returns the edges leaving the named beaker.
func (p *Pipeline) OutEdges(from string) []*Edge {
	return p.edges[from]
}

// Validate checks that every edge endpoint exists and the graph is acyclic.
func (p *Pipeline) Validate() error {
	for from, edges := range p.edges {
		if _, ok := p.beakers[from]; !ok {
			return fmt.Errorf("%w: unknown beaker %q", ErrInvalidGraph, from)
		}
		for _, edge := range edges {
			for _, dest := range edge.Destinations() {
				if _, ok := p.beakers[dest]; !ok {
					return fmt.Errorf("%w: edge %s to unknown beaker %q", ErrInvalidGraph, edge.Name, dest)
				}
			}
			for _, route := range edge.ErrorRoutes {
				if _, ok := p.beakers[route.To]; !ok {
					return fmt.Errorf("%w: edge %s routes errors to unknown beaker %q", ErrInvalidGraph, edge.Name, route.To)
				}
			}
		}
	}
	return p.checkAcyclic()
}

// Reset clears every beaker and forgets all seed runs, returning a
// description of what was cleared.
func (p *Pipeline) Reset() ([]string, error) {
	var cleared []string
	res, err := p.db.Exec("DELETE FROM _seed_runs")
	if err != nil {
		return nil, fmt.Errorf("clear seed runs: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		cleared = append(cleared, fmt.Sprintf("%d seed runs", n))
	}
	for _, name := range p.beakerOrder {
		b := p.beakers[name]
		n, err := b.Len()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		if err := b.Reset(); err != nil {
			return nil, err
		}
		cleared = append(cleared, fmt.Sprintf("%s (%d)", name, n))
	}
	return cleared, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, beaker.ErrItemNotFound)
}

func isTemp(b beaker.Beaker) bool {
	_, ok := b.(*beaker.Temp)
	return ok
}

// FullRecord gathers the item with the given id from every beaker that
// holds it.
func (p *Pipeline) FullRecord(id string) (*Record, error) {
	rec := NewRecord(id)
	for _, name := range p.beakerOrder {
		item, err := p.beakers[name].GetItem(id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if err := rec.Set(name, item); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

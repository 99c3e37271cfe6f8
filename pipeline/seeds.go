package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesturk/databeakers/beaker"
)

const seedRunsSchema = `CREATE TABLE IF NOT EXISTS _seed_runs (
	id TEXT PRIMARY KEY,
	seed_name TEXT NOT NULL,
	beaker_name TEXT NOT NULL,
	num_items INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL
)`

// SeedFunc produces the initial items for a beaker. Implementations call
// emit once per item and stop when it returns an error.
type SeedFunc func(ctx context.Context, emit func(item any) error) error

// FromSlice adapts a fixed set of items to a SeedFunc.
func FromSlice[T any](items []T) SeedFunc {
	return func(ctx context.Context, emit func(any) error) error {
		for i := range items {
			if err := emit(&items[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

type seedDef struct {
	name   string
	beaker string
	fn     SeedFunc
}

// SeedRun is one recorded execution of a seed.
type SeedRun struct {
	ID        string
	Seed      string
	Beaker    string
	NumItems  int
	StartTime time.Time
	EndTime   time.Time
}

func (r SeedRun) String() string {
	return fmt.Sprintf("%s: %d items into %s in %s",
		r.Seed, r.NumItems, r.Beaker, r.EndTime.Sub(r.StartTime).Round(time.Millisecond))
}

// SeedStatus pairs a registered seed with its run history.
type SeedStatus struct {
	Name   string
	Beaker string
	Runs   []SeedRun
}

// AddSeed registers a named seed that fills the given beaker.
func (p *Pipeline) AddSeed(name, beakerName string, fn SeedFunc) error {
	if _, ok := p.beakers[beakerName]; !ok {
		return fmt.Errorf("%w: seed %s targets unknown beaker %q", ErrInvalidGraph, name, beakerName)
	}
	if _, dup := p.seeds[name]; dup {
		return fmt.Errorf("%w: duplicate seed %q", ErrInvalidGraph, name)
	}
	p.seeds[name] = &seedDef{name: name, beaker: beakerName, fn: fn}
	p.seedOrder = append(p.seedOrder, name)
	return nil
}

// Seeds lists registered seeds with their run history, in registration order.
func (p *Pipeline) Seeds() ([]SeedStatus, error) {
	statuses := make([]SeedStatus, 0, len(p.seedOrder))
	for _, name := range p.seedOrder {
		def := p.seeds[name]
		runs, err := p.seedRuns(name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, SeedStatus{Name: name, Beaker: def.beaker, Runs: runs})
	}
	return statuses, nil
}

func (p *Pipeline) seedRuns(name string) ([]SeedRun, error) {
	rows, err := p.db.Query(
		"SELECT id, seed_name, beaker_name, num_items, start_time, end_time FROM _seed_runs WHERE seed_name = ? ORDER BY start_time",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("query seed runs: %w", err)
	}
	defer rows.Close()

	var runs []SeedRun
	for rows.Next() {
		var run SeedRun
		var start, end string
		if err := rows.Scan(&run.ID, &run.Seed, &run.Beaker, &run.NumItems, &start, &end); err != nil {
			return nil, fmt.Errorf("scan seed run: %w", err)
		}
		run.StartTime, _ = time.Parse(time.RFC3339Nano, start)
		run.EndTime, _ = time.Parse(time.RFC3339Nano, end)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

var errSeedFull = errors.New("seed item limit reached")

// RunSeed executes a registered seed. maxItems of zero means unlimited;
// reset forgets previous runs of this seed first. A seed that already ran
// returns ErrSeedAlreadyRun.
//
// The emitted items and the run record commit in one transaction, so a seed
// function that fails mid-stream leaves nothing behind. Temp beakers cannot
// be rolled back.
func (p *Pipeline) RunSeed(ctx context.Context, name string, maxItems int, reset bool) (*SeedRun, error) {
	def, ok := p.seeds[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrSeedNotFound)
	}

	if reset {
		if _, err := p.db.Exec("DELETE FROM _seed_runs WHERE seed_name = ?", name); err != nil {
			return nil, fmt.Errorf("reset seed %s: %w", name, err)
		}
	}
	prior, err := p.seedRuns(name)
	if err != nil {
		return nil, err
	}
	if len(prior) > 0 {
		return nil, fmt.Errorf("%q at %s: %w",
			name, prior[len(prior)-1].EndTime.Format(time.RFC3339), ErrSeedAlreadyRun)
	}

	b := p.beakers[def.beaker]
	run := &SeedRun{
		ID:        uuid.NewString(),
		Seed:      name,
		Beaker:    def.beaker,
		StartTime: time.Now(),
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	addItem := func(item any) error {
		if sb, ok := b.(*beaker.SQLite); ok {
			_, err := sb.AddItemIn(tx, item, "")
			return err
		}
		_, err := b.AddItem(item, "")
		return err
	}
	emit := func(item any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addItem(item); err != nil {
			return err
		}
		run.NumItems++
		if maxItems > 0 && run.NumItems >= maxItems {
			return errSeedFull
		}
		return nil
	}
	if err := def.fn(ctx, emit); err != nil && !errors.Is(err, errSeedFull) {
		return nil, fmt.Errorf("seed %s: %w", name, err)
	}

	run.EndTime = time.Now()
	_, err = tx.Exec(
		"INSERT INTO _seed_runs (id, seed_name, beaker_name, num_items, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Seed, run.Beaker, run.NumItems,
		run.StartTime.Format(time.RFC3339Nano), run.EndTime.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("record seed run %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed %s: %w", name, err)
	}

	p.rec.CountSeedItems(name, run.NumItems)
	p.log.Info("seed complete", "seed", name, "beaker", def.beaker, "items", run.NumItems)
	return run, nil
}

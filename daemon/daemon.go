// Package daemon runs a pipeline on a fixed interval and serves its metrics
// and status over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesturk/databeakers/metrics"
	"github.com/jamesturk/databeakers/pipeline"
)

// Daemon schedules pipeline runs and exposes /metrics and /status.
type Daemon struct {
	pipe     *pipeline.Pipeline
	rec      *metrics.Recorder
	log      *slog.Logger
	interval time.Duration
	addr     string
	mode     pipeline.RunMode
	only     []string

	mu         sync.RWMutex
	lastReport *pipeline.RunReport
	lastErr    string
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithInterval sets how often the pipeline runs (default one minute).
func WithInterval(d time.Duration) Option {
	return func(dm *Daemon) {
		if d > 0 {
			dm.interval = d
		}
	}
}

// WithAddr sets the HTTP listen address (default :9090).
func WithAddr(addr string) Option {
	return func(dm *Daemon) { dm.addr = addr }
}

// WithRunMode sets the run mode used for scheduled runs.
func WithRunMode(mode pipeline.RunMode) Option {
	return func(dm *Daemon) { dm.mode = mode }
}

// WithOnly restricts scheduled runs to the named beakers.
func WithOnly(only []string) Option {
	return func(dm *Daemon) { dm.only = only }
}

// WithLogger sets the daemon's logger.
func WithLogger(log *slog.Logger) Option {
	return func(dm *Daemon) { dm.log = log }
}

// New builds a daemon around the pipeline. The recorder backs /metrics and
// must be the one the pipeline records to.
func New(p *pipeline.Pipeline, rec *metrics.Recorder, opts ...Option) *Daemon {
	d := &Daemon{
		pipe:     p,
		rec:      rec,
		log:      slog.Default(),
		interval: time.Minute,
		addr:     ":9090",
		mode:     pipeline.Waterfall,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run schedules pipeline runs and serves HTTP until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(d.runOnce, ctx),
		gocron.WithName(fmt.Sprintf("%s-run", d.pipe.Name())),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule run: %w", err)
	}

	mux := http.NewServeMux()
	if reg := d.rec.Registry(); reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/status", d.handleStatus)
	srv := &http.Server{Addr: d.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("daemon listening", "addr", d.addr, "interval", d.interval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	sched.Start()

	select {
	case err := <-errCh:
		_ = sched.Shutdown()
		return err
	case <-ctx.Done():
	}

	d.log.Info("daemon stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.log.Warn("http shutdown", "error", err)
	}
	return sched.Shutdown()
}

func (d *Daemon) runOnce(ctx context.Context) {
	report, err := d.pipe.Run(ctx, d.mode, d.only)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.lastErr = err.Error()
		d.log.Error("scheduled run failed", "error", err)
		return
	}
	d.lastErr = ""
	d.lastReport = report
}

type statusResponse struct {
	Pipeline   string              `json:"pipeline"`
	Beakers    map[string]int      `json:"beakers"`
	LastReport *pipeline.RunReport `json:"last_report,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

func (d *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := statusResponse{
		Pipeline: d.pipe.Name(),
		Beakers:  map[string]int{},
	}
	for _, name := range d.pipe.BeakerNames() {
		b, _ := d.pipe.Beaker(name)
		n, err := b.Len()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		status.Beakers[name] = n
	}
	d.mu.RLock()
	status.LastReport = d.lastReport
	status.LastError = d.lastErr
	d.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		d.log.Warn("status encode", "error", err)
	}
}

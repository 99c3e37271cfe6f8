package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamesturk/databeakers/daemon"
	"github.com/jamesturk/databeakers/pipeline"
)

// DaemonCmd runs the pipeline on an interval and serves /metrics and
// /status until interrupted.
type DaemonCmd struct {
	Interval time.Duration `short:"i" default:"1m" help:"Time between runs"`
	Addr     string        `default:":9090" help:"HTTP listen address"`
	Mode     string        `help:"Run mode" enum:"waterfall,river" default:"waterfall"`
	Only     []string      `help:"Restrict runs to these beakers' out-edges"`
}

func (cmd *DaemonCmd) Run(g *Global) error {
	mode, _ := pipeline.ParseRunMode(cmd.Mode)
	d := daemon.New(g.Pipeline, g.Pipeline.Metrics(),
		daemon.WithInterval(cmd.Interval),
		daemon.WithAddr(cmd.Addr),
		daemon.WithRunMode(mode),
		daemon.WithOnly(cmd.Only),
		daemon.WithLogger(g.Log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

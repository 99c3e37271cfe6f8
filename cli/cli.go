// Package cli provides the embeddable command-line interface for pipelines.
// A user binary constructs its pipeline and hands it off:
//
//	func main() {
//		p := buildPipeline()
//		cli.Main(p)
//	}
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/jamesturk/databeakers/config"
	"github.com/jamesturk/databeakers/pipeline"
)

// Global carries shared state into subcommands.
type Global struct {
	Pipeline *pipeline.Pipeline
	Config   *config.Config
	Log      *slog.Logger
	Stdout   io.Writer
	Stdin    io.Reader
}

// CLI is the root command tree.
type CLI struct {
	Config   string `short:"c" help:"Configuration file path" default:"beakers.yaml"`
	LogLevel string `help:"Override configured log level"`

	Show   ShowCmd   `cmd:"" help:"Show the current state of the pipeline"`
	Graph  GraphCmd  `cmd:"" help:"Render the pipeline graph"`
	Seeds  SeedsCmd  `cmd:"" help:"List the available seeds and their status"`
	Seed   SeedCmd   `cmd:"" help:"Run a seed"`
	Run    RunCmd    `cmd:"" help:"Execute the pipeline, or a part of it"`
	Clear  ClearCmd  `cmd:"" help:"Clear a beaker's data"`
	Peek   PeekCmd   `cmd:"" help:"Peek at a beaker or record"`
	Export ExportCmd `cmd:"" help:"Export data from beakers"`
	Daemon DaemonCmd `cmd:"" help:"Run the pipeline on an interval, serving metrics"`
}

// Main parses os.Args and runs the selected command against the pipeline.
// It exits the process; use Run for an embeddable variant.
func Main(p *pipeline.Pipeline) {
	os.Exit(Run(p, os.Args[1:], os.Stdout, os.Stdin))
}

// Run executes the CLI against the pipeline and returns an exit code.
func Run(p *pipeline.Pipeline, args []string, stdout io.Writer, stdin io.Reader) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name(p.Name()),
		kong.Description("databeakers pipeline: "+p.Name()),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.SetDefault(log)
	p.SetLogger(log)

	global := &Global{Pipeline: p, Config: cfg, Log: log, Stdout: stdout, Stdin: stdin}
	if err := kctx.Run(global); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

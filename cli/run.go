package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jamesturk/databeakers/pipeline"
)

// RunCmd executes the pipeline and prints a run report.
type RunCmd struct {
	Only []string `help:"Restrict the run to these beakers' out-edges"`
	Mode string   `help:"Run mode" enum:"waterfall,river" default:"waterfall"`
}

func (cmd *RunCmd) Run(g *Global) error {
	mode, _ := pipeline.ParseRunMode(cmd.Mode)

	hasData := false
	for _, name := range g.Pipeline.BeakerNames() {
		b, _ := g.Pipeline.Beaker(name)
		n, err := b.Len()
		if err != nil {
			return err
		}
		if n > 0 {
			hasData = true
			break
		}
	}
	if !hasData {
		return fmt.Errorf("no data! run seed(s) first")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := g.Pipeline.Run(ctx, mode, cmd.Only)
	if err != nil {
		return err
	}
	return printReport(g, report)
}

func printReport(g *Global, report *pipeline.RunReport) error {
	w := tabwriter.NewWriter(g.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Start Time\t%s\n", report.StartTime.Format("15:04:05 Jan 02"))
	fmt.Fprintf(w, "End Time\t%s\n", report.EndTime.Format("15:04:05 Jan 02"))
	fmt.Fprintf(w, "Duration\t%s\n", report.Duration().Round(time.Millisecond))
	only := "(all)"
	if len(report.OnlyBeakers) > 0 {
		only = fmt.Sprint(report.OnlyBeakers)
	}
	fmt.Fprintf(w, "Beakers\t%s\n", only)
	fmt.Fprintf(w, "Run Mode\t%s\n", report.Mode)
	fmt.Fprintln(w)

	froms := make([]string, 0, len(report.Nodes))
	for from := range report.Nodes {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	fmt.Fprintln(w, "FROM BEAKER\tDESTINATION\tITEMS")
	for _, from := range froms {
		dests := report.Nodes[from]
		names := make([]string, 0, len(dests))
		for dest := range dests {
			names = append(names, dest)
		}
		sort.Strings(names)
		for _, dest := range names {
			fmt.Fprintf(w, "%s\t%s\t%d\n", from, dest, dests[dest])
		}
	}
	return w.Flush()
}

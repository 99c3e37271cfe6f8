package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesturk/databeakers/pipeline"
)

// ShowCmd prints a table of beakers: item counts, how many items have been
// processed downstream, and the edges leaving each beaker.
type ShowCmd struct {
	Watch bool `short:"w" help:"Redraw when the pipeline database changes"`
	Empty bool `help:"Include empty beakers"`
}

func (cmd *ShowCmd) Run(g *Global) error {
	if !cmd.Watch {
		return cmd.render(g)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(g.Pipeline.DatabasePath()); err != nil {
		return fmt.Errorf("watch %s: %w", g.Pipeline.DatabasePath(), err)
	}

	if err := cmd.render(g); err != nil {
		return err
	}
	// coalesce bursts of sqlite writes into one redraw
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events:
			if event.Has(fsnotify.Write) {
				pending = time.After(500 * time.Millisecond)
			}
		case err := <-watcher.Errors:
			g.Log.Warn("watch error", "error", err)
		case <-pending:
			pending = nil
			if err := cmd.render(g); err != nil {
				return err
			}
		}
	}
}

func (cmd *ShowCmd) render(g *Global) error {
	nodes, err := g.Pipeline.GraphData()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(g.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tITEMS\tPROCESSED\tEDGES")
	hiddenEmpty := 0
	for _, node := range nodes {
		if node.Len == 0 && !cmd.Empty {
			hiddenEmpty++
			continue
		}
		name := node.Name
		if node.Temp {
			name += " (temp)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			name, node.Len, processedString(node), edgeString(node.Edges))
	}
	if hiddenEmpty > 0 {
		fmt.Fprintf(w, "\t\t\t(%d empty beakers hidden)\n", hiddenEmpty)
	}
	return w.Flush()
}

func processedString(node pipeline.NodeData) string {
	if node.Temp || len(node.Edges) == 0 {
		return "-"
	}
	if node.Len == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%3.0f%%)", node.Processed, float64(node.Processed)/float64(node.Len)*100)
}

func edgeString(edges []*pipeline.Edge) string {
	var parts []string
	for _, edge := range edges {
		if edge.Kind == pipeline.KindSplitter {
			dests := strings.Join(edge.Destinations(), ", ")
			parts = append(parts, fmt.Sprintf("%s => %s", edge.Name, dests))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s -> %s", edge.Name, edge.To))
		for _, route := range edge.ErrorRoutes {
			parts = append(parts, fmt.Sprintf("  errors -> %s", route.To))
		}
	}
	return strings.Join(parts, "; ")
}

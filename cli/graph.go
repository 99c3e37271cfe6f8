package cli

import (
	"fmt"
	"os"
)

// GraphCmd renders the pipeline graph to stdout or a file.
type GraphCmd struct {
	Format string `short:"f" help:"Output format" enum:"text,dot,mermaid" default:"dot"`
	Output string `short:"o" help:"Output file (stdout if not given)"`
}

func (cmd *GraphCmd) Run(g *Global) error {
	out, err := g.Pipeline.RenderGraph(cmd.Format)
	if err != nil {
		return err
	}
	if cmd.Output == "" {
		fmt.Fprint(g.Stdout, out)
		return nil
	}
	if err := os.WriteFile(cmd.Output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Output, err)
	}
	g.Log.Info("graph written", "file", cmd.Output, "format", cmd.Format)
	return nil
}

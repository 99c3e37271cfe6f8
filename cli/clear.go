package cli

import (
	"bufio"
	"fmt"
	"strings"
)

// ClearCmd empties one beaker (with confirmation) or, with --all, resets
// the whole pipeline including seed run history.
type ClearCmd struct {
	Beaker string `arg:"" optional:"" help:"Beaker to clear"`
	All    bool   `short:"a" help:"Reset every beaker and all seed runs"`
}

func (cmd *ClearCmd) Run(g *Global) error {
	if cmd.All {
		cleared, err := g.Pipeline.Reset()
		if err != nil {
			return err
		}
		if len(cleared) == 0 {
			return fmt.Errorf("nothing to reset")
		}
		for _, item := range cleared {
			fmt.Fprintf(g.Stdout, "reset %s\n", item)
		}
		return nil
	}

	if cmd.Beaker == "" {
		return fmt.Errorf("must specify a beaker name")
	}
	b, ok := g.Pipeline.Beaker(cmd.Beaker)
	if !ok {
		return fmt.Errorf("beaker %q not found", cmd.Beaker)
	}
	n, err := b.Len()
	if err != nil {
		return err
	}

	fmt.Fprintf(g.Stdout, "Clear %s (%d)? [y/N] ", cmd.Beaker, n)
	answer, _ := bufio.NewReader(g.Stdin).ReadString('\n')
	if strings.TrimSpace(strings.ToLower(answer)) != "y" {
		fmt.Fprintln(g.Stdout, "aborted")
		return nil
	}
	if err := b.Reset(); err != nil {
		return err
	}
	fmt.Fprintf(g.Stdout, "cleared %s\n", cmd.Beaker)
	return nil
}

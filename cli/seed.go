package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// SeedsCmd lists registered seeds grouped by beaker, with run history.
type SeedsCmd struct{}

func (cmd *SeedsCmd) Run(g *Global) error {
	statuses, err := g.Pipeline.Seeds()
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(g.Stdout, "no seeds registered")
		return nil
	}

	byBeaker := map[string][]int{}
	var beakers []string
	for i, status := range statuses {
		if _, seen := byBeaker[status.Beaker]; !seen {
			beakers = append(beakers, status.Beaker)
		}
		byBeaker[status.Beaker] = append(byBeaker[status.Beaker], i)
	}
	for _, beakerName := range beakers {
		fmt.Fprintln(g.Stdout, beakerName)
		for _, i := range byBeaker[beakerName] {
			status := statuses[i]
			fmt.Fprintf(g.Stdout, "  %s\n", status.Name)
			for _, run := range status.Runs {
				fmt.Fprintf(g.Stdout, "    %s\n", run)
			}
		}
	}
	return nil
}

// SeedCmd runs one seed.
type SeedCmd struct {
	Name     string `arg:"" help:"Seed to run"`
	NumItems int    `short:"n" name:"num-items" help:"Stop after this many items"`
	Reset    bool   `short:"r" help:"Forget previous runs of this seed first"`
}

func (cmd *SeedCmd) Run(g *Global) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run, err := g.Pipeline.RunSeed(ctx, cmd.Name, cmd.NumItems, cmd.Reset)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.Stdout, "ran seed %s\n", run)
	return nil
}

package cli

import (
	"fmt"
	"regexp"
	"strings"
	"text/tabwriter"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-([0-9a-f]{4}-){3}[0-9a-f]{12}$`)

// PeekCmd displays a beaker's first items, or every beaker's view of a
// single item when given a UUID.
type PeekCmd struct {
	Thing    string `arg:"" help:"Beaker name or item UUID"`
	Offset   int    `short:"o" help:"Items to skip"`
	MaxItems int    `short:"n" name:"max-items" default:"10" help:"Items to display"`
}

func (cmd *PeekCmd) Run(g *Global) error {
	if _, ok := g.Pipeline.Beaker(cmd.Thing); ok {
		return cmd.peekBeaker(g)
	}
	if uuidRe.MatchString(cmd.Thing) {
		return cmd.peekRecord(g)
	}
	return fmt.Errorf("unknown entity: %s", cmd.Thing)
}

func (cmd *PeekCmd) peekBeaker(g *Global) error {
	b, _ := g.Pipeline.Beaker(cmd.Thing)
	n, err := b.Len()
	if err != nil {
		return err
	}
	fmt.Fprintf(g.Stdout, "%s (%d)\n", cmd.Thing, n)

	w := tabwriter.NewWriter(g.Stdout, 2, 4, 2, ' ', 0)
	var fields []string
	index := 0
	shown := 0
	err = b.Items(func(id string, item any) error {
		index++
		if index <= cmd.Offset || shown >= cmd.MaxItems {
			return nil
		}
		m, err := itemMap(item)
		if err != nil {
			return err
		}
		if fields == nil {
			fields = sortedFieldNames(m)
			header := []string{"UUID"}
			for _, field := range fields {
				header = append(header, strings.ToUpper(field))
			}
			fmt.Fprintln(w, strings.Join(header, "\t"))
		}
		row := []string{id}
		for _, field := range fields {
			row = append(row, fieldString(m[field], 40))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
		shown++
		return nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

func (cmd *PeekCmd) peekRecord(g *Global) error {
	rec, err := g.Pipeline.FullRecord(cmd.Thing)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.Stdout, cmd.Thing)

	w := tabwriter.NewWriter(g.Stdout, 2, 4, 2, ' ', 0)
	for _, name := range g.Pipeline.BeakerNames() {
		item, ok := rec.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t\t\n", name)
		m, err := itemMap(item)
		if err != nil {
			return err
		}
		for _, field := range sortedFieldNames(m) {
			fmt.Fprintf(w, "\t%s\t%s\n", field, fieldString(m[field], 20))
		}
	}
	return w.Flush()
}

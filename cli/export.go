package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
)

// ExportCmd dumps a beaker's items, joined by id with any additional
// beakers, as JSON or CSV.
type ExportCmd struct {
	Beakers  []string `arg:"" help:"Main beaker, then beakers to join in"`
	Format   string   `short:"f" help:"Output format" enum:"json,csv" default:"json"`
	MaxItems int      `short:"n" name:"max-items" help:"Stop after this many items"`
}

func (cmd *ExportCmd) Run(g *Global) error {
	main, aux := cmd.Beakers[0], cmd.Beakers[1:]
	b, ok := g.Pipeline.Beaker(main)
	if !ok {
		return fmt.Errorf("beaker %q not found", main)
	}
	for _, name := range aux {
		if _, ok := g.Pipeline.Beaker(name); !ok {
			return fmt.Errorf("beaker %q not found", name)
		}
	}

	var rows []map[string]any
	err := b.Items(func(id string, item any) error {
		if cmd.MaxItems > 0 && len(rows) >= cmd.MaxItems {
			return nil
		}
		row, err := itemMap(item)
		if err != nil {
			return err
		}
		rec, err := g.Pipeline.FullRecord(id)
		if err != nil {
			return err
		}
		for _, name := range aux {
			auxItem, ok := rec.Get(name)
			if !ok {
				continue
			}
			m, err := itemMap(auxItem)
			if err != nil {
				return err
			}
			for k, v := range m {
				row[name+"_"+k] = v
			}
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return err
	}

	switch cmd.Format {
	case "json":
		enc := json.NewEncoder(g.Stdout)
		enc.SetIndent("", " ")
		return enc.Encode(rows)
	case "csv":
		return writeCSV(g, rows)
	}
	return fmt.Errorf("unknown format %q", cmd.Format)
}

func writeCSV(g *Global, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	fields := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			fields[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(fields))
	for k := range fields {
		header = append(header, k)
	}
	sort.Strings(header)

	w := csv.NewWriter(g.Stdout)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		out := make([]string, len(header))
		for i, k := range header {
			if v, ok := row[k]; ok {
				out[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := w.Write(out); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

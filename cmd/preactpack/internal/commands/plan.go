package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/wolfeidau/preactpack/internal/catalog"
	"gopkg.in/yaml.v3"
)

type PlanCmd struct {
	Env    string `help:"Environment tag to resolve (development or production)" env:"NODE_ENV" required:""`
	Format string `help:"Output format" default:"json" enum:"json,yaml"`
}

func (c *PlanCmd) Run(ctx context.Context, globals *Globals) error {
	_, p, err := load(globals, c.Env)
	if err != nil {
		return err
	}

	doc := p.Document()

	switch c.Format {
	case "yaml":
		enc := yaml.NewEncoder(globals.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(globals.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		return nil
	}
}

type StagesCmd struct{}

func (c *StagesCmd) Run(globals *Globals) error {
	w := tabwriter.NewWriter(globals.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ORDER\tSTAGE\tAPPLIES\tREQUIRES\tOUTPUT")
	for _, d := range catalog.AllStages() {
		requires := strings.Join(d.Requires, ",")
		if requires == "" {
			requires = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.Order, d.Name, d.Applicability, requires, d.Output)
	}

	return w.Flush()
}

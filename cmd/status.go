package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heatwatch-fr/heatrisk-cli/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report which cities have complete outputs",
	Long:  "Checks the output directory for each rostered city's GeoJSON, CSV, and summary files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		descs, err := pipeline.LoadDescriptors(cfg.Cities.File)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CITY\tSTATUS\tMISSING")
		complete := 0
		for _, d := range descs {
			missing := missingOutputs(cfg.Output.Dir, d.Basename())
			if len(missing) == 0 {
				complete++
				fmt.Fprintf(w, "%s\tcomplete\t\n", d.Name)
			} else {
				fmt.Fprintf(w, "%s\tincomplete\t%v\n", d.Name, missing)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		cmd.Printf("%d/%d cities complete\n", complete, len(descs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// missingOutputs lists which of a city's three output files are absent.
func missingOutputs(outDir, basename string) []string {
	var missing []string
	for _, suffix := range []string{"_units.geojson", "_units.csv", "_summary.json"} {
		name := basename + suffix
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

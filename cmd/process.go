package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/heatwatch-fr/heatrisk-cli/internal/pipeline"
)

var (
	processCities      []string
	processConcurrency int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the multi-city heat risk pipeline",
	Long:  "Loads every city in the roster, reduces climate zones onto its units, joins demographics, scores risk, and writes GeoJSON, CSV, and summary outputs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		descs, err := pipeline.LoadDescriptors(cfg.Cities.File)
		if err != nil {
			return err
		}
		descs, err = filterCities(descs, processCities)
		if err != nil {
			return err
		}

		concurrency := cfg.Batch.MaxConcurrentCities
		if processConcurrency > 0 {
			concurrency = processConcurrency
		}

		runner := pipeline.NewRunner(cfg.Output.Dir, concurrency)
		report, err := runner.RunAll(ctx, descs)
		if err != nil {
			return err
		}

		cmd.Printf("run %s: %d succeeded, %d failed (%dms)\n",
			report.RunID, report.Succeeded, report.Failed, report.Duration)
		return nil
	},
}

func init() {
	processCmd.Flags().StringSliceVar(&processCities, "city", nil, "process only the named cities (repeatable)")
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 0, "override max concurrent cities")
	rootCmd.AddCommand(processCmd)
}

// filterCities narrows the roster to the requested city names,
// case-insensitively. An unknown name is an error rather than a silent no-op.
func filterCities(descs []pipeline.CityDescriptor, names []string) ([]pipeline.CityDescriptor, error) {
	if len(names) == 0 {
		return descs, nil
	}

	byName := make(map[string]pipeline.CityDescriptor, len(descs))
	for _, d := range descs {
		byName[strings.ToLower(d.Name)] = d
	}

	out := make([]pipeline.CityDescriptor, 0, len(names))
	for _, name := range names {
		d, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, eris.Errorf("city %q is not in the roster", name)
		}
		out = append(out, d)
	}
	return out, nil
}

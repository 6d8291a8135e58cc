package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heatwatch-fr/heatrisk-cli/internal/lcz"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the climate zone classification table",
	Long:  "Lists every local climate zone code with its heat category, risk multiplier, and description.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tCATEGORY\tMULTIPLIER\tDESCRIPTION")
		for _, code := range lcz.Codes() {
			category, err := lcz.CategoryOf(code)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				code, category, category.Multiplier(), lcz.Description(code))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

// Command waterctl checks, repairs, and summarizes water balance datasets
// offline, using the same parsers and balance model as the service.
//
// Usage:
//
//	waterctl validate data/march.csv
//	waterctl recompute data/march.xlsx -o data/march.yaml
//	waterctl summary data/march.csv --month Mar-25
//	waterctl export --format csv -o template.csv
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errValidationFailed signals mismatches that were already printed.
var errValidationFailed = errors.New("validation failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "waterctl",
		Short:         "Water balance dataset tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(recomputeCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(exportCmd())
	return rootCmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Audit the derived loss fields of a dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func recomputeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "recompute [file]",
		Short: "Recompute every derived field and write the dataset as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecompute(cmd.OutOrStdout(), args[0], out)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default stdout)")
	return cmd
}

func summaryCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "summary [file]",
		Short: "Print KPIs and zone performance for one month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.OutOrStdout(), args[0], month)
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "month label, e.g. Mar-25 (default latest)")
	return cmd
}

func exportCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write a dataset (default: the bundled one) as CSV or YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := ""
			if len(args) == 1 {
				in = args[0]
			}
			return runExport(cmd.OutOrStdout(), in, format, out)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv or yaml")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default stdout)")
	return cmd
}

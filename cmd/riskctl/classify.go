package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/postnet/cashwatch/envelope"
	"github.com/postnet/cashwatch/risk"
	"github.com/postnet/cashwatch/tabular"
)

func classifyCmd() *cobra.Command {
	var input string
	var output string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a raw daily cash-position spreadsheet",
		Long: `Run the very-high-risk classification over a raw daily upload and write
the resulting report envelope, ready for the remark workflow.`,
		Example: `  # Classify and write the envelope next to the input
  riskctl classify -i daily_positions.xlsx

  # Write to an explicit path (xlsx or csv by extension)
  riskctl classify -i daily_positions.xlsx -o high_risk.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			grid, err := readGridFile(input)
			if err != nil {
				return err
			}

			result, err := risk.ClassifyGrid(grid)
			if err != nil {
				var schemaErr *risk.SchemaError
				if errors.As(err, &schemaErr) {
					return fmt.Errorf("input is missing required columns: %s",
						strings.Join(schemaErr.Missing, ", "))
				}
				return err
			}

			printResult(cmd, result)

			env := envelope.FromResult(result)
			if output == "" {
				output = env.ExportFilename()
			}
			if err := writeGridFile(output, "High_Risk_Offices", env.Encode(time.Now())); err != nil {
				return err
			}

			slog.Info("wrote envelope", "path", output,
				"branch_flags", len(result.Flags[risk.OfficeBranch]),
				"sub_flags", len(result.Flags[risk.OfficeSub]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "raw daily positions file (xlsx or csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "envelope output path (default: High_Risk_Offices_<from>_to_<to>.xlsx)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func printResult(cmd *cobra.Command, result *risk.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Working days: %d", result.WorkingDays)
	if !result.FromDate.IsZero() {
		fmt.Fprintf(out, "  (%s to %s)", result.FromDate.Display(), result.ToDate.Display())
	}
	fmt.Fprintln(out)

	for _, t := range []risk.OfficeType{risk.OfficeBranch, risk.OfficeSub} {
		summary := result.Summary[t]
		fmt.Fprintf(out, "%s offices with excess cash: %d (%s%%)\n",
			label(t), summary.OfficesWithExcess, summary.Percent())
	}

	flags := result.AllFlags()
	if len(flags) == 0 {
		fmt.Fprintln(out, "No very-high-risk offices found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tOFFICE\tDIVISION\tDAYS\tAVG EXCESS")
	for _, flag := range flags {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			flag.OfficeType, flag.OfficeName, flag.Division,
			flag.DaysExceeding, envelope.FormatLakh(flag.OfficeAggregate))
	}
	w.Flush()
}

func label(t risk.OfficeType) string {
	if t == risk.OfficeSub {
		return "Sub"
	}
	return "Branch"
}

// readGridFile opens a local spreadsheet and reads it into a grid.
func readGridFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return tabular.ReadGrid(f, path)
}

// writeGridFile writes a grid as xlsx or csv depending on extension.
func writeGridFile(path, sheet string, grid [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return tabular.WriteCSV(f, grid)
	}
	return tabular.WriteXLSX(f, sheet, grid)
}

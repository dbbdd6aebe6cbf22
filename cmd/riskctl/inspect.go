package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/postnet/cashwatch/envelope"
)

func inspectCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the rows and recovered metadata of an envelope file",
		RunE: func(cmd *cobra.Command, args []string) error {
			grid, err := readGridFile(file)
			if err != nil {
				return err
			}
			env, err := envelope.Decode(grid)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !env.FromDate.IsZero() || !env.ToDate.IsZero() {
				fmt.Fprintf(out, "Window: %s to %s\n", env.FromDate.Display(), env.ToDate.Display())
			} else {
				fmt.Fprintln(out, "Window: not recorded in file")
			}
			fmt.Fprintf(out, "Rows: %d\n\n", len(env.Rows))

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tOFFICE\tDIVISION\tDAYS\tAVG EXCESS\tREMARK")
			for _, row := range env.Rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					row.OfficeType, row.OfficeName, row.Division,
					row.DaysExceeding, row.AvgExcess, row.Remark)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "envelope file to inspect")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postnet/cashwatch/envelope"
	"github.com/postnet/cashwatch/risk"
	"github.com/postnet/cashwatch/tracker"
)

func remarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remark",
		Short: "Manage remarks on an exported report envelope",
	}
	cmd.AddCommand(setRemarkCmd())
	return cmd
}

func setRemarkCmd() *cobra.Command {
	var (
		file       string
		officeType string
		office     string
		division   string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set one office's remediation status",
		Long: `Set the remark for one flagged office in an exported envelope and
rewrite the file with a fresh Last Updated stamp.`,
		Example: `  riskctl remark set -f High_Risk_Offices_01082026_to_31082026.xlsx \
      --type BPO --office "Sihora" --division "Jabalpur" --status cash-remitted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseStatus(status)
			if err != nil {
				return err
			}
			t := risk.OfficeType(strings.ToUpper(officeType))
			if !t.Valid() {
				return fmt.Errorf("unknown office type %q (use BPO or SPO)", officeType)
			}

			grid, err := readGridFile(file)
			if err != nil {
				return err
			}
			env, err := envelope.Decode(grid)
			if err != nil {
				return err
			}

			session := tracker.New("riskctl", env)
			key := risk.OfficeKey{Type: t, Name: office, Division: division}
			row, changed, err := session.Apply(key, state)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) already %s; file unchanged\n",
					row.OfficeName, row.Division, row.Remark)
				return nil
			}

			sheet := "Updated"
			if err := writeGridFile(file, sheet, session.Export().Encode(time.Now())); err != nil {
				return err
			}

			slog.Info("remark updated", "office", row.OfficeName,
				"division", row.Division, "status", string(row.Remark), "path", file)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", row.OfficeName, row.Division, row.Remark)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "envelope file to edit")
	cmd.Flags().StringVar(&officeType, "type", "", "office type (BPO or SPO)")
	cmd.Flags().StringVar(&office, "office", "", "office name")
	cmd.Flags().StringVar(&division, "division", "", "division")
	cmd.Flags().StringVar(&status, "status", "", "pending, cash-remitted, or balance-lowered")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("office")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}

// parseStatus maps CLI-friendly aliases onto the remark states the
// envelope carries.
func parseStatus(s string) (risk.RemarkState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return risk.RemarkPending, nil
	case "cash-remitted", "remitted":
		return risk.RemarkCashRemitted, nil
	case "balance-lowered", "lowered":
		return risk.RemarkBalanceLowered, nil
	}
	// Accept the exact envelope labels too.
	state := risk.RemarkState(s)
	if state.Valid() {
		return state, nil
	}
	return "", fmt.Errorf("unknown status %q (use pending, cash-remitted, or balance-lowered)", s)
}

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loykin/sqlrun/internal/constants"
)

var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"status"},
	Short:   "Show applied and pending migrations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.close()

		infos, err := s.tool.List(s.ctx, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "STATUS\tFILENAME\tCREATED_AT\tAPPLIED_AT")
		for _, i := range infos {
			applied := "-"
			if i.AppliedAt != nil {
				applied = i.AppliedAt.UTC().Format(constants.StatusTimestampLayout)
			}
			created := "-"
			if !i.CreatedAt.IsZero() {
				created = i.CreatedAt.UTC().Format(constants.StatusTimestampLayout)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", i.Status(), i.Filename, created, applied)
		}
		return tw.Flush()
	},
}

var CurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the sequence key of the newest applied migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.close()

		key, err := s.tool.Current(s.ctx)
		if err != nil {
			return err
		}
		if key != "" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

var PendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print the migrations an upgrade would apply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.close()

		names, err := s.tool.Pending(s.ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	ListCmd.Flags().Int("limit", constants.DefaultListLimit, "number of applied migrations to show (0 = all)")
}

package commands

import (
	"github.com/spf13/cobra"
)

var UpgradeCmd = &cobra.Command{
	Use:     "upgrade",
	Aliases: []string{"up"},
	Short:   "Apply pending migrations, optionally stopping at --target",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.close()

		results, err := s.tool.Upgrade(s.ctx, target)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), "applied", results)
		return nil
	},
}

func init() {
	UpgradeCmd.Flags().String("target", "", "filename or sequence key of the last migration to apply")
}

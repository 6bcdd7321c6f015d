package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the history table; seed an empty first migration when the directory is empty",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.close()

		path, results, err := s.tool.Init(s.ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if path != "" {
			_, _ = fmt.Fprintln(out, path)
		}
		_, _ = fmt.Fprintf(out, "history table %s ready\n", s.tool.Store().Table())
		if len(results) > 0 {
			printSummary(out, "applied", results)
		}
		return nil
	},
}

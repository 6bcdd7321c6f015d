package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/sqlrun"
	"github.com/loykin/sqlrun/cmd/sqlrun/config"
)

// AnnotationOffline marks commands that run without a database connection.
const AnnotationOffline = "sqlrun.offline"

var GenerateCmd = &cobra.Command{
	Use:         "generate <description>",
	Aliases:     []string{"create", "new"},
	Short:       "Create a new empty migration script (timestamp-based name)",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{AnnotationOffline: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ok := config.FromContext(cmd.Context())
		if !ok {
			return errNoConfig
		}
		p, err := sqlrun.Generate(cfg.Migration(), sqlrun.Options{}, strings.Join(args, " "))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

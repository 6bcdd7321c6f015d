package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/sqlrun/cmd/sqlrun/commands"
	"github.com/loykin/sqlrun/cmd/sqlrun/config"
)

var rootCmd = &cobra.Command{
	Use:           "sqlrun",
	Short:         "Apply ordered SQL migration scripts and track them in a history table",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		load := config.Load
		if cmd.Annotations[commands.AnnotationOffline] == "true" {
			load = config.LoadOffline
		}
		c, err := load(viper.GetViper())
		if err != nil {
			return err
		}
		if err := c.SetupLogging(); err != nil {
			return err
		}
		cmd.SetContext(config.WithContext(cmd.Context(), c))
		return nil
	},
}

func init() {
	v := viper.GetViper()
	config.SetDefaults(v)

	// Environment variables support: WRITER_DATABASE_URI, MIGRATIONS_DIR, DATABASE_ECHO, SQLRUN_*
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a config yaml")
	flags.String("database-url", "", "database URL, e.g. sqlite:///app.db or postgresql://user@host/db")
	flags.String("migrations-dir", v.GetString(config.KeyMigrationsDir), "directory holding migration scripts")
	flags.Bool("echo", false, "log every SQL statement")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("log-level", "", "log level: error, warn, info, debug")
	flags.String("log-format", "", "log format: text, json, color")
	flags.String("script-ext", v.GetString(config.KeyScriptExt), "template used by generate: sql or yaml")
	flags.Bool("lock", false, "hold a database advisory lock while executing")
	flags.Duration("timeout", 0, "abort the command after this long (0 = no limit)")
	flags.Int("connect-retries", 0, "retry the first database connection this many times")

	_ = v.BindPFlag(config.KeyConfig, flags.Lookup("config"))
	_ = v.BindPFlag(config.KeyDatabaseURL, flags.Lookup("database-url"))
	_ = v.BindPFlag(config.KeyMigrationsDir, flags.Lookup("migrations-dir"))
	_ = v.BindPFlag(config.KeyEcho, flags.Lookup("echo"))
	_ = v.BindPFlag(config.KeyVerbose, flags.Lookup("verbose"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = v.BindPFlag(config.KeyScriptExt, flags.Lookup("script-ext"))
	_ = v.BindPFlag(config.KeyLock, flags.Lookup("lock"))
	_ = v.BindPFlag(config.KeyTimeout, flags.Lookup("timeout"))
	_ = v.BindPFlag(config.KeyRetries, flags.Lookup("connect-retries"))

	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.UpgradeCmd)
	rootCmd.AddCommand(commands.DowngradeCmd)
	rootCmd.AddCommand(commands.ListCmd)
	rootCmd.AddCommand(commands.CurrentCmd)
	rootCmd.AddCommand(commands.PendingCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		exitHandler.LogFatalError(err, "command failed")
	}
}

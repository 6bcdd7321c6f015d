package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/loykin/sqlrun"
	"github.com/loykin/sqlrun/internal/constants"
	"github.com/loykin/sqlrun/internal/store/mysql"
	"github.com/loykin/sqlrun/internal/store/postgresql"
	"github.com/loykin/sqlrun/internal/util"
)

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=error warn warning info debug"`
	Format        string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json color colour"`
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

// Config is the merged CLI configuration.
type Config struct {
	DatabaseURL   string `mapstructure:"database_url" yaml:"database_url" validate:"required"`
	MigrationsDir string `mapstructure:"migrations_dir" yaml:"migrations_dir" validate:"required"`
	Echo          bool   `mapstructure:"echo" yaml:"echo"`
	Verbose       bool   `mapstructure:"verbose" yaml:"verbose"`
	ScriptExt     string `mapstructure:"script_ext" yaml:"script_ext" validate:"omitempty,oneof=sql yaml yml"`
	HistoryTable  string `mapstructure:"history_table" yaml:"history_table"`
	TablePrefix   string `mapstructure:"table_prefix" yaml:"table_prefix"`
	Lock          bool   `mapstructure:"lock" yaml:"lock"`
	// ConnectRetries retries the first connection while the database starts.
	ConnectRetries int `mapstructure:"connect_retries" yaml:"connect_retries" validate:"gte=0,lte=100"`
	// Timeout bounds a whole command; zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	// Postgres builds DatabaseURL from components when no URL is given.
	Postgres *postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
	// MySQL is consulted when neither DatabaseURL nor Postgres yields a URL.
	MySQL *mysql.Config `mapstructure:"mysql" yaml:"mysql"`
	Logging  LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// Keys shared by flags, env vars and the config file.
const (
	KeyConfig        = "config"
	KeyDatabaseURL   = "database_url"
	KeyMigrationsDir = "migrations_dir"
	KeyEcho          = "echo"
	KeyVerbose       = "verbose"
	KeyScriptExt     = "script_ext"
	KeyLock          = "lock"
	KeyTimeout       = "timeout"
	KeyHistoryTable  = "history_table"
	KeyTablePrefix   = "table_prefix"
	KeyRetries       = "connect_retries"
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
)

var (
	validate    = validator.New()
	envReplacer = strings.NewReplacer(".", "_", "-", "_")
)

// SetDefaults installs defaults and env bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMigrationsDir, constants.DefaultMigrationsDir)
	v.SetDefault(KeyScriptExt, constants.DefaultScriptExt)
	v.SetDefault(KeyEcho, false)
	v.SetDefault(KeyLock, false)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyTimeout, "0s")
	v.SetDefault(KeyHistoryTable, "")
	v.SetDefault(KeyTablePrefix, "")
	v.SetDefault(KeyRetries, 0)
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyLogFormat, "")

	// SQLRUN_DATABASE_URL, SQLRUN_LOGGING_LEVEL, ...
	v.SetEnvPrefix(constants.DefaultConfigEnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	_ = v.BindEnv(KeyDatabaseURL, constants.EnvDatabaseURL, constants.DefaultConfigEnvPrefix+"_DATABASE_URL")
	_ = v.BindEnv(KeyMigrationsDir, constants.EnvMigrationsDir, constants.DefaultConfigEnvPrefix+"_MIGRATIONS_DIR")
	_ = v.BindEnv(KeyEcho, constants.EnvDatabaseEcho, constants.DefaultConfigEnvPrefix+"_ECHO")
}

// ReadFile merges a YAML config file into v below flags and env vars.
func ReadFile(v *viper.Viper, path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	data, err := os.ReadFile(clean)
	if err != nil {
		return err
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", clean, err)
	}
	return v.MergeConfigMap(doc)
}

// Load reads the optional config file named by KeyConfig, decodes and
// validates the merged configuration.
func Load(v *viper.Viper) (*Config, error) {
	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadOffline is Load for commands that never connect, so DatabaseURL may
// be empty.
func LoadOffline(v *viper.Viper) (*Config, error) {
	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := validationError(validate.StructExcept(c, "DatabaseURL")); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(v *viper.Viper) (*Config, error) {
	if path, ok := util.TrimEmptyCheck(v.GetString(KeyConfig)); ok {
		if err := ReadFile(v, path); err != nil {
			return nil, err
		}
	}
	var c Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.DatabaseURL == "" && c.Postgres != nil {
		c.DatabaseURL = c.Postgres.URL()
	}
	if c.DatabaseURL == "" && c.MySQL != nil {
		c.DatabaseURL = c.MySQL.URL()
	}
	return &c, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	return validationError(validate.Struct(c))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// Migration converts the CLI configuration into the library configuration.
func (c *Config) Migration() sqlrun.Config {
	return sqlrun.Config{
		DatabaseURL:    c.DatabaseURL,
		MigrationsDir:  c.MigrationsDir,
		Echo:           c.Echo,
		ScriptExt:      c.ScriptExt,
		HistoryTable:   c.HistoryTable,
		TablePrefix:    c.TablePrefix,
		Lock:           c.Lock,
		ConnectRetries: c.ConnectRetries,
	}
}

// SetupLogging configures the global logger based on config settings
func (c *Config) SetupLogging() error {
	level, ok := sqlrun.ParseLogLevel(c.Logging.Level)
	if !ok {
		return fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
	if c.Verbose {
		level = sqlrun.LogLevelDebug
	}

	var logger *sqlrun.Logger
	format := util.TrimAndLower(c.Logging.Format)

	// Check if color is explicitly requested
	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	switch format {
	case "json":
		logger = sqlrun.NewJSONLogger(level)
	case "color", "colour":
		logger = sqlrun.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = sqlrun.NewColorLogger(level)
		} else {
			logger = sqlrun.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	sqlrun.SetDefaultLogger(logger)
	sqlrun.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", level.String(),
		"format", util.TrimWithDefault(format, "text"),
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return nil
}

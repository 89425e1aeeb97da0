package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/dbretry/internal/config"
	"github.com/vvka-141/dbretry/internal/retry"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// ruleFlags holds the flags shared by every command that builds a rule table.
type ruleFlags struct {
	configPath string
	driver     string
	ruleset    string
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "",
		"Path to the config file (default: ./"+config.ConfigFileName+" if present)")
	cmd.Flags().StringVar(&f.driver, "driver", "",
		"Database driver: pgx, postgres or mysql (default: pgx)")
	cmd.Flags().StringVar(&f.ruleset, "ruleset", "",
		"Built-in rule set: mysql, postgres or none (default: follows the driver)")
}

// loadProjectConfig loads godotenv and project configuration.
// Without an explicit path, a missing dbretry.yaml is not an error and
// yields a nil config.
func loadProjectConfig(path string) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(".")
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}
	return cfg, nil
}

// buildRetryConfig applies flag overrides to projectCfg and compiles the
// engine configuration.
func buildRetryConfig(projectCfg *config.ProjectConfig, flags ruleFlags) (*retry.Config, []string, error) {
	var effective config.ProjectConfig
	if projectCfg != nil {
		effective = *projectCfg
	}
	if flags.driver != "" {
		effective.Connection.Driver = flags.driver
	}
	if flags.ruleset != "" {
		effective.Retry.RuleSet = flags.ruleset
	}
	return effective.Build()
}

// resolveEffectiveTimeout returns the effective timeout, preferring dbretry.yaml if flag wasn't set.
func resolveEffectiveTimeout(
	cmd *cobra.Command,
	projectCfg *config.ProjectConfig,
	flagTimeout time.Duration,
) (time.Duration, error) {
	if projectCfg != nil && projectCfg.Timeout != "" && !cmd.Flags().Changed("timeout") {
		return projectCfg.TimeoutDuration()
	}
	if flagTimeout <= 0 {
		return 0, fmt.Errorf("--timeout must be positive: %w", dbretry.ErrInvalidConfig)
	}
	return flagTimeout, nil
}

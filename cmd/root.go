// Package cmd implements the botsim command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botsim/internal/config"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "botsim",
		Short:         "In-memory Telegram Bot API simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			setupLogging(logLevel)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(methodsCmd())
	cmd.AddCommand(configCmd())
	return cmd
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		var exit exitError
		if !errors.As(err, &exit) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// exitError ends the process with a failure status without printing anything
// more; the command already reported.
type exitError struct{ reason string }

func (e exitError) Error() string { return e.reason }

// loadEnvFile loads KEY=value pairs without overriding the environment. A missing
// default file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setupLogging(level string) {
	if level == "" {
		level = os.Getenv("BOTSIM_LOG_LEVEL")
	}
	lvl := slog.LevelWarn
	if l, err := config.ParseLevel(level); err == nil && level != "" {
		lvl = l
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func resolveConfigPath() string {
	return config.ResolvePath(cfgFile)
}

// loadConfig loads the config and applies the log level it names unless the
// flag overrides it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if logLevel == "" && os.Getenv("BOTSIM_LOG_LEVEL") == "" && cfg.LogLevel != "" {
		setupLogging(cfg.LogLevel)
	}
	return cfg, nil
}

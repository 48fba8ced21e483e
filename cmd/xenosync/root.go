package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kspringfield13/xenosync/internal/common/config"
	"github.com/kspringfield13/xenosync/internal/common/logger"
)

var (
	cfgPath string
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "xenosync",
	Short: "Orchestrate a fleet of AI coding agents against one prompt",
	Long: `xenosync launches several AI coding agents in parallel against the same
task list, gives each its own isolated project directory, and folds their
completed work back into a single final project.`,
	SilenceUsage: true,
}

// Execute runs the xenosync command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "directory holding config.yaml (default: ~/.xenosync, then .)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initLogger builds the process-wide default logger from whatever
// configuration is reachable at this point, with a --log-level value
// (bound to the global viper above) overriding logging.level.
func initLogger() {
	cfg, err := config.LoadWithPath(cfgPath)
	if err != nil {
		l, _ := logger.New(logger.Config{Level: "info", Format: "text", OutputPath: "stdout"})
		log = l
		return
	}
	if lvl := viper.GetString("logging.level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	l, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "building logger failed:", err)
		l = logger.Default()
	}
	log = l
	logger.SetDefault(l)
}

// loadConfig resolves configuration for a single command invocation,
// applying the named build-speed profile on top of the layered file/env
// result.
func loadConfig(profile string) (*config.Config, error) {
	cfg, err := config.LoadWithPath(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyProfile(profile); err != nil {
		return nil, err
	}
	return cfg, nil
}

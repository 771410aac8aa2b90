// Command comfynodes runs the prompt-authoring nodes from the command line
// or as an HTTP service.
package main

import (
	"errors"
	"os"
	"time"

	"comfynodes/cache"
	"comfynodes/logger"
	"comfynodes/lora"
	"comfynodes/settings"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.toml"

// app carries what every subcommand needs once PersistentPreRunE has run.
type app struct {
	configPath string
	loraDir    string
	noCache    bool
	verbose    bool

	config    *settings.Config
	store     *cache.Store
	extractor *lora.Extractor
}

func main() {
	// stdout is reserved for command output
	logger.InitWriter(logger.DefaultConfig(), os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		logger.Fatal("Command failed", "error", err)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:               "comfynodes",
		Short:             "Prompt authoring nodes: LoRA trigger words, templates, weighted attributes",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return a.close()
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&a.loraDir, "lora-dir", "", "LoRA directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "do not use the extraction cache")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		a.lorasCmd(),
		a.triggersCmd(),
		a.metadataCmd(),
		a.scanCmd(),
		a.interpolateCmd(),
		a.attributesCmd(),
		a.combineCmd(),
		a.serveCmd(),
	)

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config, err := settings.LoadConfig(a.configPath)
	if errors.Is(err, settings.ErrConfigNotFound) && !cmd.Flags().Changed("config") {
		config = settings.Default()
		err = settings.ApplyEnv(config)
		if err == nil {
			err = config.Validate()
		}
	}
	if err != nil {
		return err
	}

	if a.loraDir != "" {
		config.Loras.Path = a.loraDir
	}
	if a.verbose {
		config.Logging.Level = logger.LevelDebug
	}
	if a.noCache {
		config.Cache.Enabled = false
	}
	a.config = config

	logger.InitWriter(config.Logging, os.Stderr)
	logger.Debug("Configuration loaded", "loras", config.Loras.Path, "cache", config.Cache.Enabled, "percent", config.Loras.DefaultPercent)

	a.extractor = &lora.Extractor{}
	if config.Cache.Enabled {
		ttl := time.Duration(config.Cache.ExpireHours) * time.Hour
		store, err := cache.Open(config.Cache.Path, ttl, config.Cache.HotEntries)
		if err != nil {
			logger.Warn("Extraction cache unavailable, continuing without it", "path", config.Cache.Path, "error", err)
		} else {
			a.store = store
			a.extractor.Cache = store
		}
	}

	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/treesum/pkg/treesum/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage treesum configuration.

Configuration is loaded from $XDG_CONFIG_HOME/treesum/config.yaml, with
TREESUM_* environment variables and command-line flags taking precedence:

  TREESUM_ALGORITHM=xxh64
  TREESUM_WORKERS=4
  TREESUM_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(filepath.Join(config.ConfigDir(), "config.yaml"))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Printf("Config file: %s\n\n", file)
	} else {
		fmt.Print("Config file: (none, using defaults)\n\n")
	}

	fmt.Printf("algorithm:         %s\n", cfg.Algorithm)
	fmt.Printf("workers:           %d\n", cfg.Workers)
	fmt.Printf("exclude:           %v\n", cfg.Exclude)
	fmt.Printf("manifest_name:     %s\n", orDefault(cfg.ManifestName, "tree_checksum.json"))
	fmt.Printf("cache.enabled:     %t\n", cfg.Cache.Enabled)
	fmt.Printf("cache.path:        %s\n", cfg.Cache.Path)
	fmt.Printf("sync.delete:       %t\n", cfg.Sync.Delete)
	fmt.Printf("watch.debounce_ms: %d\n", cfg.Watch.DebounceMS)
	fmt.Printf("logging.level:     %s\n", cfg.Logging.Level)

	overrides := false
	for _, env := range os.Environ() {
		if len(env) > 8 && env[:8] == "TREESUM_" {
			if !overrides {
				fmt.Println("\nEnvironment overrides:")
				overrides = true
			}
			fmt.Printf("  %s\n", env)
		}
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	fmt.Printf("Config file: %s\n", path)
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/treesum/pkg/treesum/cache"
	"github.com/jamesainslie/treesum/pkg/treesum/config"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
)

// errDifferencesFound signals a non-empty diff or failed verify. main maps
// it to exit code 1; it is never printed as an error.
var errDifferencesFound = errors.New("differences found")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "treesum",
		Short: "Hierarchical checksums for directory trees",
		Long: `Treesum computes a single digest for a directory tree and a manifest of
per-entry digests, then uses manifests to compare trees and bring a
destination tree up to date with a source.

Examples:
  treesum scan .                  # Write ./tree_checksum.json
  treesum diff old.json new.json  # Compare two manifests
  treesum diff ~/a ~/b --live     # Rescan and compare two trees
  treesum verify ~/photos         # Check a tree against its manifest
  treesum sync ~/photos /mnt/bak  # Update destination to match source
  treesum watch ~/photos          # Keep the manifest current`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/treesum/config.yaml)")
	rootCmd.PersistentFlags().StringP("algorithm", "a", "", "digest algorithm: sha256, md5, xxh64")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "concurrent hashing workers (0=auto)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "exclude patterns (repeatable)")
	rootCmd.PersistentFlags().String("manifest-name", "", "manifest filename (default: tree_checksum.json)")
	rootCmd.PersistentFlags().StringP("format", "f", "", "output format: pretty, plain, json")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "shorthand for --format json")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the digest cache, hash every file")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging, show unchanged entries")

	_ = viper.BindPFlag("algorithm", rootCmd.PersistentFlags().Lookup("algorithm"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("manifest_name", rootCmd.PersistentFlags().Lookup("manifest-name"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig wires the global viper: config file, env, defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.SetEnvPrefix("TREESUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	_ = viper.ReadInConfig()
}

func initLogging() error {
	level := viper.GetString("logging.level")
	if getVerbose() {
		level = "debug"
	}
	return logging.Init(level)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// outputFormat resolves --format/--json into a renderer.
func outputFormat() output.Format {
	if viper.GetBool("json") {
		return output.FormatJSON
	}
	switch viper.GetString("format") {
	case "plain":
		return output.FormatPlain
	case "json":
		return output.FormatJSON
	case "pretty":
		return output.FormatPretty
	default:
		if getQuiet() {
			return output.FormatPlain
		}
		return output.FormatPretty
	}
}

// scanOptions builds scanner options for a root from flags and config.
// The returned closer releases the digest cache; call it after the scan.
func scanOptions(root string) (scanner.Options, func(), error) {
	alg, err := hasher.ParseAlgorithm(viper.GetString("algorithm"))
	if err != nil {
		return scanner.Options{}, nil, err
	}

	opts := scanner.Options{
		Root:         root,
		Algorithm:    alg,
		Workers:      viper.GetInt("workers"),
		Exclude:      viper.GetStringSlice("exclude"),
		ManifestName: viper.GetString("manifest_name"),
	}

	closer := func() {}
	if viper.GetBool("cache.enabled") && !viper.GetBool("no_cache") {
		c, err := cache.Open(viper.GetString("cache.path"))
		if err != nil {
			// A broken cache degrades to a full scan, it never blocks one.
			logging.Get("cache").Warn("cache unavailable, hashing everything", "error", err)
		} else {
			opts.Cache = c
			closer = func() { _ = c.Close() }
		}
	}
	return opts, closer, nil
}

// manifestPathFor returns a tree root's manifest path, honoring the
// manifest_name override.
func manifestPathFor(root string) string {
	name := viper.GetString("manifest_name")
	if name == "" {
		name = manifest.DefaultFilename
	}
	return filepath.Join(root, name)
}

// attachProgress adds a stderr progress reporter to opts when wanted.
func attachProgress(opts *scanner.Options) {
	if getQuiet() || outputFormat() == output.FormatJSON {
		return
	}
	opts.OnProgress = func(p scanner.Progress) {
		fmt.Fprintf(os.Stderr, "\r\033[K%d dirs, %d files  %s", p.DirsScanned, p.FilesScanned, p.CurrentPath)
	}
}

// finishProgress clears the progress line left by attachProgress.
func finishProgress(opts *scanner.Options) {
	if opts.OnProgress != nil {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}

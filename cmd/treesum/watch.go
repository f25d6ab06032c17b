package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
	"github.com/jamesainslie/treesum/pkg/treesum/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep a tree's manifest current as files change",
	Long: `Scan the tree, then watch it for changes. After a burst of changes
settles, the tree is rescanned and the manifest rewritten. Runs until
interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", 0, "settle time before rescanning (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	logger := logging.Get("watch")

	debounce, _ := cmd.Flags().GetDuration("debounce")
	if debounce <= 0 {
		debounce = time.Duration(viper.GetInt("watch.debounce_ms")) * time.Millisecond
	}

	rescan := func(ctx context.Context) error {
		opts, closeCache, err := scanOptions(root)
		if err != nil {
			return err
		}
		defer closeCache()

		res, err := scanner.New(opts).Scan(ctx)
		if err != nil {
			return err
		}
		if err := manifest.Save(res.Manifest, manifestPathFor(opts.Root)); err != nil {
			return err
		}
		logger.Info("manifest updated",
			"digest", res.Manifest.Root.Digest,
			"files", res.FilesScanned,
			"elapsed", res.Elapsed.Round(time.Millisecond))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Baseline scan before watching, so the manifest exists from the start.
	if err := rescan(ctx); err != nil {
		return err
	}

	w, err := watcher.New(root, watcher.Options{
		Debounce:     debounce,
		ManifestName: viper.GetString("manifest_name"),
		OnSettled:    rescan,
	})
	if err != nil {
		return err
	}
	logger.Info("watching", "root", root, "debounce", debounce)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

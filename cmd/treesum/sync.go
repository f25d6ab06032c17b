package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
	"github.com/jamesainslie/treesum/pkg/treesum/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync <src> <dst>",
	Short: "Update a destination tree to match a source tree",
	Long: `Rescan both trees, compute their diff, and copy what differs from the
source into the destination. Only changed entries are touched; matching
files keep their timestamps.

Entries present only in the destination are left in place unless --delete
is given. --dry-run reports what would change without touching anything.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("delete", false, "delete destination entries missing from the source")
	syncCmd.Flags().Bool("dry-run", false, "report planned changes without applying them")
	syncCmd.Flags().Bool("fail-fast", false, "abort on the first copy or delete failure")
	syncCmd.Flags().Bool("update-manifest", true, "rewrite the destination manifest after syncing")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	srcRoot, dstRoot := args[0], args[1]
	ctx := cmd.Context()

	src, err := scanTree(cmd, srcRoot)
	if err != nil {
		return err
	}
	dst, err := scanTree(cmd, dstRoot)
	if err != nil {
		return err
	}

	// Diffed destination-first: Added means present in the source, which
	// is what UpdateCopy applies.
	rep, err := diff.Diff(dst, src)
	if err != nil {
		return err
	}

	opts := sync.Options{}
	opts.Delete, _ = cmd.Flags().GetBool("delete")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.FailFast, _ = cmd.Flags().GetBool("fail-fast")

	res, err := sync.UpdateCopy(ctx, rep, srcRoot, dstRoot, opts)
	if err != nil {
		return err
	}
	if err := output.WriteSyncResult(os.Stdout, res, outputFormat()); err != nil {
		return err
	}
	if !res.Clean() {
		return fmt.Errorf("%d entries failed to sync", len(res.Failures))
	}

	if update, _ := cmd.Flags().GetBool("update-manifest"); update && !opts.DryRun {
		after, err := scanTree(cmd, dstRoot)
		if err != nil {
			return err
		}
		if err := manifest.Save(after, manifestPathFor(dstRoot)); err != nil {
			return err
		}
	}
	return nil
}

// scanTree rescans one tree and returns its fresh manifest.
func scanTree(cmd *cobra.Command, root string) (*manifest.Manifest, error) {
	opts, closeCache, err := scanOptions(root)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	res, err := scanner.New(opts).Scan(cmd.Context())
	if err != nil {
		return nil, err
	}
	return res.Manifest, nil
}

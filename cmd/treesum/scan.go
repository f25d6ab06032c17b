package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Compute tree checksums and write the manifest",
	Long: `Scan a directory tree, compute per-entry digests bottom-up, and write
the manifest (tree_checksum.json by default) into the tree root.

Unchanged files (same size and mtime as the last scan) reuse their cached
digest; pass --no-cache to hash everything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringP("output", "o", "", "write manifest to this path instead of the tree root")
	scanCmd.Flags().Bool("fail-fast", false, "abort on the first unreadable entry")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	opts, closeCache, err := scanOptions(root)
	if err != nil {
		return err
	}
	defer closeCache()
	opts.FailFast, _ = cmd.Flags().GetBool("fail-fast")
	attachProgress(&opts)

	res, err := scanner.New(opts).Scan(cmd.Context())
	finishProgress(&opts)
	if err != nil {
		return err
	}

	target, _ := cmd.Flags().GetString("output")
	if target == "" {
		target = manifestPathFor(opts.Root)
	}
	if err := manifest.Save(res.Manifest, target); err != nil {
		return err
	}

	if err := output.WriteScanSummary(os.Stdout, res, outputFormat()); err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d entries could not be read", len(res.Errors))
	}
	return nil
}

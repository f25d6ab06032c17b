package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Check a tree against its stored manifest",
	Long: `Rescan a tree and compare the result with its stored manifest. The scan
uses the manifest's algorithm, so a sha256 manifest is verified with
sha256 regardless of flags or config.

Exit code is 1 when the tree has drifted from its manifest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	stored, err := manifest.Load(manifestPathFor(root))
	if err != nil {
		return err
	}

	opts, closeCache, err := scanOptions(root)
	if err != nil {
		return err
	}
	defer closeCache()
	attachProgress(&opts)

	rep, _, err := diff.DiffLive(cmd.Context(), stored, root, opts)
	finishProgress(&opts)
	if err != nil {
		return err
	}

	if err := output.WriteDiff(os.Stdout, rep, outputFormat(), getVerbose()); err != nil {
		return err
	}
	if !rep.Clean() {
		return errDifferencesFound
	}
	return nil
}

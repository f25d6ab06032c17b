// Package main provides the entry point for the treesum CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
)

// Exit codes. Scripts branch on these, so they are part of the interface.
const (
	exitOK          = 0 // success, or no differences
	exitDifferences = 1 // diff or verify found differences
	exitError       = 2 // operational failure
	exitBadInput    = 3 // unreadable input or manifest format mismatch
)

func main() {
	os.Exit(run())
}

func run() int {
	err := Execute()
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errDifferencesFound) {
		// Not an error; the report has already been printed.
		return exitDifferences
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode classifies a non-nil command error.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errDifferencesFound):
		return exitDifferences
	case errors.Is(err, manifest.ErrFormat),
		errors.Is(err, diff.ErrAlgorithmMismatch),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission):
		return exitBadInput
	default:
		return exitError
	}
}

// Package output renders diff reports, sync results, and scan summaries
// for the CLI in pretty (styled), plain (greppable), and json forms.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
	"github.com/jamesainslie/treesum/pkg/treesum/sync"
)

// Format selects an output renderer.
type Format string

// Supported formats.
const (
	FormatPretty Format = "pretty"
	FormatPlain  Format = "plain"
	FormatJSON   Format = "json"
)

// marker returns the conventional one-character prefix for a class.
func marker(class diff.Class) string {
	switch class {
	case diff.ClassAdded:
		return "+"
	case diff.ClassRemoved:
		return "-"
	case diff.ClassChanged:
		return "~"
	default:
		return "="
	}
}

// WriteDiff renders a diff report. Unchanged records are shown only when
// verbose is set; the summary always is.
func WriteDiff(w io.Writer, rep *diff.Report, format Format, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatPlain:
		return writeDiffPlain(w, rep, verbose)
	default:
		return writeDiffPretty(w, rep, verbose)
	}
}

func writeDiffPlain(w io.Writer, rep *diff.Report, verbose bool) error {
	for _, rec := range rep.Records {
		if rec.Class == diff.ClassUnchanged && !verbose {
			continue
		}
		suffix := ""
		if rec.OldKind != "" {
			suffix = fmt.Sprintf(" (%s -> %s)", rec.OldKind, rec.Kind)
		}
		if _, err := fmt.Fprintf(w, "%s %s\t%s%s\n", marker(rec.Class), rec.Class, rec.Path, suffix); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "added %d, removed %d, changed %d, unchanged %d\n",
		rep.Summary.Added, rep.Summary.Removed, rep.Summary.Changed, rep.Summary.Unchanged)
	return err
}

func writeDiffPretty(w io.Writer, rep *diff.Report, verbose bool) error {
	if rep.Clean() {
		if _, err := fmt.Fprintln(w, titleStyle.Render("Trees are identical")); err != nil {
			return err
		}
		return nil
	}

	for _, rec := range rep.Records {
		var style = unchangedStyle
		switch rec.Class {
		case diff.ClassAdded:
			style = addedStyle
		case diff.ClassRemoved:
			style = removedStyle
		case diff.ClassChanged:
			style = changedStyle
		case diff.ClassUnchanged:
			if !verbose {
				continue
			}
		}
		line := fmt.Sprintf("%s %s", marker(rec.Class), rec.Path)
		if rec.OldKind != "" {
			line += mutedStyle.Render(fmt.Sprintf("  [%s -> %s]", rec.OldKind, rec.Kind))
		} else if rec.ShortCircuit && verbose {
			line += mutedStyle.Render("  [subtree skipped]")
		}
		if _, err := fmt.Fprintln(w, style.Render(line)); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("added %d · removed %d · changed %d · unchanged %d",
		rep.Summary.Added, rep.Summary.Removed, rep.Summary.Changed, rep.Summary.Unchanged)
	_, err := fmt.Fprintln(w, summaryBox.Render(summary))
	return err
}

// WriteSyncResult renders an update-copy result.
func WriteSyncResult(w io.Writer, res *sync.Result, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatPlain:
		return writeSyncPlain(w, res)
	default:
		return writeSyncPretty(w, res)
	}
}

func writeSyncPlain(w io.Writer, res *sync.Result) error {
	if _, err := fmt.Fprintf(w, "copied %d files (%d bytes), created %d dirs, deleted %d\n",
		res.FilesCopied, res.BytesCopied, res.DirsCreated, res.Deleted); err != nil {
		return err
	}
	for _, p := range res.SkippedDeletes {
		if _, err := fmt.Fprintf(w, "skipped delete\t%s\n", p); err != nil {
			return err
		}
	}
	for _, f := range res.Failures {
		if _, err := fmt.Fprintf(w, "failed %s\t%s\t%s\n", f.Op, f.Path, f.Error); err != nil {
			return err
		}
	}
	return nil
}

func writeSyncPretty(w io.Writer, res *sync.Result) error {
	line := fmt.Sprintf("Copied %d files (%s), created %d dirs, deleted %d entries",
		res.FilesCopied, humanize.IBytes(uint64(res.BytesCopied)), res.DirsCreated, res.Deleted)
	if _, err := fmt.Fprintln(w, titleStyle.Render(line)); err != nil {
		return err
	}
	for _, p := range res.SkippedDeletes {
		msg := fmt.Sprintf("  kept (delete disabled): %s", p)
		if _, err := fmt.Fprintln(w, mutedStyle.Render(msg)); err != nil {
			return err
		}
	}
	for _, f := range res.Failures {
		msg := fmt.Sprintf("  %s failed: %s: %s", f.Op, f.Path, f.Error)
		if _, err := fmt.Fprintln(w, removedStyle.Render(msg)); err != nil {
			return err
		}
	}
	return nil
}

// WriteScanSummary renders scan statistics (the manifest itself goes to
// its own file, not the terminal).
func WriteScanSummary(w io.Writer, res *scanner.Result, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, struct {
			RootDigest   string `json:"root_digest"`
			Algorithm    string `json:"algorithm"`
			DirsScanned  int64  `json:"dirs_scanned"`
			FilesScanned int64  `json:"files_scanned"`
			BytesHashed  int64  `json:"bytes_hashed"`
			CacheHits    int64  `json:"cache_hits"`
			ElapsedMS    int64  `json:"elapsed_ms"`

			Errors  []scanner.EntryError `json:"errors,omitempty"`
			Skipped []string             `json:"skipped,omitempty"`
		}{
			RootDigest:   string(res.Manifest.Root.Digest),
			Algorithm:    string(res.Manifest.Algorithm),
			DirsScanned:  res.DirsScanned,
			FilesScanned: res.FilesScanned,
			BytesHashed:  res.BytesHashed,
			CacheHits:    res.CacheHits,
			ElapsedMS:    res.Elapsed.Milliseconds(),
			Errors:       res.Errors,
			Skipped:      res.Skipped,
		})
	}

	line := fmt.Sprintf("%d dirs, %d files, %s hashed in %s",
		res.DirsScanned, res.FilesScanned, humanize.IBytes(uint64(res.BytesHashed)),
		res.Elapsed.Round(time.Millisecond))
	if res.CacheHits > 0 {
		line += fmt.Sprintf(" (%d from cache)", res.CacheHits)
	}
	if format == FormatPretty {
		line = mutedStyle.Render(line)
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", res.Manifest.Algorithm, res.Manifest.Root.Digest); err != nil {
		return err
	}
	for _, e := range res.Errors {
		if _, err := fmt.Fprintf(w, "error\t%s\t%s\n", e.Path, e.Error); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/sync"
)

func sampleReport() *diff.Report {
	rep := &diff.Report{Algorithm: hasher.SHA256}
	rep.Records = []diff.Record{
		{Path: ".", Class: diff.ClassChanged, Kind: hasher.KindDir},
		{Path: "a.txt", Class: diff.ClassUnchanged, Kind: hasher.KindFile},
		{Path: "b.txt", Class: diff.ClassChanged, Kind: hasher.KindFile},
		{Path: "new", Class: diff.ClassAdded, Kind: hasher.KindDir},
		{Path: "old.txt", Class: diff.ClassRemoved, Kind: hasher.KindFile},
		{Path: "stable", Class: diff.ClassUnchanged, Kind: hasher.KindDir, ShortCircuit: true},
	}
	rep.Summary = diff.Summary{Added: 1, Removed: 1, Changed: 2, Unchanged: 2}
	return rep
}

func TestWriteDiffPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, sampleReport(), FormatPlain, false))
	out := buf.String()

	assert.Contains(t, out, "~ changed\tb.txt")
	assert.Contains(t, out, "+ added\tnew")
	assert.Contains(t, out, "- removed\told.txt")
	assert.NotContains(t, out, "a.txt", "unchanged hidden without verbose")
	assert.Contains(t, out, "added 1, removed 1, changed 2, unchanged 2")
}

func TestWriteDiffPlainVerbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, sampleReport(), FormatPlain, true))

	assert.Contains(t, buf.String(), "= unchanged\ta.txt")
}

func TestWriteDiffPlainKindChange(t *testing.T) {
	rep := &diff.Report{}
	rep.Records = []diff.Record{
		{Path: "thing", Class: diff.ClassChanged, Kind: hasher.KindDir, OldKind: hasher.KindFile},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, rep, FormatPlain, false))
	assert.Contains(t, buf.String(), "(file -> dir)")
}

func TestWriteDiffJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, sampleReport(), FormatJSON, false))

	var decoded diff.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleReport().Summary, decoded.Summary)
	assert.Len(t, decoded.Records, 6)
}

func TestWriteDiffPrettyCleanReport(t *testing.T) {
	rep := &diff.Report{}
	rep.Records = []diff.Record{
		{Path: ".", Class: diff.ClassUnchanged, Kind: hasher.KindDir, ShortCircuit: true},
	}
	rep.Summary = diff.Summary{Unchanged: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, rep, FormatPretty, false))
	assert.Contains(t, buf.String(), "identical")
}

func TestWriteSyncResultPlain(t *testing.T) {
	res := &sync.Result{
		FilesCopied:    3,
		DirsCreated:    1,
		Deleted:        2,
		BytesCopied:    4096,
		SkippedDeletes: []string{"kept.txt"},
		Failures:       []sync.Failure{{Path: "bad", Op: "copy", Error: "permission denied"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSyncResult(&buf, res, FormatPlain))
	out := buf.String()

	assert.Contains(t, out, "copied 3 files (4096 bytes), created 1 dirs, deleted 2")
	assert.Contains(t, out, "skipped delete\tkept.txt")
	assert.Contains(t, out, "failed copy\tbad\tpermission denied")
}

func TestWriteSyncResultJSON(t *testing.T) {
	res := &sync.Result{FilesCopied: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteSyncResult(&buf, res, FormatJSON))

	var decoded sync.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.FilesCopied)
}

func TestMarkers(t *testing.T) {
	assert.Equal(t, "+", marker(diff.ClassAdded))
	assert.Equal(t, "-", marker(diff.ClassRemoved))
	assert.Equal(t, "~", marker(diff.ClassChanged))
	assert.Equal(t, "=", marker(diff.ClassUnchanged))
}

func TestWriteDiffPlainIsTabSeparated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, sampleReport(), FormatPlain, false))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.HasPrefix(line, "added ") {
			continue // summary line
		}
		assert.Contains(t, line, "\t")
	}
}

package diff

import "github.com/jamesainslie/treesum/pkg/treesum/hasher"

// Class is the classification of one path in a comparison.
type Class string

// Classifications. A rename is deliberately reported as a Removed old
// name plus an Added new name; rename detection is out of scope.
const (
	ClassAdded     Class = "added"     // present in B, absent in A
	ClassRemoved   Class = "removed"   // present in A, absent in B
	ClassChanged   Class = "changed"   // present in both, digests or kinds differ
	ClassUnchanged Class = "unchanged" // digests equal, subtree skipped
)

// Record is one path-qualified classification. Records appear in
// depth-first order: a directory before its children, children in name
// order, so consumers can apply them as a single forward pass.
type Record struct {
	// Path is slash-separated and relative to the roots; "." is the root.
	Path string `json:"path"`

	Class Class `json:"class"`

	// Kind is the entry's kind on the side that has it: B for added and
	// changed, A for removed.
	Kind hasher.Kind `json:"kind"`

	// OldKind is set on changed records caused by a kind mismatch (file
	// replaced by directory and so on). Such records are never recursed.
	OldKind hasher.Kind `json:"old_kind,omitempty"`

	// ShortCircuit marks directory classifications derived from a digest
	// match alone, without descending. Kept for verification: a correct
	// report never recurses under a short-circuited directory.
	ShortCircuit bool `json:"short_circuit,omitempty"`
}

// Summary counts records by classification.
type Summary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
}

// Report is the ordered result of comparing two manifests.
type Report struct {
	Algorithm hasher.Algorithm `json:"algorithm"`
	Records   []Record         `json:"records"`
	Summary   Summary          `json:"summary"`
}

// Clean reports whether the comparison found no differences.
func (r *Report) Clean() bool {
	return r.Summary.Added == 0 && r.Summary.Removed == 0 && r.Summary.Changed == 0
}

// Changes returns only the non-unchanged records.
func (r *Report) Changes() []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Class != ClassUnchanged {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Report) add(rec Record) {
	r.Records = append(r.Records, rec)
	switch rec.Class {
	case ClassAdded:
		r.Summary.Added++
	case ClassRemoved:
		r.Summary.Removed++
	case ClassChanged:
		r.Summary.Changed++
	case ClassUnchanged:
		r.Summary.Unchanged++
	}
}

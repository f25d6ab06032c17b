package scanner

import (
	"runtime"

	"github.com/jamesainslie/treesum/pkg/treesum/cache"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
)

// Options configures a scan.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Algorithm selects the digest algorithm.
	Algorithm hasher.Algorithm

	// Workers bounds how many subtrees are hashed concurrently.
	Workers int

	// Exclude contains glob patterns for entries to skip. Excluded
	// entries are absent from the manifest, so both sides of a diff must
	// use the same patterns for the comparison to be meaningful.
	Exclude []string

	// ManifestName is the manifest filename skipped at the root level
	// only, so the manifest never hashes itself. Defaults to
	// manifest.DefaultFilename.
	ManifestName string

	// Cache, when set, lets files with unchanged size and mtime reuse
	// their previous digest without re-reading content.
	Cache *cache.Cache

	// OnProgress, when set, receives throttled progress snapshots.
	OnProgress func(Progress)

	// FailFast aborts the scan on the first entry error instead of
	// recording it and continuing.
	FailFast bool
}

// DefaultOptions returns options with defaults applied.
func DefaultOptions() Options {
	opts := Options{}
	_ = opts.Validate()
	return opts
}

// Validate applies defaults for zero or invalid values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Algorithm == "" {
		o.Algorithm = hasher.SHA256
	}
	if o.Workers <= 0 {
		o.Workers = min(runtime.NumCPU(), 8)
	}
	if o.ManifestName == "" {
		o.ManifestName = manifest.DefaultFilename
	}
	return nil
}

// Progress is a snapshot of scan progress.
type Progress struct {
	DirsScanned  int64  `json:"dirs_scanned"`
	FilesScanned int64  `json:"files_scanned"`
	BytesHashed  int64  `json:"bytes_hashed"`
	CacheHits    int64  `json:"cache_hits"`
	CacheMisses  int64  `json:"cache_misses"`
	CurrentPath  string `json:"current_path"`
}

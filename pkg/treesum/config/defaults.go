package config

// Defaults applied when no config file or flag overrides them.
const (
	// DefaultAlgorithm is the digest algorithm for new manifests.
	DefaultAlgorithm = "sha256"

	// DefaultWorkers of 0 means auto (derived from CPU count).
	DefaultWorkers = 0

	// DefaultLogLevel for the CLI.
	DefaultLogLevel = "info"

	// DefaultWatchDebounceMS is how long the watcher waits for a change
	// burst to settle before rescanning.
	DefaultWatchDebounceMS = 2000
)

// DefaultExclusions are patterns most trees never want hashed.
var DefaultExclusions = []string{
	".git",
	".DS_Store",
}

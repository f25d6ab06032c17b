// Package logging wraps charmbracelet/log with per-component loggers for
// the treesum CLI. Logs go to stderr so command output stays pipeable.
//
//	logging.Init("debug")
//	logger := logging.Get("scanner")
//	logger.Info("scan started", "root", root)
package logging

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned for an unrecognized level string.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level string into a charm log level.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel, nil
	case "info", "":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

var (
	mu      sync.Mutex
	root    *log.Logger
	loggers = map[string]*log.Logger{}
)

// Init configures the root logger. Safe to call more than once; later
// calls change the level for all component loggers.
func Init(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		root = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: false,
		})
	}
	root.SetLevel(parsed)
	for _, l := range loggers {
		l.SetLevel(parsed)
	}
	return nil
}

// Get returns the logger for a component, creating it on first use.
// Components before Init log at the default info level.
func Get(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		root = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: false,
		})
	}
	if l, ok := loggers[component]; ok {
		return l
	}
	l := root.WithPrefix(component)
	loggers[component] = l
	return l
}

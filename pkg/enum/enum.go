// Package enum discovers trace files on disk and parses them.
package enum

import (
	"context"

	"github.com/praetorian-inc/capmatch/pkg/frida"
)

// Enumerator discovers traces from a source.
type Enumerator interface {
	// Enumerate yields each parsed trace with the path it was read from.
	// The callback may be invoked from several goroutines at once.
	Enumerate(ctx context.Context, callback func(path string, report *frida.Report) error) error
}

// Config for enumeration.
type Config struct {
	// Root is a trace file or a directory to walk.
	Root string

	// Extensions selects which files under a directory are traces.
	// Default ".jsonl".
	Extensions []string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// SkipInvalid logs and skips files that fail to parse instead of
	// stopping the walk.
	SkipInvalid bool

	// Workers is how many files are parsed in parallel. Default NumCPU.
	Workers int
}

package enum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/capmatch/pkg/frida"
)

// FilesystemEnumerator enumerates trace files from a file or directory.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".jsonl"}
	}
	if config.Workers < 1 {
		config.Workers = max(1, runtime.NumCPU())
	}
	return &FilesystemEnumerator{config: config}
}

// Paths walks the root and returns the trace files it would parse, in walk
// order. A root that is a file is returned as is, whatever its extension.
func (e *FilesystemEnumerator) Paths(ctx context.Context) ([]string, error) {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{e.config.Root}, nil
	}

	// Load .gitignore patterns if present
	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(e.config.Root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, _ = gitignore.CompileIgnoreFile(gitignorePath)
	}

	var paths []string
	err = filepath.WalkDir(e.config.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != e.config.Root && !e.config.IncludeHidden && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 && !e.config.FollowSymlinks {
			return nil
		}
		if !e.config.IncludeHidden && isHidden(d.Name()) {
			return nil
		}
		if !slices.Contains(e.config.Extensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}

		if e.config.MaxFileSize > 0 {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.Size() > e.config.MaxFileSize {
				slog.Debug("skipping large trace", "path", path, "size", info.Size())
				return nil
			}
		}

		if ignore != nil {
			relPath, err := filepath.Rel(e.config.Root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				return nil
			}
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Enumerate walks the root and yields each parsed trace.
// Phase 1: Walk directory tree and collect trace paths (fast, sequential).
// Phase 2: Parse traces and invoke callback in parallel.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback func(path string, report *frida.Report) error) error {
	files, err := e.Paths(ctx)
	if err != nil {
		return err
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	pathsCh := make(chan string, e.config.Workers*2)

	// Feed paths to readers
	g.Go(func() error {
		defer close(pathsCh)
		for _, f := range files {
			select {
			case pathsCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Parallel readers
	for range e.config.Workers {
		g.Go(func() error {
			for path := range pathsCh {
				if err := e.processFile(ctx, path, callback); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// If the caller's context was cancelled but all goroutines finished
	// before noticing, propagate the cancellation.
	return origCtx.Err()
}

// processFile parses a single trace and invokes the callback.
func (e *FilesystemEnumerator) processFile(ctx context.Context, path string, callback func(path string, report *frida.Report) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	report, err := frida.LoadReport(path)
	if err != nil {
		if e.config.SkipInvalid {
			slog.Warn("skipping invalid trace", "path", path, "error", err)
			return nil
		}
		return fmt.Errorf("loading trace: %w", err)
	}

	return callback(path, report)
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

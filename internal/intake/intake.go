// Package intake turns a directory of text files into the ordered document
// stream the index builder consumes. It owns every filesystem concern:
// traversal, hidden and non-regular file exclusion, extension filtering
// and reading. Files are read concurrently in small windows but always
// yielded in lexical path order, so a build over the same directory is
// reproducible.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"golang.org/x/sync/errgroup"
)

// Skip reasons reported through Options.OnSkip.
const (
	SkipHidden     = "hidden"
	SkipDirectory  = "directory"
	SkipNotRegular = "not_regular"
	SkipExtension  = "extension"
	SkipTooLarge   = "too_large"
	SkipUnreadable = "unreadable"
)

const defaultWindow = 64

type Options struct {
	// Extensions lists accepted suffixes, compared case-insensitively.
	// Empty accepts every file.
	Extensions    []string
	Recursive     bool
	IncludeHidden bool
	// Concurrency bounds parallel file reads; values < 1 mean 1.
	Concurrency int
	// MaxFileSize skips larger files; 0 disables the check.
	MaxFileSize int64
	// OnSkip, when set, may be called from several goroutines at once.
	OnSkip func(path, reason string)
}

// Collect walks dir and yields one Document per accepted file. The
// sequence stops at the first error, which is yielded with a zero
// Document.
func Collect(ctx context.Context, dir string, opts Options) iter.Seq2[indexer.Document, error] {
	return func(yield func(indexer.Document, error) bool) {
		c := &collector{opts: opts, logger: slog.Default().With("component", "intake")}
		paths, err := c.list(dir)
		if err != nil {
			yield(indexer.Document{}, err)
			return
		}
		c.logger.Debug("intake candidates listed", "dir", dir, "files", len(paths))
		for start := 0; start < len(paths); start += defaultWindow {
			end := min(start+defaultWindow, len(paths))
			docs, err := c.readWindow(ctx, paths[start:end])
			if err != nil {
				yield(indexer.Document{}, err)
				return
			}
			for _, doc := range docs {
				if doc.ID == "" {
					continue
				}
				if !yield(doc, nil) {
					return
				}
			}
		}
	}
}

type collector struct {
	opts   Options
	logger *slog.Logger
}

func (c *collector) skip(path, reason string) {
	c.logger.Debug("file skipped", "path", path, "reason", reason)
	if c.opts.OnSkip != nil {
		c.opts.OnSkip(path, reason)
	}
}

// list returns the candidate files under root in lexical order.
func (c *collector) list(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", root)
	}
	paths := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			c.skip(path, SkipUnreadable)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if !c.opts.IncludeHidden && isHidden(d.Name()) {
			c.skip(path, SkipHidden)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !c.opts.Recursive {
				c.skip(path, SkipDirectory)
				return filepath.SkipDir
			}
			return nil
		}
		if !c.accepts(d.Name()) {
			c.skip(path, SkipExtension)
			return nil
		}
		// Symlinks are followed; anything that does not resolve to a
		// regular file is left out.
		fi, err := os.Stat(path)
		if err != nil {
			c.skip(path, SkipUnreadable)
			return nil
		}
		if !fi.Mode().IsRegular() {
			c.skip(path, SkipNotRegular)
			return nil
		}
		if c.opts.MaxFileSize > 0 && fi.Size() > c.opts.MaxFileSize {
			c.skip(path, SkipTooLarge)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return paths, nil
}

func (c *collector) accepts(name string) bool {
	if len(c.opts.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range c.opts.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// readWindow reads paths concurrently. Slots of skipped files stay zero.
func (c *collector) readWindow(ctx context.Context, paths []string) ([]indexer.Document, error) {
	docs := make([]indexer.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.opts.Concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := c.read(path)
			if err != nil {
				if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
					c.skip(path, SkipUnreadable)
					return nil
				}
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *collector) read(path string) (indexer.Document, error) {
	canonical, err := Canonical(path)
	if err != nil {
		return indexer.Document{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return indexer.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return indexer.Document{
		ID: canonical,
		Fields: map[string]string{
			indexer.FieldFilename: filepath.Base(path),
			indexer.FieldFullPath: canonical,
		},
		Body: string(content),
	}, nil
}

// Canonical returns the absolute path of path with symlinks resolved.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return resolved, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

package walker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/pathglob"
)

const (
	// DefaultMaxFileSize bounds how much of a single file is ever held in memory
	DefaultMaxFileSize = 2 * 1024 * 1024

	// binarySniffBytes is how far into a file the null-byte heuristic looks
	binarySniffBytes = 8000
)

// DefaultSkipDirs are never descended into
var DefaultSkipDirs = []string{".git", ".hg", ".svn"}

// Options configures a Walker
type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	MaxFileSize  int64
	SkipDirs     []string

	// MultiRepo treats each top-level directory under root as a repository.
	MultiRepo bool
}

// Entry is a candidate file produced by Walk
type Entry struct {
	Path         string // absolute or root-joined OS path
	RelPath      string // slash-separated, relative to root
	RepositoryID string
	Size         int64
}

// WalkError records a single path the walker skipped. It is never fatal.
type WalkError struct {
	Path   string
	Reason models.SkipReason
	Err    error
}

func (e *WalkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skip %s (%s): %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("skip %s (%s)", e.Path, e.Reason)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// Skip converts the error into a report skip record
func (e *WalkError) Skip() models.Skip {
	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return models.Skip{Path: e.Path, Reason: e.Reason, Detail: detail}
}

// RootError means the root itself could not be enumerated
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("root %s unreadable: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error {
	return e.Err
}

// Walker enumerates candidate files under a root
type Walker struct {
	opts     Options
	scope    *pathglob.Scope
	skipDirs map[string]bool
}

// New creates a walker. Globs are compiled once.
func New(opts Options) (*Walker, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}

	scope, err := pathglob.NewScope(opts.IncludeGlobs, opts.ExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("walker globs: %w", err)
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	return &Walker{opts: opts, scope: scope, skipDirs: skip}, nil
}

// Walk lazily enumerates files under root. Each call starts from scratch,
// so the returned sequence can be ranged over more than once.
//
// Admitted files yield (entry, nil). Skipped files yield (entry, *WalkError).
// If root cannot be read the sequence yields a single *RootError.
func (w *Walker) Walk(root string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(Entry{}, &RootError{Root: root, Err: err})
			return
		}
		if !info.IsDir() {
			yield(Entry{}, &RootError{Root: root, Err: errors.New("not a directory")})
			return
		}
		if _, err := os.ReadDir(root); err != nil {
			yield(Entry{}, &RootError{Root: root, Err: err})
			return
		}

		rootID := filepath.Base(filepath.Clean(root))

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			if err != nil {
				if rel == "." {
					return err
				}
				if !yield(Entry{Path: path, RelPath: rel}, &WalkError{Path: rel, Reason: models.SkipUnreadable, Err: err}) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if rel != "." && w.skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !w.scope.Admits(rel) {
				return nil
			}

			entry := Entry{
				Path:         path,
				RelPath:      rel,
				RepositoryID: w.repositoryID(rootID, rel),
			}

			if walkErr := w.inspect(&entry, d); walkErr != nil {
				if !yield(entry, walkErr) {
					return filepath.SkipAll
				}
				return nil
			}

			if !yield(entry, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Walker) repositoryID(rootID, rel string) string {
	if !w.opts.MultiRepo {
		return rootID
	}
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i]
	}
	return rootID
}

// inspect applies the size and binary filters
func (w *Walker) inspect(entry *Entry, d fs.DirEntry) *WalkError {
	info, err := d.Info()
	if err != nil {
		return &WalkError{Path: entry.RelPath, Reason: models.SkipUnreadable, Err: err}
	}
	entry.Size = info.Size()

	if entry.Size > w.opts.MaxFileSize {
		return &WalkError{
			Path:   entry.RelPath,
			Reason: models.SkipTooLarge,
			Err:    fmt.Errorf("size %d exceeds %d", entry.Size, w.opts.MaxFileSize),
		}
	}

	binary, err := IsBinaryFile(entry.Path)
	if err != nil {
		return &WalkError{Path: entry.RelPath, Reason: models.SkipUnreadable, Err: err}
	}
	if binary {
		return &WalkError{Path: entry.RelPath, Reason: models.SkipBinary}
	}
	return nil
}

// IsBinaryFile reports whether the first bytes of the file contain a null byte
func IsBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, binarySniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return IsBinary(buf[:n]), nil
}

// IsBinary applies the null-byte heuristic to a prefix of content
func IsBinary(prefix []byte) bool {
	if len(prefix) > binarySniffBytes {
		prefix = prefix[:binarySniffBytes]
	}
	return bytes.IndexByte(prefix, 0) >= 0
}

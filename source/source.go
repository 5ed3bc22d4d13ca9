// Package source enumerates the work items producers load.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360/pixelflow/errors"
)

// DefaultBatchSize is how many directory entries Dir reads per call.
const DefaultBatchSize = 64

// Source hands out independent cursors over the same set of items.
type Source interface {
	Open(ctx context.Context) (Cursor, error)
}

// Cursor yields item identifiers one at a time. Next returns io.EOF when
// the cursor is exhausted.
type Cursor interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Filter reports whether a file name should be yielded.
type Filter func(name string) bool

// Extensions returns a Filter accepting the given extensions, case-insensitive.
// With no extensions every name is accepted.
func Extensions(exts ...string) Filter {
	if len(exts) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[strings.ToLower(filepath.Ext(name))]
		return ok
	}
}

// Dir lists the regular files of one directory, non-recursively.
type Dir struct {
	Path      string
	Filter    Filter
	BatchSize int
}

// NewDir creates a directory source. exts optionally restricts extensions.
func NewDir(path string, exts ...string) *Dir {
	return &Dir{
		Path:      path,
		Filter:    Extensions(exts...),
		BatchSize: DefaultBatchSize,
	}
}

// Open starts a fresh listing. A missing directory is a load failure.
func (d *Dir) Open(_ context.Context) (Cursor, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, errors.WrapInvalid(errors.Join(errors.ErrLoadFailed, err), "Dir", "Open", "open directory")
	}

	batch := d.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	filter := d.Filter
	if filter == nil {
		filter = Extensions()
	}

	return &dirCursor{dir: f, root: d.Path, filter: filter, batch: batch}, nil
}

type dirCursor struct {
	dir     *os.File
	root    string
	filter  Filter
	batch   int
	pending []os.DirEntry
	done    bool
}

func (c *dirCursor) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		for len(c.pending) > 0 {
			e := c.pending[0]
			c.pending = c.pending[1:]
			if e.Type().IsRegular() && c.filter(e.Name()) {
				return filepath.Join(c.root, e.Name()), nil
			}
		}

		if c.done {
			return "", io.EOF
		}

		entries, err := c.dir.ReadDir(c.batch)
		c.pending = entries
		if err == io.EOF {
			c.done = true
			continue
		}
		if err != nil {
			return "", errors.WrapTransient(err, "Dir", "Next", "read directory")
		}
	}
}

func (c *dirCursor) Close() error {
	return c.dir.Close()
}

// Static yields a fixed list of identifiers.
type Static []string

// Open returns a cursor over a copy of the list.
func (s Static) Open(_ context.Context) (Cursor, error) {
	items := make([]string, len(s))
	copy(items, s)
	return &staticCursor{items: items}, nil
}

type staticCursor struct {
	items []string
}

func (c *staticCursor) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.items) == 0 {
		return "", io.EOF
	}
	item := c.items[0]
	c.items = c.items[1:]
	return item, nil
}

func (c *staticCursor) Close() error { return nil }

// Drain reads every remaining identifier from a fresh cursor of src.
func Drain(ctx context.Context, src Source) ([]string, error) {
	cur, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []string
	for {
		item, err := cur.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}

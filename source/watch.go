package source

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c360/pixelflow/errors"
)

// DefaultSettle is how long a new file must stay quiet before it is yielded.
const DefaultSettle = 200 * time.Millisecond

// Watch yields the files already in a directory and then every file created
// there afterwards, until the context passed to Next ends.
type Watch struct {
	Dir    *Dir
	Settle time.Duration
	Logger *slog.Logger
}

// NewWatch creates a watching source over path.
func NewWatch(path string, logger *slog.Logger, exts ...string) *Watch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watch{
		Dir:    NewDir(path, exts...),
		Settle: DefaultSettle,
		Logger: logger,
	}
}

// Open lists the directory and subscribes to changes. The subscription is
// established before the listing so no file is missed.
func (w *Watch) Open(ctx context.Context) (Cursor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapFatal(err, "Watch", "Open", "create watcher")
	}
	if err := watcher.Add(w.Dir.Path); err != nil {
		_ = watcher.Close()
		return nil, errors.WrapInvalid(errors.Join(errors.ErrLoadFailed, err), "Watch", "Open", "watch directory")
	}

	initial, err := w.Dir.Open(ctx)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	c := &watchCursor{
		initial: initial,
		watcher: watcher,
		filter:  w.Dir.Filter,
		settle:  settle,
		logger:  w.Logger.With("component", "watch", "dir", w.Dir.Path),
		seen:    make(map[string]struct{}),
		quiet:   make(map[string]time.Time),
	}
	if c.filter == nil {
		c.filter = Extensions()
	}
	return c, nil
}

type watchCursor struct {
	initial Cursor
	watcher *fsnotify.Watcher
	filter  Filter
	settle  time.Duration
	logger  *slog.Logger

	// seen holds every path already yielded
	seen  map[string]struct{}
	quiet map[string]time.Time
	ready []string

	closeOnce sync.Once
}

func (c *watchCursor) Next(ctx context.Context) (string, error) {
	if c.initial != nil {
		item, err := c.initial.Next(ctx)
		if err == nil {
			c.seen[item] = struct{}{}
			return item, nil
		}
		if err != io.EOF {
			return "", err
		}
		_ = c.initial.Close()
		c.initial = nil
	}

	ticker := time.NewTicker(c.settle / 2)
	defer ticker.Stop()

	for {
		if len(c.ready) > 0 {
			item := c.ready[0]
			c.ready = c.ready[1:]
			return item, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case ev, ok := <-c.watcher.Events:
			if !ok {
				return "", io.EOF
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, done := c.seen[ev.Name]; done || !c.filter(filepath.Base(ev.Name)) {
				continue
			}
			c.quiet[ev.Name] = time.Now()

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return "", io.EOF
			}
			c.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for name, last := range c.quiet {
				if now.Sub(last) >= c.settle {
					delete(c.quiet, name)
					c.seen[name] = struct{}{}
					c.ready = append(c.ready, name)
				}
			}
		}
	}
}

func (c *watchCursor) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.initial != nil {
			_ = c.initial.Close()
		}
		err = c.watcher.Close()
	})
	return err
}

package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/workspace/memory"
)

// Config holds tailer configuration options.
type Config struct {
	Path        string
	DebounceDur time.Duration
}

// DefaultConfig returns defaults for tailing path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 20 * time.Millisecond,
	}
}

// Tailer follows a feed file and applies each complete line to a workspace.
// The file may not exist yet; it is read from the start once created, and
// from the start again after truncation or replacement.
type Tailer struct {
	fsWatcher *fsnotify.Watcher
	cfg       Config
	ws        *memory.Workspace
	done      chan struct{}
	exited    chan struct{}

	// Owned by the loop goroutine after Start.
	offset  int64
	partial []byte
	line    int

	applied atomic.Int64
	failed  atomic.Int64
}

// NewTailer creates a tailer for cfg.Path.
func NewTailer(cfg Config, ws *memory.Workspace) (*Tailer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: feed path is required", ErrInvalidRecord)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Tailer{
		fsWatcher: fsw,
		cfg:       cfg,
		ws:        ws,
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}, nil
}

// Start applies what the file already holds, then follows it.
func (t *Tailer) Start() error {
	dir := filepath.Dir(t.cfg.Path)
	if err := t.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	t.readNew()
	go t.loop()
	return nil
}

// Stop terminates the tailer and releases resources.
func (t *Tailer) Stop() error {
	close(t.done)
	err := t.fsWatcher.Close()
	<-t.exited
	return err
}

// Applied returns the number of lines applied successfully.
func (t *Tailer) Applied() int64 { return t.applied.Load() }

// Failed returns the number of lines that could not be decoded or applied.
func (t *Tailer) Failed() int64 { return t.failed.Load() }

// Tail follows path until ctx is cancelled.
func Tail(ctx context.Context, path string, ws *memory.Workspace) error {
	t, err := NewTailer(DefaultConfig(path), ws)
	if err != nil {
		return err
	}
	if err := t.Start(); err != nil {
		_ = t.fsWatcher.Close()
		return err
	}
	<-ctx.Done()
	return t.Stop()
}

func (t *Tailer) loop() {
	defer close(t.exited)

	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(t.cfg.Path) {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// A replacement file starts over.
				t.reset()
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(t.cfg.DebounceDur)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(t.cfg.DebounceDur)
			}
			pending = true

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				t.readNew()
				pending = false
			}

		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatFeed, "watch error", err, "path", t.cfg.Path)

		case <-t.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (t *Tailer) reset() {
	t.offset = 0
	t.partial = nil
	t.line = 0
}

// readNew applies every complete line written since the last read.
func (t *Tailer) readNew() {
	f, err := os.Open(t.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		log.ErrorErr(log.CatFeed, "open failed", err, "path", t.cfg.Path)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		log.ErrorErr(log.CatFeed, "stat failed", err, "path", t.cfg.Path)
		return
	}
	if info.Size() < t.offset {
		log.Info(log.CatFeed, "feed truncated", "path", t.cfg.Path, "size", info.Size(), "offset", t.offset)
		t.reset()
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		log.ErrorErr(log.CatFeed, "seek failed", err, "path", t.cfg.Path)
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		log.ErrorErr(log.CatFeed, "read failed", err, "path", t.cfg.Path)
		return
	}
	t.offset += int64(len(data))

	buf := append(t.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		t.applyLine(buf[:i])
		buf = buf[i+1:]
	}
	t.partial = bytes.Clone(buf)
}

func (t *Tailer) applyLine(raw []byte) {
	t.line++
	line := bytes.TrimSpace(raw)
	if len(line) == 0 || line[0] == '#' {
		return
	}

	rec, err := DecodeLine(line)
	if err == nil {
		err = Apply(t.ws, rec)
	}
	if err != nil {
		t.failed.Add(1)
		log.ErrorErr(log.CatFeed, "skipping line", err, "path", t.cfg.Path, "line", t.line)
		return
	}
	t.applied.Add(1)
	log.Debug(log.CatFeed, "applied", "op", rec.Op, "handle", rec.Handle, "line", t.line)
}

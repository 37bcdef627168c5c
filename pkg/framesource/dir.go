package framesource

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for DecodeConfig
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/teslashibe/go-docscan/internal/log"
)

// DirOpts has options for a spool-directory source.
type DirOpts struct {
	// Remove deletes frame files after they are read.
	Remove bool

	// MinInterval drops frames arriving faster than this. Zero keeps all.
	MinInterval time.Duration
}

// Dir watches a spool directory for JPEG frames written by an external
// grabber (ffmpeg, gstreamer, a copy script). Files still being written
// fail the JPEG header check and are skipped; the grabber's next write
// event picks them up.
type Dir struct {
	dir     string
	opts    DirOpts
	frames  chan Frame
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// NewDir creates a source that emits frames from files appearing in dir.
func NewDir(dir string, opts DirOpts) (*Dir, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %w", err)
	}

	d := &Dir{
		dir:     dir,
		opts:    opts,
		frames:  make(chan Frame, 1),
		watcher: watcher,
	}

	go d.watch()

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching spool dir %s: %w", dir, err)
	}

	return d, nil
}

// Frames implements Source.
func (d *Dir) Frames() <-chan Frame {
	return d.frames
}

func (d *Dir) watch() {
	defer close(d.frames)

	var last time.Time
	for {
		select {
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := strings.ToLower(ev.Name)
			if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") {
				continue
			}

			now := time.Now()
			if d.opts.MinInterval > 0 && now.Sub(last) < d.opts.MinInterval {
				d.discard(ev.Name)
				continue
			}

			frame, err := d.readFrame(ev.Name, now)
			if err != nil {
				log.Debug("spool frame skipped", "file", ev.Name, "error", err)
				continue
			}
			d.discard(ev.Name)

			select {
			case d.frames <- frame:
				last = now
			default:
				// Consumer busy: drop rather than queue stale frames
				log.Debug("spool frame dropped, consumer busy", "file", ev.Name)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("spool watcher error", "dir", d.dir, "error", err)
		}
	}
}

func (d *Dir) readFrame(path string, at time.Time) (Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame file: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Likely partially written; the next write event retries
		return Frame{}, fmt.Errorf("decode jpeg header: %w", err)
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	return Frame{
		Seq:    seq,
		JPEG:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
		At:     at,
	}, nil
}

func (d *Dir) discard(path string) {
	if !d.opts.Remove {
		return
	}
	if err := os.Remove(path); err != nil {
		log.Debug("removing spool file", "file", path, "error", err)
	}
}

// Close implements Source.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.watcher.Close()
}

// Ensure Dir implements Source.
var _ Source = (*Dir)(nil)

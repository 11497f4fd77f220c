package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/zsiec/moqtcore/internal/track"
)

// Watcher hot-reloads a track-set file (SPEC_FULL.md "Config hot-reload"):
// each change to the file produces a fresh immutable track.Set, handed to
// the caller via the Sets channel. It never mutates a track.Set in place
// and does not itself touch a running engine.
type Watcher struct {
	path string
	log  *slog.Logger
	fsw  *fsnotify.Watcher
	Sets chan track.Set
}

// NewWatcher starts watching path's containing directory (fsnotify
// watches directories, not bare files, so the watch survives editors
// that replace the file via rename-on-save).
func NewWatcher(path string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path: path,
		log:  log.With("component", "config-watcher", "path", path),
		fsw:  fsw,
		Sets: make(chan track.Set, 1),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			set, err := Load(w.path)
			if err != nil {
				w.log.Warn("reload failed, keeping previous track set", "error", err)
				continue
			}
			select {
			case w.Sets <- set:
			default:
				// drain the stale pending set so the latest always wins
				select {
				case <-w.Sets:
				default:
				}
				w.Sets <- set
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

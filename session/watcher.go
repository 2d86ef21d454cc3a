package session

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a role-timeout JSON file and delivers the parsed
// result as a config-change notification. A monitor wired to OnChange
// applies the new policy as an immediate reset via Reconfigure.
//
// Invalid or half-written files are skipped and reported through
// OnError; the last good config stays in effect.
type Watcher struct {
	path     string
	onChange func(RoleTimeouts)
	onError  func(error)

	fw        *fsnotify.Watcher
	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher loads path once, then watches it for changes. onChange
// receives every successfully parsed config, including the initial load.
// onError may be nil.
func NewWatcher(path string, onChange func(RoleTimeouts), onError func(error)) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("session: watcher requires an onChange callback")
	}

	initial, err := LoadRoleTimeouts(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("session: fsnotify init: %w", err)
	}
	// Watch the directory, not the file: editors and config pushers
	// typically replace the file via rename, which drops a file-level
	// watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("session: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		onError:  onError,
		fw:       fw,
		done:     make(chan struct{}),
	}

	onChange(initial)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timeouts, err := LoadRoleTimeouts(w.path)
			if err != nil {
				w.reportError(err)
				continue
			}
			w.onChange(timeouts)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.reportError(err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}

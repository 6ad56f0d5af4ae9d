package feature

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch reloads the features file whenever it is written or replaced.
// Close stops watching.
func (p *Provider) Watch() error {
	if p.path == "" {
		return errors.New("watch features: provider has no file")
	}
	if p.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors replace files on save, so watch the directory.
	if err := fw.Add(filepath.Dir(p.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	w := &watcher{fs: fw, done: make(chan struct{})}
	p.watcher = w
	go p.watch(w)
	return nil
}

// Close stops the file watcher, if running.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.watcher.done)
	err := p.watcher.fs.Close()
	p.watcher = nil
	return err
}

func (p *Provider) watch(w *watcher) {
	target := filepath.Clean(p.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(reloadDebounce, p.reloadAndLog)
			} else {
				debounce.Reset(reloadDebounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			p.logger.Error("features watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (p *Provider) reloadAndLog() {
	if err := p.Reload(); err != nil {
		p.logger.Warn("features reload failed, keeping previous set", "path", p.path, "error", err)
	}
}

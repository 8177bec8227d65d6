// Package watch implements `dumc -watch file.dm`: recompile on every
// save. The teacher's go.mod already carries fsnotify but never calls
// it from any source file; there is no teacher call site to ground
// this on, so Run follows fsnotify's own documented idiom (a single
// Watcher, draining its Events and Errors channels in one loop) rather
// than inventing a bespoke pattern.
package watch

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CompileFunc runs one compile-and-report pass over path. Run calls it
// once immediately and again after every subsequent write.
type CompileFunc func(path string) error

// debounce absorbs the burst of events many editors emit for a single
// logical save (a temp-file write followed by a rename).
const debounce = 100 * time.Millisecond

// Run watches path's containing directory and calls compile whenever
// path itself changes, until the watcher's channels close. Watcher
// errors are logged and watching continues.
func Run(path string, compile CompileFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	dir := dirOf(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	runOnce := func() {
		if err := compile(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	runOnce()

	var timer *time.Timer
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != path {
				continue
			}
			if !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, runOnce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch blocks watching the config file and invokes onChange for every
// write until ctx is cancelled. The server does not hot-reload; the
// callback is the place to tell operators a restart is needed.
func Watch(ctx context.Context, file string, onChange func(name string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(file); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) {
				onChange(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

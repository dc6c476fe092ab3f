package supervisor

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
)

// WatchConfig reloads the configuration file when it changes so enable
// flags flipped between sweeps take effect on the next sweep. A rewrite
// that fails to load or validate is logged and ignored; the previous
// snapshot stays active. The watcher stops when the context is cancelled.
func WatchConfig(ctx context.Context, path string, store *config.Store, logger logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError("failed to create config watcher", err)
	}

	// Watch the directory, not the file: editors and config management
	// tools replace files, which drops a watch registered on the file
	// itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errors.NewIOError("failed to watch config directory", err).WithContext("directory", dir)
	}

	base := filepath.Base(path)
	logger.Infof("Watching configuration file for changes: %s", path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case err := <-watcher.Errors:
				logger.Warnf("Config watcher error: %v", err)

			case event := <-watcher.Events:
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				reloadConfig(path, store, logger)
			}
		}
	}()

	return nil
}

func reloadConfig(path string, store *config.Store, logger logging.Logger) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		logger.Warnf("Ignoring config rewrite, load failed: %v", err)
		return
	}
	if err := config.Validate(cfg); err != nil {
		logger.Warnf("Ignoring config rewrite, validation failed: %v", err)
		return
	}

	// A reload never clobbers a secret generated at startup.
	if cfg.Supervisor.AuthSecret == "" {
		cfg.Supervisor.AuthSecret = store.Snapshot().Supervisor.AuthSecret
	}

	store.Replace(cfg)
	logger.Infof("Configuration reloaded from %s", path)
}

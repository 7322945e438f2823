package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	override func(*Config)
}

// WithOverride applies fn to every reloaded Config before it is validated.
func WithOverride(fn func(*Config)) WatchOption {
	return func(o *watchOptions) { o.override = fn }
}

// Watch monitors path and calls onChange with the reloaded Config each time
// the file is written. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and dropped; onChange
// is not called and the previous config stays active.
func Watch(ctx context.Context, logger *zap.Logger, path string, onChange func(Config), opts ...WatchOption) error {
	var wo watchOptions
	for _, opt := range opts {
		opt(&wo)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	logger.Info("config_watch", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save through rename, so Create counts too.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := reload(path, wo.override)
			if err != nil {
				logger.Warn("config_reload_failed", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Info("config_reloaded", zap.String("path", path))
			onChange(cfg)

			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config_watch_error", zap.Error(err))
		}
	}
}

func reload(path string, override func(*Config)) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

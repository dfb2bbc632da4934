package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchSalons loads salons.yaml, hands it to onUpdate, then keeps polling the file and hands over
// every new revision that passes validation. Invalid revisions are logged and skipped so the last
// good catalogue stays in effect.
func WatchSalons(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*SalonsConfig)) error {
	if path == "" {
		path = "configs/salons.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg, err := LoadSalonsConfig(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	logger.Info().Str("path", path).Stringer("config", cfg).Msg("salons config loaded")
	onUpdate(cfg)

	last := revisionOf(info)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			info, err := os.Stat(path)
			if err != nil || revisionOf(info) == last {
				continue
			}
			cfg, err := LoadSalonsConfig(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("salons config rejected, keeping previous revision")
				last = revisionOf(info)
				continue
			}
			last = revisionOf(info)
			logger.Info().Str("path", path).Stringer("config", cfg).Msg("salons config reloaded")
			onUpdate(cfg)
		}
	}()

	return nil
}

type revision struct {
	modTime time.Time
	size    int64
}

func revisionOf(info os.FileInfo) revision {
	return revision{modTime: info.ModTime(), size: info.Size()}
}

package ruleloader

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fingerprintd/internal/detect"
	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

// Watch reloads cfg's rule library whenever its cache file changes on disk
// and swaps the result into the global detector. It blocks until ctx is
// canceled. Only remote origins have a cache file to watch; embedded and
// local-file origins return immediately. maxBodyBytes is forwarded to the
// rebuilt detector's HTML body truncation cap (<= 0 uses its default).
func Watch(ctx context.Context, cfg Config, ignore *ignorelist.List, maxBodyBytes int, log *zap.Logger) error {
	if cfg.Origin.Kind != OriginRemoteOfficial && cfg.Origin.Kind != OriginRemoteCustom {
		<-ctx.Done()
		return ctx.Err()
	}

	paths, err := newCachePaths(cfg.CacheDir, cfg.Origin.resolveURL())
	if err != nil {
		return err
	}
	if err := paths.ensureDir(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(paths.cacheDir); err != nil {
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
			if event.Name != paths.rulesFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadFromCache(paths.rulesFile, ignore, maxBodyBytes, log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("rule cache watch error", zap.Error(err))
		}
	}
}

func reloadFromCache(path string, ignore *ignorelist.List, maxBodyBytes int, log *zap.Logger) {
	data, err := readBoundedFile(path)
	if err != nil {
		log.Warn("reload rule cache: read failed", zap.Error(err))
		return
	}
	lib, stats, err := rulelib.ParseWappalyzerJSON(data)
	if err != nil {
		log.Warn("reload rule cache: parse failed", zap.Error(err))
		return
	}
	compiled := rulelib.CompileLibrary(lib)
	detect.Swap(detect.NewTechDetector(compiled, ignore, maxBodyBytes))
	log.Info("rule library reloaded from cache",
		zap.Int("technologies", stats.TotalTechs),
		zap.Int("invalid_patterns", stats.InvalidPatterns),
	)
}

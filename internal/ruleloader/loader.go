package ruleloader

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

//go:embed embedded/rules.json
var embeddedFS embed.FS

const embeddedRulesPath = "embedded/rules.json"

// Config carries the loader's external tunables: cache directory, whether
// to re-check a remote origin's ETag on every load, request timeout, and
// retry policy.
type Config struct {
	Origin      Origin
	CacheDir    string
	CheckUpdate bool
	Timeout     time.Duration
	Retry       RetryPolicy
}

// Load resolves cfg.Origin into a compiled rule library, consulting and
// maintaining the ETag-keyed cache for remote origins.
func Load(ctx context.Context, cfg Config) (*rulelib.CompiledRuleLibrary, ConvertStats, error) {
	var data []byte
	var err error

	switch cfg.Origin.Kind {
	case OriginEmbedded:
		data, err = embeddedFS.ReadFile(embeddedRulesPath)
		if err != nil {
			return nil, ConvertStats{}, fmt.Errorf("read embedded rules: %w", err)
		}

	case OriginLocalFile:
		data, err = readBoundedFile(cfg.Origin.Path)
		if err != nil {
			return nil, ConvertStats{}, fmt.Errorf("read local rule file: %w", err)
		}

	case OriginRemoteOfficial, OriginRemoteCustom:
		data, err = loadRemote(ctx, cfg)
		if err != nil {
			return nil, ConvertStats{}, err
		}

	default:
		return nil, ConvertStats{}, fmt.Errorf("unknown rule origin kind %d", cfg.Origin.Kind)
	}

	lib, stats, err := rulelib.ParseWappalyzerJSON(data)
	if err != nil {
		return nil, stats, fmt.Errorf("parse rule library (%s): %w", cfg.Origin, err)
	}
	return rulelib.CompileLibrary(lib), stats, nil
}

// ConvertStats re-exports rulelib's conversion accounting so callers of
// this package never need to import rulelib directly just to read it.
type ConvertStats = rulelib.ConvertStats

func loadRemote(ctx context.Context, cfg Config) ([]byte, error) {
	url := cfg.Origin.resolveURL()
	paths, err := newCachePaths(cfg.CacheDir, url)
	if err != nil {
		return nil, err
	}
	if err := paths.ensureDir(); err != nil {
		return nil, fmt.Errorf("prepare cache dir: %w", err)
	}

	store, err := loadETagStore(paths.etagFile)
	if err != nil {
		return nil, err
	}
	rec, found := store.find(paths.sourceName)

	client := &http.Client{Timeout: cfg.Timeout}

	if found && !cfg.CheckUpdate {
		if data, err := readBoundedFile(paths.rulesFile); err == nil {
			return data, nil
		}
	}

	remoteETag, _ := fetchRemoteETag(ctx, client, url, cfg.Retry)
	if remoteETag != "" && shouldUseLocalFile(rec, found, remoteETag) {
		data, err := readBoundedFile(paths.rulesFile)
		if err == nil {
			return data, nil
		}
	}

	body, err := fetchRemoteBody(ctx, client, url, cfg.Retry)
	if err != nil {
		if found {
			if data, cacheErr := readBoundedFile(paths.rulesFile); cacheErr == nil {
				return data, nil
			}
		}
		return nil, fmt.Errorf("fetch remote rules from %s: %w", url, err)
	}

	if err := os.WriteFile(paths.rulesFile, body, 0o600); err != nil {
		return nil, fmt.Errorf("write rule cache file: %w", err)
	}
	store.upsert(ETagRecord{
		SourceName:    paths.sourceName,
		ETag:          remoteETag,
		LocalFilePath: paths.rulesFile,
		LastUpdate:    time.Now().Unix(),
	})
	if err := saveETagStore(paths.etagFile, store); err != nil {
		return nil, fmt.Errorf("persist etag store: %w", err)
	}

	return body, nil
}

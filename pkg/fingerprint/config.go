package fingerprint

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/fingerprintd/internal/ruleloader"
)

// OriginKind selects where Init loads its rule library from.
type OriginKind string

const (
	OriginEmbedded       OriginKind = "embedded"
	OriginLocalFile      OriginKind = "local"
	OriginRemoteOfficial OriginKind = "remote-official"
	OriginRemoteCustom   OriginKind = "remote-custom"
)

// Config controls Init. A zero Config loads the embedded rule snapshot.
type Config struct {
	Origin      OriginKind
	LocalPath   string // required when Origin == OriginLocalFile
	CustomURL   string // required when Origin == OriginRemoteCustom
	CacheDir    string // default: OS user cache dir + /fingerprintd
	CheckUpdate bool
	Timeout     time.Duration
	RetryMax    int
	RetryWait   time.Duration

	// IgnoreListPath, if set, points to a TOML file naming technologies
	// and categories to exclude from every Result.
	IgnoreListPath string

	// MaxBodySizeKB bounds how much of a response body Detect scans,
	// truncated at a UTF-8 boundary before the HTML/DOM passes run.
	// Zero uses the detector's 2 MB default.
	MaxBodySizeKB int
}

func (c Config) maxBodyBytes() int {
	if c.MaxBodySizeKB <= 0 {
		return 0
	}
	return c.MaxBodySizeKB * 1024
}

func (c Config) toLoaderConfig() (ruleloader.Config, error) {
	origin, err := c.toOrigin()
	if err != nil {
		return ruleloader.Config{}, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryMax := c.RetryMax
	if retryMax <= 0 {
		retryMax = 1
	}

	return ruleloader.Config{
		Origin:      origin,
		CacheDir:    c.CacheDir,
		CheckUpdate: c.CheckUpdate,
		Timeout:     timeout,
		Retry: ruleloader.RetryPolicy{
			MaxAttempts: retryMax,
			Backoff:     c.RetryWait,
		},
	}, nil
}

func (c Config) toOrigin() (ruleloader.Origin, error) {
	switch c.Origin {
	case "", OriginEmbedded:
		return ruleloader.Origin{Kind: ruleloader.OriginEmbedded}, nil
	case OriginLocalFile:
		if c.LocalPath == "" {
			return ruleloader.Origin{}, fmt.Errorf("%w: local origin requires LocalPath", ErrInvalidOrigin)
		}
		return ruleloader.Origin{Kind: ruleloader.OriginLocalFile, Path: c.LocalPath}, nil
	case OriginRemoteOfficial:
		return ruleloader.Origin{Kind: ruleloader.OriginRemoteOfficial}, nil
	case OriginRemoteCustom:
		if c.CustomURL == "" {
			return ruleloader.Origin{}, fmt.Errorf("%w: remote-custom origin requires CustomURL", ErrInvalidOrigin)
		}
		return ruleloader.Origin{Kind: ruleloader.OriginRemoteCustom, URL: c.CustomURL}, nil
	default:
		return ruleloader.Origin{}, fmt.Errorf("%w: unknown origin kind %q", ErrInvalidOrigin, c.Origin)
	}
}

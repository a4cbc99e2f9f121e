package rawcache

import (
	"fmt"
	"strings"
	"time"
)

// Package rawcache keeps raw upstream listing pages so a parse regression can
// be replayed against the exact HTML that produced it.

// Cache stores raw page bodies keyed by round and page number.
type Cache interface {
	Close() error
	SavePage(round, page int, body []byte) error
	// LoadPage returns the cached body, or nil when absent or expired.
	LoadPage(round, page int) ([]byte, error)
}

// Options controls retention characteristics for concrete cache implementations.
type Options struct {
	PageTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultPageTTL         = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewCache creates the configured snapshot backend.
func NewCache(typ, path string, opts Options) (Cache, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopCache{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt cache requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported cache type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.PageTTL <= 0 {
		opts.PageTTL = defaultPageTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopCache struct{}

func (noopCache) Close() error                    { return nil }
func (noopCache) SavePage(int, int, []byte) error { return nil }
func (noopCache) LoadPage(int, int) ([]byte, error) {
	return nil, nil
}

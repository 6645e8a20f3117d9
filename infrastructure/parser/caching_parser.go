package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/internal/fileuri"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// cachingParserConfig holds configuration for the CachingParser.
type cachingParserConfig struct {
	logger          *slog.Logger
	expiration      time.Duration
	cleanupInterval time.Duration
}

func defaultCachingParserConfig() cachingParserConfig {
	return cachingParserConfig{
		logger:          slog.Default(),
		expiration:      DefaultExpiration,
		cleanupInterval: DefaultCleanupInterval,
	}
}

// CachingParserOption configures a CachingParser instance.
type CachingParserOption func(*cachingParserConfig)

// WithExpiration sets how long a parsed document is kept.
func WithExpiration(d time.Duration) CachingParserOption {
	return func(c *cachingParserConfig) {
		c.expiration = d
	}
}

// WithCleanupInterval sets how often expired documents are evicted.
func WithCleanupInterval(d time.Duration) CachingParserOption {
	return func(c *cachingParserConfig) {
		c.cleanupInterval = d
	}
}

// WithCacheLogger sets the logger used to report cache hits.
func WithCacheLogger(logger *slog.Logger) CachingParserOption {
	return func(c *cachingParserConfig) {
		c.logger = logger
	}
}

// CachingParser keeps parsed documents keyed by URI, modification time and
// size, so unloading and reloading an unchanged bundle skips the parse.
// Blank node labels produced by TurtleParser are given a fresh scope on every
// hit.
type CachingParser struct {
	next   ports.BundleParser
	cache  *gocache.Cache
	config cachingParserConfig
}

var _ ports.BundleParser = (*CachingParser)(nil)

// NewCachingParser wraps next with a parse cache.
func NewCachingParser(next ports.BundleParser, opts ...CachingParserOption) *CachingParser {
	cfg := defaultCachingParserConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CachingParser{
		next:   next,
		cache:  gocache.New(cfg.expiration, cfg.cleanupInterval),
		config: cfg,
	}
}

// Parse returns the cached statements of fileURI or parses it.
func (p *CachingParser) Parse(ctx context.Context, fileURI string) ([]entities.Triple, error) {
	key, ok := cacheKey(fileURI)
	if !ok {
		return p.next.Parse(ctx, fileURI)
	}

	if v, found := p.cache.Get(key); found {
		if triples, ok := v.([]entities.Triple); ok {
			p.config.logger.Debug("parse cache hit", "file", fileURI)
			return rescope(triples, uuid.NewString()), nil
		}
	}

	triples, err := p.next.Parse(ctx, fileURI)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, triples, gocache.DefaultExpiration)
	return triples, nil
}

// Flush drops every cached document.
func (p *CachingParser) Flush() {
	p.cache.Flush()
}

func cacheKey(fileURI string) (string, bool) {
	path, _, ok := fileuri.Parse(fileURI)
	if !ok {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s@%d:%d", fileURI, info.ModTime().UnixNano(), info.Size()), true
}

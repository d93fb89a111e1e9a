package koreclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// Fetcher downloads the raw API description document. It carries the
// request shaping of the execution mode (bearer token or proxy rewrite).
type Fetcher func(ctx context.Context) ([]byte, error)

// CatalogueURL returns the well-known location of the API description
// document for an API origin.
func CatalogueURL(origin string) string {
	return strings.TrimSuffix(origin, "/") + constants.CataloguePath
}

// SpecLoader loads the API description document once and keeps it for the
// lifetime of the process. It never expires the document: a change to the
// API's description is only picked up after a restart or Reset.
type SpecLoader struct {
	url         string
	cacheConfig *kore.CacheConfig
	logger      kore.Logger

	mutex     sync.Mutex
	cache     kore.Cache
	catalogue *kore.Catalogue
	fetches   int
}

// SpecLoaderOption configures a SpecLoader.
type SpecLoaderOption func(*SpecLoader)

// WithCache stores the document in cache.
func WithCache(cache kore.Cache) SpecLoaderOption {
	return func(l *SpecLoader) {
		l.cache = cache
	}
}

// WithCacheConfig builds the cache backend on first Load. A nil config
// keeps the memory default.
func WithCacheConfig(config *kore.CacheConfig) SpecLoaderOption {
	return func(l *SpecLoader) {
		if config != nil {
			l.cacheConfig = config
		}
	}
}

// WithSpecLogger reports cache write failures.
func WithSpecLogger(logger kore.Logger) SpecLoaderOption {
	return func(l *SpecLoader) {
		l.logger = logger
	}
}

// NewSpecLoader creates a loader for the document served by origin.
func NewSpecLoader(origin string, opts ...SpecLoaderOption) *SpecLoader {
	loader := &SpecLoader{
		url:         CatalogueURL(origin),
		cacheConfig: kore.DefaultCacheConfig(),
	}

	for _, opt := range opts {
		opt(loader)
	}

	return loader
}

// URL returns the document location.
func (l *SpecLoader) URL() string {
	return l.url
}

// Fetches returns how many times the loader went to the network.
func (l *SpecLoader) Fetches() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.fetches
}

// Load returns the catalogue, calling fetch only when neither this loader
// nor its cache backend holds the document yet. Concurrent first calls are
// serialised so exactly one of them fetches.
func (l *SpecLoader) Load(ctx context.Context, fetch Fetcher) (*kore.Catalogue, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.catalogue != nil {
		return l.catalogue, nil
	}

	cache, err := l.backend()
	if err != nil {
		return nil, err
	}

	if entry, getErr := cache.Get(ctx, l.url); getErr == nil {
		catalogue, parseErr := kore.ParseCatalogue(entry.Data)
		if parseErr == nil {
			l.catalogue = catalogue

			return catalogue, nil
		}
	}

	l.fetches++

	data, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", l.url, err)
	}

	catalogue, err := kore.ParseCatalogue(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", l.url, err)
	}

	err = cache.Set(ctx, l.url, &kore.CacheEntry{Data: data})
	if err != nil && l.logger != nil {
		l.logger.Warn("failed to cache API catalogue", map[string]interface{}{
			"url":   l.url,
			"error": err.Error(),
		})
	}

	l.catalogue = catalogue

	return catalogue, nil
}

// Reset forgets the document. It exists for tests.
func (l *SpecLoader) Reset() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.catalogue = nil
	l.fetches = 0

	if l.cache == nil {
		return nil
	}

	err := l.cache.Delete(context.Background(), l.url)
	if err != nil {
		return fmt.Errorf("resetting %s: %w", l.url, err)
	}

	return nil
}

// Close releases the cache backend when it holds a connection.
func (l *SpecLoader) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	closer, ok := l.cache.(interface{ Close() error })
	if !ok {
		return nil
	}

	return closer.Close()
}

func (l *SpecLoader) backend() (kore.Cache, error) {
	if l.cache != nil {
		return l.cache, nil
	}

	cache, err := kore.NewCacheFromConfig(l.cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("creating catalogue cache: %w", err)
	}

	l.cache = cache

	return cache, nil
}

var (
	defaultLoadersMutex sync.Mutex
	defaultLoaders      = make(map[string]*SpecLoader)
)

// DefaultSpecLoader returns the process-wide loader for origin, creating it
// on first use. Options only apply to that first call.
func DefaultSpecLoader(origin string, opts ...SpecLoaderOption) *SpecLoader {
	key := CatalogueURL(origin)

	defaultLoadersMutex.Lock()
	defer defaultLoadersMutex.Unlock()

	if loader, ok := defaultLoaders[key]; ok {
		return loader
	}

	loader := NewSpecLoader(origin, opts...)
	defaultLoaders[key] = loader

	return loader
}

// ResetDefaultSpecLoaders drops every process-wide loader. It exists for
// tests.
func ResetDefaultSpecLoaders() error {
	defaultLoadersMutex.Lock()
	defer defaultLoadersMutex.Unlock()

	var errs []error

	for key, loader := range defaultLoaders {
		errs = append(errs, loader.Reset(), loader.Close())
		delete(defaultLoaders, key)
	}

	return errors.Join(errs...)
}

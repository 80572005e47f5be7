// Package assets fetches model, material and texture bytes from URLs or
// the local filesystem and caches them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when an asset does not exist at its URL.
var ErrNotFound = errors.New("asset not found")

// StatusError reports an unexpected HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Code)
}

// Options configures a Fetcher.
type Options struct {
	// Root resolves plain relative paths that carry no scheme.
	Root string
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// MaxSize caps a single asset in bytes; 0 means unlimited.
	MaxSize int64
	// NoCache disables the in-memory cache.
	NoCache bool
	// Client overrides the HTTP client.
	Client *http.Client
}

// Fetcher loads assets by URL. Concurrent requests for the same URL share
// one transfer.
type Fetcher struct {
	opts   Options
	client *http.Client
	cache  *Cache
	group  singleflight.Group
	log    *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options, log *zap.Logger) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fetcher{opts: opts, client: client, log: log}
	if !opts.NoCache {
		f.cache = NewCache()
	}
	return f
}

// Cache returns the fetcher's cache, or nil when caching is disabled.
func (f *Fetcher) Cache() *Cache { return f.cache }

// location is a resolved asset: an http(s) URL or a cleaned filesystem
// path. Different spellings of one asset resolve to the same location.
type location struct {
	remote bool
	target string
}

func (l location) String() string { return l.target }

func (f *Fetcher) resolve(rawURL string) (location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return location{}, fmt.Errorf("parsing asset url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		u.Fragment = ""
		if u.Path != "" {
			u.Path = path.Clean(u.Path)
			u.RawPath = ""
		}
		return location{remote: true, target: u.String()}, nil
	case "file":
		return location{target: filepath.Clean(filepath.FromSlash(u.Path))}, nil
	case "":
		p := filepath.FromSlash(rawURL)
		if !filepath.IsAbs(p) && f.opts.Root != "" {
			p = filepath.Join(f.opts.Root, p)
		}
		return location{target: filepath.Clean(p)}, nil
	default:
		return location{}, fmt.Errorf("unsupported asset scheme %q", u.Scheme)
	}
}

// Fetch returns the bytes at rawURL. The URL is resolved first, so
// spellings of the same asset share one cache entry and one transfer.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	loc, err := f.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	key := loc.String()
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			return data, nil
		}
	}

	v, err, shared := f.group.Do(key, func() (any, error) {
		start := time.Now()
		data, err := f.load(ctx, loc)
		if err != nil {
			return nil, err
		}
		f.log.Debug("asset fetched",
			zap.String("url", key),
			zap.Int("bytes", len(data)),
			zap.Duration("took", time.Since(start)))
		if f.cache != nil {
			f.cache.Set(key, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.log.Debug("asset fetch shared", zap.String("url", key))
	}
	return v.([]byte), nil
}

// Result is the outcome of one fetch in FetchAll.
type Result struct {
	Data []byte
	Err  error
}

// FetchAll fetches every URL concurrently, at most limit at a time when
// limit is positive. Failures are reported per URL and do not stop the
// other fetches.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, limit int) map[string]Result {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	var mu sync.Mutex
	out := make(map[string]Result, len(urls))
	for _, u := range urls {
		mu.Lock()
		_, dup := out[u]
		out[u] = Result{}
		mu.Unlock()
		if dup {
			continue
		}
		u := u
		g.Go(func() error {
			data, err := f.Fetch(ctx, u)
			mu.Lock()
			out[u] = Result{Data: data, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (f *Fetcher) load(ctx context.Context, loc location) ([]byte, error) {
	if loc.remote {
		return f.loadHTTP(ctx, loc.target)
	}
	return f.loadFile(loc.target)
}

func (f *Fetcher) loadHTTP(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{URL: u, Code: resp.StatusCode}
	}
	return f.readLimited(resp.Body, u)
}

func (f *Fetcher) loadFile(p string) ([]byte, error) {
	fh, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return f.readLimited(fh, p)
}

func (f *Fetcher) readLimited(r io.Reader, name string) ([]byte, error) {
	if f.opts.MaxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.opts.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.opts.MaxSize {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", name, f.opts.MaxSize)
	}
	return data, nil
}

// Resolve resolves ref against base. Absolute refs (with a scheme or a
// leading slash on a path base) are returned unchanged.
func Resolve(base, ref string) string {
	if ref == "" {
		return base
	}
	if base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err == nil && r.Scheme != "" {
		return ref
	}
	b, err := url.Parse(base)
	if err == nil && b.Scheme != "" && r != nil {
		if !strings.HasSuffix(b.Path, "/") {
			b.Path += "/"
		}
		return b.ResolveReference(r).String()
	}
	if path.IsAbs(ref) {
		return ref
	}
	return path.Join(base, ref)
}

// Dir returns the directory part of an asset URL, suitable as a base for
// Resolve.
func Dir(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Scheme != "" {
		u.Path = path.Dir(u.Path) + "/"
		u.RawQuery, u.Fragment = "", ""
		return u.String()
	}
	return path.Dir(rawURL)
}

// Cache is an in-memory asset cache keyed by URL.
type Cache struct {
	mu     sync.RWMutex
	data   map[string][]byte
	bytes  int
	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Get returns a cached entry.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an entry.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes += len(data) - len(c.data[key])
	c.data[key] = data
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.bytes, c.hits, c.misses = 0, 0, 0
}

// CacheStats summarises cache usage.
type CacheStats struct {
	Entries int `json:"entries"`
	Bytes   int `json:"bytes"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.data), Bytes: c.bytes, Hits: c.hits, Misses: c.misses}
}

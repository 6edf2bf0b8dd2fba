package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingHTTPClient creates an HTTP client that honours Cache-Control on domain resources
// (materials, courses, categories). Auth endpoints never go through it.
// If cacheDir is empty the cache lives in memory.
func NewCachingHTTPClient(cacheDir string, next http.RoundTripper) *http.Client {
	var cache httpcache.Cache
	if cacheDir == "" {
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across restarts
		cache = diskcache.New(cacheDir)
	}

	transport := httpcache.NewTransport(cache)
	transport.Transport = next
	transport.MarkCachedResponses = true

	return &http.Client{
		Transport: transport,
	}
}

// IsCached reports whether a response was served from the cache.
func IsCached(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) == "1"
}

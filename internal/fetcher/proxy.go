package fetcher

import (
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
)

// ProxyManager hands out proxies for browser launches, skipping ones marked failed.
type ProxyManager struct {
	proxies  []*proxyEntry
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type proxyEntry struct {
	URL     *url.URL
	Healthy bool
	LastErr error
}

// NewProxyManager creates a ProxyManager. Unparseable URLs are logged and skipped.
func NewProxyManager(urls []string, rotation string, logger *slog.Logger) *ProxyManager {
	pm := &ProxyManager{
		proxies:  make([]*proxyEntry, 0, len(urls)),
		rotation: rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	for _, rawURL := range urls {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			pm.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, &proxyEntry{URL: u, Healthy: true})
	}

	pm.logger.Debug("proxy manager initialized", "count", len(pm.proxies), "rotation", rotation)
	return pm
}

// Next returns the next healthy proxy, or nil when none is left.
func (pm *ProxyManager) Next() *url.URL {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	healthy := pm.healthyProxies()
	if len(healthy) == 0 {
		return nil
	}

	switch pm.rotation {
	case "random":
		return healthy[rand.Intn(len(healthy))].URL
	default: // round_robin
		idx := (pm.index.Add(1) - 1) % int64(len(healthy))
		return healthy[idx].URL
	}
}

// MarkFailed takes a proxy out of rotation.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.proxies {
		if p.URL.String() == proxyURL.String() {
			p.Healthy = false
			p.LastErr = err
			pm.logger.Warn("proxy marked unhealthy", "proxy", proxyURL.Host, "error", err)
			return
		}
	}
}

// Count returns the total number of proxies.
func (pm *ProxyManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies)
}

// HealthyCount returns the number of proxies still in rotation.
func (pm *ProxyManager) HealthyCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.healthyProxies())
}

func (pm *ProxyManager) healthyProxies() []*proxyEntry {
	healthy := make([]*proxyEntry, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		if p.Healthy {
			healthy = append(healthy, p)
		}
	}
	return healthy
}

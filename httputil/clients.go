package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // for the marketplace itself, optionally proxied
	Export   *http.Client // direct, for snapshot export targets
}

// NewClients builds the two HTTP clients the daemon uses. proxyURL may be
// empty, in which case the scraping client goes direct. HTTP/2 is disabled on
// the scraping transport; the marketplace fingerprints h2 clients differently
// than real browsers behind some CDN configs.
func NewClients(proxyURL string) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	// No client-level timeout: the fetcher applies its own per-attempt
	// deadline via context. Redirects are returned, not followed; a 3xx off
	// the search page is an anomaly the fetcher should see as-is.
	scraping := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		Export:   &http.Client{Timeout: 30 * time.Second},
	}
}

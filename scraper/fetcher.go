package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/identity"
)

const (
	defaultBaseURL        = "https://www.ebay.com/sch/i.html"
	defaultAttempts       = 3
	defaultAttemptTimeout = 10 * time.Second
	defaultBackoffBase    = 2 * time.Second
	defaultBackoffCap     = 30 * time.Second
	defaultResultsPerPage = 60
)

type FetchConfig struct {
	BaseURL        string
	Attempts       int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	ResultsPerPage int
}

// Fetcher retrieves sold-listing search pages. Each attempt gets its own
// deadline and a fresh header profile; transient failures are retried with
// exponential backoff, anti-bot interstitials abort the run immediately.
type Fetcher struct {
	client *http.Client
	cfg    FetchConfig
}

func NewFetcher(client *http.Client, cfg FetchConfig) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = defaultResultsPerPage
	}
	return &Fetcher{client: client, cfg: cfg}
}

// SearchURL builds the sold+completed listings search URL for a query.
func (f *Fetcher) SearchURL(query string) string {
	v := url.Values{}
	v.Set("_nkw", query)
	v.Set("LH_Sold", "1")
	v.Set("LH_Complete", "1")
	v.Set("_sop", "13") // newly ended first
	v.Set("_ipg", strconv.Itoa(f.cfg.ResultsPerPage))
	return f.cfg.BaseURL + "?" + v.Encode()
}

// Fetch returns the raw search page HTML for query. It makes up to
// cfg.Attempts tries; a BlockedError short-circuits the loop with no further
// attempts.
func (f *Fetcher) Fetch(ctx context.Context, query string) (string, error) {
	searchURL := f.SearchURL(query)

	var last error
	for attempt := 0; attempt < f.cfg.Attempts; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			log.Printf("[fetcher] attempt %d/%d for %q in %s (last error: %v)",
				attempt+1, f.cfg.Attempts, query, delay, last)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := f.attempt(ctx, searchURL)
		if err != nil {
			var blocked *BlockedError
			if errors.As(err, &blocked) {
				return "", err
			}
			last = err
			continue
		}

		if sig := blockSignature(body); sig != "" {
			return "", &BlockedError{Signature: sig}
		}
		if strings.TrimSpace(body) == "" {
			last = errors.New("empty response body")
			continue
		}
		return body, nil
	}
	return "", &NetworkError{Attempts: f.cfg.Attempts, Last: last}
}

func (f *Fetcher) attempt(ctx context.Context, searchURL string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	identity.RandomProfile().Apply(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return string(body), nil
	case resp.StatusCode == http.StatusForbidden:
		// A 403 body usually carries the interstitial markup. Run
		// detection on it so a hard block is not mistaken for a
		// retryable failure.
		if sig := blockSignature(string(body)); sig != "" {
			return "", &BlockedError{Signature: sig}
		}
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	default:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	d := f.cfg.BackoffBase << (attempt - 1)
	if d > f.cfg.BackoffCap {
		return f.cfg.BackoffCap
	}
	return d
}

var blockedTitleKeywords = []string{
	"pardon our interruption",
	"access denied",
	"robot check",
	"security measure",
	"checking your browser",
}

var blockedMarkers = []string{
	"captcha",
	"distil_r_blocked",
	"px-captcha",
}

// blockSignature scans a page for anti-bot tells. An empty return means the
// page looks like genuine search results.
func blockSignature(html string) string {
	lower := strings.ToLower(html)

	title := pageTitle(lower)
	for _, kw := range blockedTitleKeywords {
		if strings.Contains(title, kw) {
			return "title: " + kw
		}
	}
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return "marker: " + marker
		}
	}
	// Real result pages always render the results container, even for zero
	// hits. Its absence means we got an interstitial shell.
	if !strings.Contains(lower, "srp-results") && !strings.Contains(lower, "srp-river-results") {
		return "missing results container"
	}
	return ""
}

func pageTitle(lowerHTML string) string {
	start := strings.Index(lowerHTML, "<title")
	if start < 0 {
		return ""
	}
	open := strings.Index(lowerHTML[start:], ">")
	if open < 0 {
		return ""
	}
	rest := lowerHTML[start+open+1:]
	end := strings.Index(rest, "</title>")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

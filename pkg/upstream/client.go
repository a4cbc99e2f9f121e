package upstream

import (
	"strings"

	"github.com/lottohub-kr/lottosync/pkg/httpclient"
)

// Package upstream talks to the lottery operator's public endpoints: the
// per-round draw JSON endpoint and the winning-retailer listing pages. Field
// names and markup are upstream-owned; everything here is best-effort.

const (
	defaultBaseURL = "https://www.dhlottery.co.kr"

	drawPathFmt  = "/common.do?method=getLottoNumber&drwNo=%d"
	shopsPathFmt = "/store.do?method=topStore&pageGubun=L645&drwNo=%d"

	defaultMaxShopPages = 20
)

// PageCache receives raw listing-page snapshots for later markup-drift
// debugging. Implementations must tolerate concurrent writers.
type PageCache interface {
	SavePage(round, page int, body []byte) error
}

// Options configures the upstream client.
type Options struct {
	// BaseURL overrides the operator site root (tests point it at a stub).
	BaseURL string
	// MaxShopPages caps rank-2 listing pagination per round.
	MaxShopPages int
	// Cache, when non-nil, receives raw listing-page bodies.
	Cache PageCache
}

// Client fetches and parses rounds from the operator site.
type Client struct {
	http         httpclient.Client
	baseURL      string
	maxShopPages int
	cache        PageCache
}

// NewClient builds an upstream client over the given transport.
func NewClient(hc httpclient.Client, opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxPages := opts.MaxShopPages
	if maxPages <= 0 {
		maxPages = defaultMaxShopPages
	}
	return &Client{
		http:         hc,
		baseURL:      baseURL,
		maxShopPages: maxPages,
		cache:        opts.Cache,
	}
}

// responseSnippet trims a response body for inclusion in error messages.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

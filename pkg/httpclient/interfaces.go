package httpclient

import "context"

// Response is the slice of an HTTP response the fetch and scrape code reads:
// the raw body (possibly EUC-KR) and the status code.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client is the outbound HTTP surface toward the operator site. Tests inject
// stubs with canned listing and draw payloads.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

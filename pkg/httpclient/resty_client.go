package httpclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default browser identity presented to the upstream. The operator site
// answers differently (or not at all) to non-browser agents.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
	"Connection":      "keep-alive",
}

// Options tunes retry and pacing behavior of the resty transport.
type Options struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryBackoff is the base wait; attempt n waits roughly base << n.
	RetryBackoff time.Duration
	// RequestGap is the minimum spacing between consecutive outbound
	// requests, enforced process-wide across all callers of this client.
	RequestGap time.Duration
	// Headers overrides the default browser identity when non-nil.
	Headers map[string]string
}

// RestyClient adapts resty.Client to the httpclient.Client interface and adds
// upstream-friendly pacing: retries on 429/5xx with exponential backoff and a
// minimum gap between consecutive requests.
type RestyClient struct {
	client *resty.Client

	gapMu       sync.Mutex
	requestGap  time.Duration
	lastRequest time.Time
}

// NewRestyClient creates a RestyClient with the given options.
func NewRestyClient(opts Options) *RestyClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 3 * time.Second
	}

	headers := opts.Headers
	if headers == nil {
		headers = defaultHeaders
	}

	c := resty.New() // resty.New carries a shared cookie jar for the process lifetime
	c.SetTimeout(opts.Timeout)
	c.SetHeaders(headers)

	if opts.MaxRetries > 0 {
		c.SetRetryCount(opts.MaxRetries)
		c.SetRetryWaitTime(opts.RetryBackoff)
		c.SetRetryMaxWaitTime(opts.RetryBackoff << uint(opts.MaxRetries))
		c.AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return retryableStatus(r.StatusCode())
		})
	}

	rc := &RestyClient{client: c, requestGap: opts.RequestGap}
	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rc.waitRequestGap(req.Context())
	})
	return rc
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// retryableStatus reports whether the status code warrants a retry.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// waitRequestGap blocks until the configured spacing since the previous
// request has elapsed. Runs once per attempt, so retries are paced too.
func (r *RestyClient) waitRequestGap(ctx context.Context) error {
	if r.requestGap <= 0 {
		return nil
	}

	r.gapMu.Lock()
	for {
		wait := r.requestGap - time.Since(r.lastRequest)
		if wait <= 0 {
			break
		}
		// Another caller may claim the slot while we sleep unlocked, so the
		// remaining wait is re-evaluated after reacquiring the lock.
		r.gapMu.Unlock()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		r.gapMu.Lock()
	}
	r.lastRequest = time.Now()
	r.gapMu.Unlock()
	return nil
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }

// Package wordpress talks to the REST API of client WordPress sites: the
// fdc connector plugin's bulk export and the form plugins' own endpoints.
package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a whole call to a client site.
	DefaultTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 64 << 20

	userAgent = "FDC-Collector/1.0"
)

// REST routes on the client site.
const (
	BulkSyncPath         = "/wp-json/fdc/v1/bulk-sync"
	GravityFormsPath     = "/wp-json/gf/v2/forms"
	ContactForm7FormPath = "/wp-json/contact-form-7/v1/contact-forms"
)

var (
	// ErrTimeout is returned when the site did not answer in time.
	ErrTimeout = errors.New("wordpress request timed out")
	// ErrInvalidSiteURL is returned for a site URL that cannot be called.
	ErrInvalidSiteURL = errors.New("invalid WordPress URL")
	// ErrMalformedResponse is returned when a 2xx body is not valid JSON.
	ErrMalformedResponse = errors.New("malformed WordPress response")
)

// StatusError is returned when the site answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("WordPress returned %s", e.Status)
}

// TransportError wraps a failure to reach the site.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "wordpress request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BasicAuth holds WordPress application password credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Client calls WordPress sites.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a Client whose calls are bounded by timeout.
// A non-positive timeout uses DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		timeout: timeout,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: TLSHandshakeTimeout,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			// Don't follow redirects; a moved site must be updated on the client record.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Timeout returns the per-call bound.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ValidateSiteURL checks that a client site URL is an absolute http(s) URL
// without credentials, query or fragment.
func ValidateSiteURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ErrInvalidSiteURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidSiteURL)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidSiteURL)
	}
	if parsed.User != nil || parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("%w: credentials, query and fragment are not allowed", ErrInvalidSiteURL)
	}
	return nil
}

// endpoint joins the site URL and a REST route, dropping one trailing slash.
func endpoint(siteURL, path string) string {
	return strings.TrimSuffix(strings.TrimSpace(siteURL), "/") + path
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, target string, authorize func(*http.Request), out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSiteURL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if authorize != nil {
		authorize(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if ctxErr := classify(ctx, err); errors.Is(ctxErr, ErrTimeout) {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// classify maps a transport error to ErrTimeout or TransportError.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransportError{Err: err}
}

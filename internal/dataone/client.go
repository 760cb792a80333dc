package dataone

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sentinel statuses for failures that never produced an HTTP response.
const (
	StatusTLSError     = -1
	StatusConnectError = -2
	StatusTimeout      = -3
	StatusDecodeError  = -5
)

const DefaultTimeout = 20 * time.Second

// Client issues GET requests against DataONE REST and Solr endpoints.
// It classifies transport failures into sentinel statuses and can
// retry a TLS-verification failure once without validation, recording
// that in the result message.
type Client struct {
	http     *http.Client
	insecure *http.Client // nil when the no-verify fallback is disabled
	retries  uint64
}

// Options configures a Client.
type Options struct {
	Timeout          time.Duration
	InsecureFallback bool
	MaxRetries       uint64 // retries for transient transport errors
}

// NewClient creates a client with the given options.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		http:    &http.Client{Timeout: timeout},
		retries: opts.MaxRetries,
	}
	if opts.InsecureFallback {
		c.insecure = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c
}

// Response is the outcome of a single Get. Status is the HTTP status
// code, or a negative sentinel when no response was received.
type Response struct {
	URL     string
	Status  int
	Started time.Time
	Elapsed time.Duration
	Message string
	Body    []byte
}

// OK reports whether the request returned HTTP 200.
func (r Response) OK() bool {
	return r.Status == http.StatusOK
}

// Get issues a GET request with the client's default timeout.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) Response {
	return c.GetTimeout(ctx, rawURL, params, 0)
}

// GetTimeout issues a GET request, capping it at timeout when positive.
func (c *Client) GetTimeout(ctx context.Context, rawURL string, params url.Values, timeout time.Duration) Response {
	full := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		full = rawURL + sep + params.Encode()
	}

	res := Response{URL: full, Started: time.Now().UTC()}
	start := time.Now()

	status, body, msg := c.attempt(ctx, c.http, full, timeout)
	if status == StatusTLSError && c.insecure != nil {
		slog.Warn("retrying without certificate validation", "url", rawURL)
		status, body, msg = c.attempt(ctx, c.insecure, full, timeout)
		if status == http.StatusOK && msg == "" {
			msg = "No certificate validation"
		}
	}

	res.Status = status
	res.Body = body
	res.Message = msg
	res.Elapsed = time.Since(start)
	return res
}

func (c *Client) attempt(ctx context.Context, hc *http.Client, fullURL string, timeout time.Duration) (status int, body []byte, message string) {
	op := func() error {
		reqCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
		if err != nil {
			status = 0
			message = err.Error()
			return backoff.Permanent(err)
		}

		resp, err := hc.Do(req)
		if err != nil {
			status = classify(err)
			message = err.Error()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			// TLS and timeout failures will not heal on a quick retry.
			if status == StatusTLSError || status == StatusTimeout {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			status = classify(err)
			message = err.Error()
			return err
		}

		status = resp.StatusCode
		body = data
		message = ""
		if resp.StatusCode != http.StatusOK {
			message = resp.Status
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.retries), ctx)
	_ = backoff.Retry(op, policy)
	return status, body, message
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

func classify(err error) int {
	if isTLSError(err) {
		return StatusTLSError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return StatusTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusConnectError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return StatusConnectError
	}
	return 0
}

func isTLSError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &invalidErr)
}

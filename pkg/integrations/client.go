package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/observability"
)

// Doer is the HTTP session a Client sends requests through. *http.Client
// satisfies it.
//
// The session is owned by the caller: Client never closes, reconfigures, or
// replaces it, and relies on it for connection pooling, TLS, redirects, and
// timeouts. It must be safe for concurrent use if the Client is shared.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides the single-request HTTP plumbing shared by registry clients.
// Each call issues exactly one GET and reads the full body; there is no
// caching and no retry.
//
// All methods are safe for concurrent use when the underlying Doer is.
type Client struct {
	http    Doer
	maxBody int64
}

// NewClient creates a Client that issues requests through doer.
// A nil doer falls back to [http.DefaultClient].
//
// maxBody caps the number of body bytes read per response; 0 or less means
// no cap, and the whole body is buffered in memory.
func NewClient(doer Doer, maxBody int64) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		http:    doer,
		maxBody: maxBody,
	}
}

// MaxBody returns the configured body cap (0 means unlimited).
func (c *Client) MaxBody() int64 { return c.maxBody }

// Get performs an HTTP GET request and JSON-decodes the response into v.
// A body that is not valid JSON for v yields a PARSE_ERROR.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	data, err := c.doRequest(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "decode JSON from %s", url)
	}
	return nil
}

// GetText performs an HTTP GET request and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	data, err := c.doRequest(ctx, url)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetBytes performs an HTTP GET request and returns the raw response body.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.doRequest(ctx, url)
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid URL %q", url)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, errors.Wrap(errors.ErrCodeTransport, err, "GET %s", url)
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp.StatusCode); err != nil {
		hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, 0, time.Since(start))
		return nil, err
	}

	data, err := c.readBody(resp.Body)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if !errors.Is(err, errors.ErrCodeTooLarge) {
			return nil, errors.Wrap(errors.ErrCodeTransport, err, "read body of %s", url)
		}
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, int64(len(data)), time.Since(start))
	return data, nil
}

func (c *Client) readBody(body io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		return io.ReadAll(body)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if n > c.maxBody {
		return nil, errors.New(errors.ErrCodeTooLarge, "response body exceeds %d bytes", c.maxBody)
	}
	return buf.Bytes(), nil
}

func checkStatus(url string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeNotFound, &StatusError{URL: url, StatusCode: code}, "%s not found", url)
	default:
		return errors.Wrap(errors.ErrCodeTransport, &StatusError{URL: url, StatusCode: code}, "GET %s failed with status %d", url, code)
	}
}

package pypi

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/pypifeed/pkg/integrations"
	"github.com/matzehuels/pypifeed/pkg/observability"
)

// DefaultServiceRoot is the base URL of the public Python Package Index.
const DefaultServiceRoot = "https://pypi.org"

// Well-known RSS feeds served by PyPI.
const (
	// NewestPackagesFeedURL lists projects that were just created.
	NewestPackagesFeedURL = DefaultServiceRoot + "/rss/packages.xml"

	// PackageUpdatesFeedURL lists the latest release uploads.
	PackageUpdatesFeedURL = DefaultServiceRoot + "/rss/updates.xml"
)

const (
	newestFeedPath  = "/rss/packages.xml"
	updatesFeedPath = "/rss/updates.xml"
)

// Client provides access to the PyPI RSS feeds and JSON API.
//
// Every method issues exactly one GET through the session passed to
// [NewClient] and translates the body into a typed value. There is no
// caching, no retry, and no concurrency limit; the session manages its own
// connection pool.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	root string
}

// Option configures a [Client].
type Option func(*options)

type options struct {
	root    string
	maxBody int64
}

// WithServiceRoot points the client at a PyPI-compatible index other than
// pypi.org, such as a mirror or a test server. A trailing slash is ignored.
func WithServiceRoot(root string) Option {
	return func(o *options) { o.root = strings.TrimRight(root, "/") }
}

// WithMaxBodySize caps the number of bytes buffered per response.
// The default is 0: no cap, the whole body is held in memory.
func WithMaxBodySize(n int64) Option {
	return func(o *options) { o.maxBody = n }
}

// NewClient creates a PyPI client that sends requests through session.
//
// The session is owned by the caller, who is responsible for its
// configuration and teardown; the client only reads from it. Pass an
// *http.Client, for example one built with [integrations.NewHTTPClient].
func NewClient(session integrations.Doer, opts ...Option) *Client {
	o := options{root: DefaultServiceRoot}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Client: integrations.NewClient(session, o.maxBody),
		root:   o.root,
	}
}

// ServiceRoot returns the base URL requests are built against.
func (c *Client) ServiceRoot() string { return c.root }

// NewestPackagesFeedURL returns the "newest packages" feed of this client's index.
func (c *Client) NewestPackagesFeedURL() string { return c.root + newestFeedPath }

// PackageUpdatesFeedURL returns the "package updates" feed of this client's index.
func (c *Client) PackageUpdatesFeedURL() string { return c.root + updatesFeedPath }

// FetchFeed retrieves an RSS feed and returns its items in feed order.
//
// feedURL is usually [NewestPackagesFeedURL] or [PackageUpdatesFeedURL] (or
// the equivalents returned by the client methods of the same name).
//
// Returns:
//   - one [FeedItem] per <item> element on success
//   - a PARSE_ERROR if the body is not well-formed RSS, has no items, or an
//     item lacks a title, link, or valid pubDate
//   - a TRANSPORT_ERROR (or NOT_FOUND) if the GET fails
func (c *Client) FetchFeed(ctx context.Context, feedURL string) (items []FeedItem, err error) {
	defer trackFetch(ctx, "feed", feedURL)(&err)

	text, err := c.GetText(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	items, err = ParseFeed(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feedURL, err)
	}
	return items, nil
}

// FetchPackage retrieves JSON metadata for a package.
//
// An empty version requests the project's latest release
// (<root>/pypi/<name>/json); otherwise that exact release is requested
// (<root>/pypi/<name>/<version>/json). The name is sent as given, without
// validation or normalization.
//
// Returns:
//   - PackageMetadata on success; never nil if err is nil
//   - NOT_FOUND if the package or version doesn't exist
//   - TRANSPORT_ERROR for other HTTP failures
//   - PARSE_ERROR if the body is not JSON or lacks info.name / info.version
func (c *Client) FetchPackage(ctx context.Context, name, version string) (meta *PackageMetadata, err error) {
	u := c.packageURL(name, version)
	defer trackFetch(ctx, "package", u)(&err)

	var m PackageMetadata
	if err := c.Get(ctx, u, &m); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("package %s: %w", u, err)
	}
	return &m, nil
}

// FetchBytes downloads rawURL and returns the whole body as a reader
// positioned at its start.
//
// The body is buffered in memory. Unless the client was built with
// [WithMaxBodySize], no size limit applies.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) (r *bytes.Reader, err error) {
	defer trackFetch(ctx, "bytes", rawURL)(&err)

	data, err := c.GetBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (c *Client) packageURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/pypi/%s/%s/json", c.root, url.PathEscape(name), url.PathEscape(version))
	}
	return fmt.Sprintf("%s/pypi/%s/json", c.root, url.PathEscape(name))
}

func trackFetch(ctx context.Context, op, target string) func(*error) {
	hooks := observability.Fetch()
	hooks.OnFetchStart(ctx, op, target)
	start := time.Now()
	return func(err *error) {
		hooks.OnFetchComplete(ctx, op, target, time.Since(start), *err)
	}
}

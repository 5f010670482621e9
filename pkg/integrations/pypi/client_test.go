package pypi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/integrations/pypi/pypitest"
)

const flaskDocument = `{
  "info": {
    "name": "Flask",
    "version": "3.0.0",
    "summary": "A simple framework for building complex web applications.",
    "author": "",
    "license_expression": "",
    "classifiers": ["License :: OSI Approved :: BSD License", "Programming Language :: Python"],
    "project_urls": {"Source": "https://github.com/pallets/flask/", "Donate": "https://palletsprojects.com/donate"},
    "requires_dist": ["Werkzeug>=3.0.0", "click>=8.1.3", "blinker>=1.6.2", "asgiref>=3.2; extra == \"async\"", "importlib-metadata>=3.6.0; python_version < \"3.10\""],
    "requires_python": ">=3.8",
    "yanked": false,
    "yanked_reason": null
  },
  "last_serial": 20123456,
  "releases": {
    "2.3.3": [{"filename": "flask-2.3.3.tar.gz", "packagetype": "sdist", "size": 10, "upload_time_iso_8601": "2023-08-21T19:52:34.000000Z"}],
    "3.0.0": [{"filename": "flask-3.0.0.tar.gz", "packagetype": "sdist", "size": 11, "upload_time_iso_8601": "2023-09-30T14:36:12.918034Z"}],
    "0.1": []
  },
  "urls": [
    {"filename": "flask-3.0.0-py3-none-any.whl", "url": "https://files.example/flask-3.0.0-py3-none-any.whl", "packagetype": "bdist_wheel", "python_version": "py3", "size": 99690, "digests": {"sha256": "abc"}, "upload_time_iso_8601": "2023-09-30T14:36:10.961528Z"},
    {"filename": "flask-3.0.0.tar.gz", "url": "https://files.example/flask-3.0.0.tar.gz", "packagetype": "sdist", "python_version": "source", "size": 674431, "digests": {"sha256": "def"}, "upload_time_iso_8601": "2023-09-30T14:36:12.918034Z"}
  ],
  "vulnerabilities": []
}`

func newTestClient(t *testing.T, opts ...Option) (*Client, *pypitest.Server) {
	t.Helper()
	srv := pypitest.NewServer()
	t.Cleanup(srv.Close)
	opts = append([]Option{WithServiceRoot(srv.URL)}, opts...)
	return NewClient(srv.Client(), opts...), srv
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil)
	if c.ServiceRoot() != DefaultServiceRoot {
		t.Errorf("ServiceRoot() = %q, want %q", c.ServiceRoot(), DefaultServiceRoot)
	}
	if c.NewestPackagesFeedURL() != NewestPackagesFeedURL {
		t.Errorf("NewestPackagesFeedURL() = %q, want %q", c.NewestPackagesFeedURL(), NewestPackagesFeedURL)
	}
	if c.PackageUpdatesFeedURL() != PackageUpdatesFeedURL {
		t.Errorf("PackageUpdatesFeedURL() = %q, want %q", c.PackageUpdatesFeedURL(), PackageUpdatesFeedURL)
	}
	if c.MaxBody() != 0 {
		t.Errorf("MaxBody() = %d, want 0 (unlimited)", c.MaxBody())
	}
}

func TestWithServiceRootTrimsSlash(t *testing.T) {
	c := NewClient(nil, WithServiceRoot("https://mirror.example/"))
	if got := c.PackageUpdatesFeedURL(); got != "https://mirror.example/rss/updates.xml" {
		t.Errorf("PackageUpdatesFeedURL() = %q", got)
	}
}

func TestClient_FetchFeed(t *testing.T) {
	c, srv := newTestClient(t)

	published := time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)
	items := []pypitest.Item{
		{Title: "flask 3.0.0", Link: "https://pypi.org/project/flask/3.0.0/", Description: "web framework", Author: "pallets@example.com", GUID: "g1", Published: published},
		{Title: "requests 2.31.0", Link: "https://pypi.org/project/requests/2.31.0/", GUID: "g2", Published: published.Add(-time.Minute)},
		{Title: "numpy 2.0.0rc1", Link: "https://pypi.org/project/numpy/2.0.0rc1/", GUID: "g3", Published: published.Add(-time.Hour)},
	}
	srv.SetFeed(pypitest.UpdatesFeedPath, items...)

	got, err := c.FetchFeed(context.Background(), c.PackageUpdatesFeedURL())
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}

	for i, want := range items {
		item := got[i]
		if item.Title != want.Title {
			t.Errorf("item %d: Title = %q, want %q", i, item.Title, want.Title)
		}
		if item.Link != want.Link {
			t.Errorf("item %d: Link = %q, want %q", i, item.Link, want.Link)
		}
		if item.GUID != want.GUID {
			t.Errorf("item %d: GUID = %q, want %q", i, item.GUID, want.GUID)
		}
		if item.Description != want.Description {
			t.Errorf("item %d: Description = %q, want %q", i, item.Description, want.Description)
		}
		if item.Author != want.Author {
			t.Errorf("item %d: Author = %q, want %q", i, item.Author, want.Author)
		}
		if !item.Published.Equal(want.Published) {
			t.Errorf("item %d: Published = %v, want %v", i, item.Published, want.Published)
		}
	}

	if got[0].Name != "flask" || got[0].Version != "3.0.0" {
		t.Errorf("item 0: Name/Version = %q/%q, want flask/3.0.0", got[0].Name, got[0].Version)
	}
}

func TestClient_FetchFeed_NewestPackages(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetFeed(pypitest.NewestFeedPath,
		pypitest.Item{Title: "shiny-new-lib added to PyPI", Link: "https://pypi.org/project/shiny-new-lib/"},
	)

	got, err := c.FetchFeed(context.Background(), c.NewestPackagesFeedURL())
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0].Name != "shiny-new-lib" {
		t.Errorf("Name = %q, want shiny-new-lib", got[0].Name)
	}
	if got[0].Version != "" {
		t.Errorf("Version = %q, want empty", got[0].Version)
	}
	if got[0].GUID == "" {
		t.Error("expected generated GUID")
	}
}

const flaskItem = `<item><title>flask 3.0.0</title><link>https://pypi.org/project/flask/</link><pubDate>Wed, 14 Oct 2026 12:30:00 GMT</pubDate></item>`

func TestClient_FetchFeed_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed xml", `<?xml version="1.0"?><rss version="2.0"><channel><item><title>flask 3.0.0</title>`},
		{"not xml", `this is not xml at all`},
		{"atom root", `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>x</title></feed>`},
		{"no items", string(pypitest.RenderFeed())},
		{"missing link", `<rss version="2.0"><channel><item><title>flask 3.0.0</title><pubDate>Wed, 14 Oct 2026 12:30:00 GMT</pubDate></item></channel></rss>`},
		{"missing pubDate", `<rss version="2.0"><channel><item><title>flask 3.0.0</title><link>https://pypi.org/project/flask/</link></item></channel></rss>`},
		{"bad pubDate", `<rss version="2.0"><channel><item><title>flask 3.0.0</title><link>https://pypi.org/project/flask/</link><pubDate>yesterday-ish</pubDate></item></channel></rss>`},
		{"missing title", `<rss version="2.0"><channel><item><link>https://pypi.org/project/flask/</link><pubDate>Wed, 14 Oct 2026 12:30:00 GMT</pubDate></item></channel></rss>`},
		{"mismatched close tag", `<rss version="2.0"><channel>` + flaskItem + `</chanel></rss>`},
		{"trailing garbage", `<rss version="2.0"><channel>` + flaskItem + `</channel></rss>garbage`},
		{"trailing element", `<rss version="2.0"><channel>` + flaskItem + `</channel></rss><rss/>`},
		{"undefined entity", `<rss version="2.0"><channel><item><title>flask &bogus; 3.0.0</title><link>https://pypi.org/project/flask/</link><pubDate>Wed, 14 Oct 2026 12:30:00 GMT</pubDate></item></channel></rss>`},
		{"no channel", `<rss version="2.0">` + flaskItem + `</rss>`},
		{"rdf root", `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/"><channel></channel>` + flaskItem + `</rdf:RDF>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.SetRaw(pypitest.UpdatesFeedPath, []byte(tt.body))

			items, err := c.FetchFeed(context.Background(), c.PackageUpdatesFeedURL())
			if err == nil {
				t.Fatalf("expected parse error, got %d items", len(items))
			}
			if !errors.IsParse(err) {
				t.Errorf("expected PARSE_ERROR, got %v", err)
			}
			if items != nil {
				t.Errorf("expected no partial result, got %v", items)
			}
		})
	}
}

func TestClient_FetchFeed_TransportError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetStatus(pypitest.UpdatesFeedPath, http.StatusServiceUnavailable)

	_, err := c.FetchFeed(context.Background(), c.PackageUpdatesFeedURL())
	if !errors.Is(err, errors.ErrCodeTransport) {
		t.Errorf("expected TRANSPORT_ERROR, got %v", err)
	}
	if got := len(srv.Requests()); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestClient_FetchPackage(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetProject("flask", flaskDocument)

	info, err := c.FetchPackage(context.Background(), "flask", "")
	if err != nil {
		t.Fatalf("FetchPackage failed: %v", err)
	}

	if info.Info.Name != "Flask" {
		t.Errorf("expected name Flask, got %s", info.Info.Name)
	}
	if info.Info.Version != "3.0.0" {
		t.Errorf("expected version 3.0.0, got %s", info.Info.Version)
	}
	if info.LastSerial != 20123456 {
		t.Errorf("LastSerial = %d, want 20123456", info.LastSerial)
	}
	if len(info.URLs) != 2 {
		t.Fatalf("expected 2 files, got %d", len(info.URLs))
	}
	if info.URLs[1].Digests.SHA256 != "def" {
		t.Errorf("sdist sha256 = %q, want def", info.URLs[1].Digests.SHA256)
	}
	if info.URLs[0].UploadTime.IsZero() {
		t.Error("expected parsed upload time")
	}
	if info.String() != "Flask 3.0.0" {
		t.Errorf("String() = %q", info.String())
	}
}

func TestClient_FetchPackage_MinimalDocument(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetProject("foo", map[string]any{
		"info": map[string]any{"name": "foo", "version": "1.0"},
	})

	meta, err := c.FetchPackage(context.Background(), "foo", "")
	if err != nil {
		t.Fatalf("FetchPackage failed: %v", err)
	}
	if meta.Info.Name != "foo" || meta.Info.Version != "1.0" {
		t.Errorf("Name/Version = %q/%q, want foo/1.0", meta.Info.Name, meta.Info.Version)
	}
}

func TestClient_FetchPackage_URLShape(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		version string
		want    string
	}{
		{"latest", "foo", "", "/pypi/foo/json"},
		{"pinned", "foo", "2.0", "/pypi/foo/2.0/json"},
		{"name sent as given", "Foo_Bar", "", "/pypi/Foo_Bar/json"},
		{"local version", "foo", "1.0+local", "/pypi/foo/1.0+local/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			doc := map[string]any{"info": map[string]any{"name": tt.pkg, "version": "x"}}
			if tt.version != "" {
				srv.SetRelease(tt.pkg, tt.version, doc)
			} else {
				srv.SetProject(tt.pkg, doc)
			}

			if _, err := c.FetchPackage(context.Background(), tt.pkg, tt.version); err != nil {
				t.Fatalf("FetchPackage failed: %v", err)
			}
			reqs := srv.Requests()
			if len(reqs) != 1 || reqs[0] != tt.want {
				t.Errorf("requests = %v, want [%s]", reqs, tt.want)
			}
		})
	}
}

func TestClient_FetchPackage_NotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.FetchPackage(context.Background(), "missing-pkg", "")
	if err == nil {
		t.Fatal("expected error for missing package")
	}
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if !errors.IsTransport(err) {
		t.Error("404 should surface as a transport failure")
	}
}

func TestClient_FetchPackage_VersionNotFound(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetProject("flask", flaskDocument)

	_, err := c.FetchPackage(context.Background(), "flask", "99.0")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestClient_FetchPackage_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"info": {"name": "foo"`},
		{"not an object", `["foo", "1.0"]`},
		{"missing info", `{"last_serial": 1}`},
		{"missing version", `{"info": {"name": "foo"}}`},
		{"wrong field type", `{"info": {"name": "foo", "version": "1.0", "classifiers": "oops"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.SetProject("foo", tt.body)

			meta, err := c.FetchPackage(context.Background(), "foo", "")
			if !errors.IsParse(err) {
				t.Errorf("expected PARSE_ERROR, got %v", err)
			}
			if meta != nil {
				t.Errorf("expected nil metadata, got %+v", meta)
			}
		})
	}
}

func TestClient_FetchBytes(t *testing.T) {
	c, srv := newTestClient(t)
	payload := []byte("PK\x03\x04 wheel bytes \x00\xff")
	u := srv.SetFile("flask-3.0.0-py3-none-any.whl", payload)

	r, err := c.FetchBytes(context.Background(), u)
	if err != nil {
		t.Fatalf("FetchBytes failed: %v", err)
	}
	if r.Len() != len(payload) {
		t.Errorf("unread length = %d, want %d (reader should start at offset 0)", r.Len(), len(payload))
	}
	pos, _ := r.Seek(0, io.SeekCurrent)
	if pos != 0 {
		t.Errorf("position = %d, want 0", pos)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("body = %q, want %q", got, payload)
	}
}

func TestClient_FetchBytes_Errors(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetStatus("/packages/broken.tar.gz", http.StatusBadGateway)

	_, err := c.FetchBytes(context.Background(), srv.URL+"/packages/broken.tar.gz")
	if !errors.Is(err, errors.ErrCodeTransport) {
		t.Errorf("expected TRANSPORT_ERROR, got %v", err)
	}

	_, err = c.FetchBytes(context.Background(), srv.URL+"/packages/absent.tar.gz")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestClient_FetchBytes_MaxBodySize(t *testing.T) {
	c, srv := newTestClient(t, WithMaxBodySize(8))
	small := srv.SetFile("small", []byte("12345678"))
	large := srv.SetFile("large", []byte("123456789"))

	if _, err := c.FetchBytes(context.Background(), small); err != nil {
		t.Errorf("FetchBytes(small) error: %v", err)
	}
	if _, err := c.FetchBytes(context.Background(), large); !errors.Is(err, errors.ErrCodeTooLarge) {
		t.Errorf("FetchBytes(large) error = %v, want TOO_LARGE", err)
	}
}

func TestClient_ConcurrentFetches(t *testing.T) {
	c, srv := newTestClient(t)
	const n = 16
	for i := range n {
		name := fmt.Sprintf("pkg%d", i)
		srv.SetProject(name, map[string]any{"info": map[string]any{"name": name, "version": "1.0"}})
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("pkg%d", i)
			meta, err := c.FetchPackage(context.Background(), name, "")
			if err != nil {
				errs <- err
				return
			}
			if meta.Info.Name != name {
				errs <- fmt.Errorf("got %s, want %s", meta.Info.Name, name)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if got := len(srv.Requests()); got != n {
		t.Errorf("server saw %d requests, want %d", got, n)
	}
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		title       string
		wantName    string
		wantVersion string
	}{
		{"flask 3.0.0", "flask", "3.0.0"},
		{"shiny-lib added to PyPI", "shiny-lib", ""},
		{"solo", "solo", ""},
		{"", "", ""},
		{"  spaced   1.0  ", "spaced", "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			name, version := splitTitle(tt.title)
			if name != tt.wantName || version != tt.wantVersion {
				t.Errorf("splitTitle(%q) = (%q, %q), want (%q, %q)", tt.title, name, version, tt.wantName, tt.wantVersion)
			}
		})
	}
}

func TestParseFeed_PreservesOrder(t *testing.T) {
	var items []pypitest.Item
	for i := range 25 {
		items = append(items, pypitest.Item{
			Title: fmt.Sprintf("pkg%02d 1.%d", i, i),
			Link:  fmt.Sprintf("https://pypi.org/project/pkg%02d/", i),
		})
	}

	got, err := ParseFeed(strings.NewReader(string(pypitest.RenderFeed(items...))))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i].Title != items[i].Title {
			t.Errorf("item %d: Title = %q, want %q", i, got[i].Title, items[i].Title)
		}
	}
}

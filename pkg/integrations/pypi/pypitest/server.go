// Package pypitest provides a fake PyPI index for tests.
//
// [Server] serves the same URL layout as pypi.org (RSS feeds under /rss/,
// JSON metadata under /pypi/, files under /packages/) from canned content,
// so code under test exercises a real HTTP round trip:
//
//	srv := pypitest.NewServer()
//	defer srv.Close()
//
//	srv.SetFeed(pypitest.UpdatesFeedPath, pypitest.Item{Title: "flask 3.0.0"})
//	srv.SetProject("flask", map[string]any{"info": map[string]any{"name": "flask", "version": "3.0.0"}})
//
//	client := pypi.NewClient(srv.Client(), pypi.WithServiceRoot(srv.URL))
package pypitest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Feed paths served by PyPI.
const (
	NewestFeedPath  = "/rss/packages.xml"
	UpdatesFeedPath = "/rss/updates.xml"
)

// Item is one entry rendered into a fake RSS feed.
// A zero Published becomes the current time; an empty GUID becomes a random UUID.
type Item struct {
	Title       string
	Link        string
	Description string
	Author      string
	GUID        string
	Published   time.Time
}

// Server is a fake PyPI index backed by in-memory content.
// All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.RWMutex
	raw      map[string][]byte // exact path -> body
	status   map[string]int    // exact path -> forced status
	requests []string
}

// NewServer starts a fake index. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		raw:    make(map[string][]byte),
		status: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/rss/{feed}", s.serve)
	r.Get("/pypi/{name}/json", s.serve)
	r.Get("/pypi/{name}/{version}/json", s.serve)
	r.Get("/packages/*", s.serve)

	s.Server = httptest.NewServer(r)
	return s
}

// SetFeed renders items as an RSS 2.0 document served at path.
func (s *Server) SetFeed(path string, items ...Item) {
	s.SetRaw(path, RenderFeed(items...))
}

// SetProject serves doc as JSON at /pypi/<name>/json.
func (s *Server) SetProject(name string, doc any) {
	s.SetRaw(fmt.Sprintf("/pypi/%s/json", name), mustJSON(doc))
}

// SetRelease serves doc as JSON at /pypi/<name>/<version>/json.
func (s *Server) SetRelease(name, version string, doc any) {
	s.SetRaw(fmt.Sprintf("/pypi/%s/%s/json", name, version), mustJSON(doc))
}

// SetFile serves data at /packages/<name> and returns its absolute URL.
func (s *Server) SetFile(name string, data []byte) string {
	path := "/packages/" + name
	s.SetRaw(path, data)
	return s.URL + path
}

// SetRaw serves body verbatim at path.
func (s *Server) SetRaw(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[path] = body
}

// SetStatus forces every request to path to fail with code.
func (s *Server) SetStatus(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = code
}

// Requests returns the escaped request URIs received so far, in order.
func (s *Server) Requests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.EscapedPath())
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	code, forced := s.status[r.URL.Path]
	body, ok := s.raw[r.URL.Path]
	s.mu.RUnlock()

	switch {
	case forced:
		http.Error(w, http.StatusText(code), code)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Write(body)
	}
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description,omitempty"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate"`
}

// PubDateLayout is the RFC 1123 layout PyPI uses for <pubDate>.
const PubDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// RenderFeed renders items as an RSS 2.0 document shaped like PyPI's feeds.
func RenderFeed(items ...Item) []byte {
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "PyPI recent updates",
			Link:        "https://pypi.org/",
			Description: "Recent updates to the Python Package Index",
		},
	}
	for _, it := range items {
		if it.GUID == "" {
			it.GUID = uuid.NewString()
		}
		if it.Published.IsZero() {
			it.Published = time.Now()
		}
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        it.GUID,
			Description: it.Description,
			Author:      it.Author,
			PubDate:     it.Published.UTC().Format(PubDateLayout),
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("pypitest: render feed: %v", err))
	}
	return append([]byte(xml.Header), out...)
}

func mustJSON(doc any) []byte {
	if b, ok := doc.([]byte); ok {
		return b
	}
	if s, ok := doc.(string); ok {
		return []byte(s)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("pypitest: marshal document: %v", err))
	}
	return out
}

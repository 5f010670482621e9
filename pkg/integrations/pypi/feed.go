package pypi

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/net/html/charset"

	"github.com/matzehuels/pypifeed/pkg/errors"
)

// FeedItem is one entry of a PyPI RSS feed: a single project creation or
// release upload.
//
// Title is kept verbatim; Name and Version are derived from it. Titles in
// the updates feed read "<name> <version>", so both are set. Titles in the
// newest-packages feed read "<name> added to PyPI", so Version is empty.
type FeedItem struct {
	Title       string    `json:"title"`
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	Link        string    `json:"link"`
	GUID        string    `json:"guid,omitempty"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Published   time.Time `json:"published"`
}

// ParseFeed decodes an RSS document and maps every rss/channel/item element
// to a [FeedItem], preserving document order.
//
// It fails with a PARSE_ERROR rather than returning a partial result when
// the XML is not well-formed, the root is not <rss>, the channel has no
// items, or any item misses a required field.
func ParseFeed(r io.Reader) ([]FeedItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read RSS document")
	}
	if err := checkRSSDocument(data); err != nil {
		return nil, err
	}

	// rss.Parser keeps per-document state, so each call gets its own.
	var p rss.Parser
	feed, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "malformed RSS document")
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for i, it := range feed.Items {
		item, err := newFeedItem(it)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "feed item %d", i)
		}
		items = append(items, item)
	}
	return items, nil
}

// checkRSSDocument walks every token of data with a strict decoder. The
// gofeed parser tolerates broken markup, so well-formedness and the
// rss/channel/item path are enforced here first.
func checkRSSDocument(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	var (
		path   []string
		closed bool
		items  int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeParse, err, "malformed RSS document")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if closed {
				return errors.New(errors.ErrCodeParse, "element <%s> after the document root", t.Name.Local)
			}
			if len(path) == 0 && t.Name.Local != "rss" {
				return errors.New(errors.ErrCodeParse, "root element is <%s>, want <rss>", t.Name.Local)
			}
			path = append(path, t.Name.Local)
			if len(path) == 3 && path[1] == "channel" && path[2] == "item" {
				items++
			}
		case xml.EndElement:
			path = path[:len(path)-1]
			closed = len(path) == 0
		case xml.CharData:
			if len(path) == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New(errors.ErrCodeParse, "text outside the document root")
			}
		}
	}

	switch {
	case !closed:
		return errors.New(errors.ErrCodeParse, "RSS document has no root element")
	case items == 0:
		return errors.New(errors.ErrCodeParse, "RSS document has no rss.channel.item elements")
	}
	return nil
}

func newFeedItem(it *rss.Item) (FeedItem, error) {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		return FeedItem{}, errors.New(errors.ErrCodeParse, "missing <title>")
	}
	link := strings.TrimSpace(it.Link)
	if link == "" {
		return FeedItem{}, errors.New(errors.ErrCodeParse, "item %q: missing <link>", title)
	}
	if strings.TrimSpace(it.PubDate) == "" {
		return FeedItem{}, errors.New(errors.ErrCodeParse, "item %q: missing <pubDate>", title)
	}
	if it.PubDateParsed == nil {
		return FeedItem{}, errors.New(errors.ErrCodeParse, "item %q: unparseable <pubDate> %q", title, it.PubDate)
	}

	name, version := splitTitle(title)
	item := FeedItem{
		Title:       title,
		Name:        name,
		Version:     version,
		Link:        link,
		Description: strings.TrimSpace(it.Description),
		Author:      strings.TrimSpace(it.Author),
		Published:   it.PubDateParsed.UTC(),
	}
	if it.GUID != nil {
		item.GUID = strings.TrimSpace(it.GUID.Value)
	}
	return item, nil
}

const addedSuffix = " added to PyPI"

// splitTitle derives the project name and version from a feed item title.
func splitTitle(title string) (name, version string) {
	if base, ok := strings.CutSuffix(title, addedSuffix); ok {
		return strings.TrimSpace(base), ""
	}
	fields := strings.Fields(title)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[1]
	}
}

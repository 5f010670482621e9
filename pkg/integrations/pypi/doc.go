// Package pypi provides an HTTP client for the Python Package Index.
//
// # Overview
//
// This package reads the two public RSS feeds of PyPI (https://pypi.org)
// and its JSON metadata API, and downloads arbitrary files such as release
// archives. It is a thin client: one call is one GET, with no caching and
// no retry.
//
// # Usage
//
//	session := integrations.NewHTTPClient(integrations.DefaultTimeout)
//	client := pypi.NewClient(session)
//
//	items, err := client.FetchFeed(ctx, pypi.PackageUpdatesFeedURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, it := range items {
//	    fmt.Println(it.Name, it.Version, it.Published)
//	}
//
//	meta, err := client.FetchPackage(ctx, "fastapi", "")  // "" = latest release
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(meta.Info.Name, meta.Info.Version)
//	fmt.Println("Dependencies:", meta.Dependencies())
//
// # Sessions
//
// The HTTP session is supplied by the caller and shared by every request the
// client makes. The client never closes or reconfigures it, so one session
// can back several clients. Timeouts come from the session and from the
// context passed to each call.
//
// # Feeds
//
// [FetchFeed] returns one [FeedItem] per <item> of the channel, in document
// order. PyPI titles items "<name> <version>" in the updates feed and
// "<name> added to PyPI" in the newest-packages feed; both forms are split
// into Name and Version.
//
// # Errors
//
// Failures carry a code from [github.com/matzehuels/pypifeed/pkg/errors]:
// TRANSPORT_ERROR or NOT_FOUND when the request fails or the status is not
// 2xx, PARSE_ERROR when the body cannot be decoded, and TOO_LARGE when a
// configured body cap is exceeded. Context cancellation stays reachable
// through errors.Is.
//
// # Dependency Filtering
//
// [PackageMetadata.Dependencies] extracts names from requires_dist, skipping
// requirements behind an extra marker. Names are normalized following PEP 503.
package pypi

package integrations

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout is the request timeout used by [NewHTTPClient] when none is given.
const DefaultTimeout = 10 * time.Second

// StatusError records a non-2xx HTTP response. It is the cause carried by
// TRANSPORT_ERROR and NOT_FOUND errors returned from [Client].
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// NewHTTPClient creates an HTTP client suitable as a [Doer] for registry
// requests. A timeout of 0 or less uses [DefaultTimeout].
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NormalizePkgName converts a package name to its canonical form.
// Applies lowercase and replaces underscores and dots with hyphens, following
// PEP 503 normalization rules used by PyPI.
func NormalizePkgName(name string) string {
	return pkgNameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

var pkgNameReplacer = strings.NewReplacer("_", "-", ".", "-")

var repoURLKeys = []string{"Source", "Source Code", "Repository", "Code", "Homepage"}

// ExtractRepoURL finds a repository owner and name among project URLs.
// It searches urls using standard keys (Source, Repository, Code, Homepage),
// then any remaining entry, then homepage. The re parameter should match
// URLs and capture owner (group 1) and repo name (group 2).
// Returns ok=false if no valid repository URL is found.
func ExtractRepoURL(re *regexp.Regexp, urls map[string]string, homepage string) (owner, repo string, ok bool) {
	match := func(u string) bool {
		if strings.Contains(u, "/sponsors/") {
			return false
		}
		if m := re.FindStringSubmatch(u); len(m) >= 3 {
			owner = m[1]
			repo = strings.TrimSuffix(m[2], ".git")
			ok = true
			return true
		}
		return false
	}

	for _, key := range repoURLKeys {
		if u, exists := urls[key]; exists && match(u) {
			return
		}
	}
	for _, u := range urls {
		if match(u) {
			return
		}
	}
	if homepage != "" {
		match(homepage)
	}
	return
}

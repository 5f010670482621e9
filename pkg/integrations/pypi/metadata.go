package pypi

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/integrations"
)

// PackageMetadata is the JSON document PyPI serves for a project
// (/pypi/<name>/json) or for one of its releases (/pypi/<name>/<version>/json).
//
// Releases is only populated by the project endpoint. URLs always lists the
// files of the release described by Info.
//
// A PackageMetadata returned by [Client.FetchPackage] always has a non-empty
// Info.Name and Info.Version. It is safe for concurrent reads.
type PackageMetadata struct {
	Info            PackageInfo               `json:"info"`
	LastSerial      int64                     `json:"last_serial"`
	Releases        map[string][]Distribution `json:"releases,omitempty"`
	URLs            []Distribution            `json:"urls"`
	Vulnerabilities []Vulnerability           `json:"vulnerabilities"`
}

// PackageInfo holds the core metadata of a release.
// Fields PyPI reports as null decode to their zero value.
type PackageInfo struct {
	Name                   string            `json:"name"`
	Version                string            `json:"version"`
	Summary                string            `json:"summary"`
	Description            string            `json:"description"`
	DescriptionContentType string            `json:"description_content_type"`
	Author                 string            `json:"author"`
	AuthorEmail            string            `json:"author_email"`
	Maintainer             string            `json:"maintainer"`
	MaintainerEmail        string            `json:"maintainer_email"`
	License                string            `json:"license"`
	LicenseExpression      string            `json:"license_expression"`
	Keywords               string            `json:"keywords"`
	Classifiers            []string          `json:"classifiers"`
	Platform               string            `json:"platform"`
	HomePage               string            `json:"home_page"`
	DownloadURL            string            `json:"download_url"`
	ProjectURL             string            `json:"project_url"`
	PackageURL             string            `json:"package_url"`
	ReleaseURL             string            `json:"release_url"`
	ProjectURLs            map[string]string `json:"project_urls"`
	RequiresDist           []string          `json:"requires_dist"`
	RequiresPython         string            `json:"requires_python"`
	Yanked                 bool              `json:"yanked"`
	YankedReason           string            `json:"yanked_reason"`
}

// Distribution is one uploaded file (sdist, wheel, ...) of a release.
type Distribution struct {
	Filename       string    `json:"filename"`
	URL            string    `json:"url"`
	PackageType    string    `json:"packagetype"`
	PythonVersion  string    `json:"python_version"`
	RequiresPython string    `json:"requires_python"`
	Size           int64     `json:"size"`
	Digests        Digests   `json:"digests"`
	UploadTime     time.Time `json:"upload_time_iso_8601"`
	Yanked         bool      `json:"yanked"`
	YankedReason   string    `json:"yanked_reason"`
}

// Digests are the hashes PyPI publishes for a file.
type Digests struct {
	MD5        string `json:"md5"`
	SHA256     string `json:"sha256"`
	Blake2b256 string `json:"blake2b_256"`
}

// Vulnerability is a known advisory affecting the described release.
type Vulnerability struct {
	ID        string   `json:"id"`
	Aliases   []string `json:"aliases"`
	Summary   string   `json:"summary"`
	Details   string   `json:"details"`
	Link      string   `json:"link"`
	FixedIn   []string `json:"fixed_in"`
	Withdrawn string   `json:"withdrawn"`
}

// Package types reported in Distribution.PackageType.
const (
	PackageTypeSdist = "sdist"
	PackageTypeWheel = "bdist_wheel"
)

func (m *PackageMetadata) validate() error {
	switch {
	case m.Info.Name == "":
		return errors.New(errors.ErrCodeParse, "metadata is missing info.name")
	case m.Info.Version == "":
		return errors.New(errors.ErrCodeParse, "metadata for %s is missing info.version", m.Info.Name)
	}
	return nil
}

// String returns "<name> <version>".
func (m *PackageMetadata) String() string {
	return fmt.Sprintf("%s %s", m.Info.Name, m.Info.Version)
}

var (
	depRE    = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)
	markerRE = regexp.MustCompile(`;\s*(.+)`)
	extraRE  = regexp.MustCompile(`\bextra\s*==`)
)

// Dependencies returns the runtime requirements of the release as
// PEP 503-normalized names, de-duplicated, in requires_dist order.
// Requirements guarded by an "extra ==" marker are left out.
func (m *PackageMetadata) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	for _, req := range m.Info.RequiresDist {
		if mk := markerRE.FindStringSubmatch(req); len(mk) > 1 && extraRE.MatchString(mk[1]) {
			continue
		}
		if dm := depRE.FindStringSubmatch(req); len(dm) > 1 {
			dep := integrations.NormalizePkgName(dm[1])
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
	}
	return deps
}

// ReleaseVersions returns the keys of Releases ordered by the first upload
// time of each release. Releases without files come first, ordered by
// version string. Returns nil for release-specific documents.
func (m *PackageMetadata) ReleaseVersions() []string {
	if len(m.Releases) == 0 {
		return nil
	}
	first := make(map[string]time.Time, len(m.Releases))
	versions := make([]string, 0, len(m.Releases))
	for v, files := range m.Releases {
		versions = append(versions, v)
		for _, f := range files {
			if t := first[v]; t.IsZero() || f.UploadTime.Before(t) {
				first[v] = f.UploadTime
			}
		}
	}
	slices.SortFunc(versions, func(a, b string) int {
		if c := first[a].Compare(first[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return versions
}

// Files returns the files of the described release with the given package
// type (see PackageTypeSdist, PackageTypeWheel). An empty type returns all.
func (m *PackageMetadata) Files(packageType string) []Distribution {
	if packageType == "" {
		return m.URLs
	}
	var out []Distribution
	for _, d := range m.URLs {
		if d.PackageType == packageType {
			out = append(out, d)
		}
	}
	return out
}

// LicenseName extracts a short license identifier.
// It prefers the PEP 639 license expression, then a trove classifier
// (e.g., "License :: OSI Approved :: MIT License" -> "MIT License"), and
// falls back to the license field if it's short enough.
func (m *PackageMetadata) LicenseName() string {
	if m.Info.LicenseExpression != "" {
		return m.Info.LicenseExpression
	}
	for _, c := range m.Info.Classifiers {
		if strings.HasPrefix(c, "License :: ") {
			parts := strings.Split(c, " :: ")
			if len(parts) >= 3 {
				return parts[len(parts)-1]
			}
		}
	}

	license := strings.TrimSpace(m.Info.License)
	if license != "" && len(license) < 100 && !strings.Contains(license, "\n") {
		return license
	}
	if license != "" {
		firstLine := strings.TrimSpace(strings.Split(license, "\n")[0])
		if len(firstLine) < 50 {
			return firstLine
		}
	}
	return ""
}

var repoHosts = []struct {
	host string
	re   *regexp.Regexp
}{
	{"github.com", regexp.MustCompile(`github\.com[/:]([^/\s]+)/([^/#?\s]+)`)},
	{"gitlab.com", regexp.MustCompile(`gitlab\.com[/:]([^/\s]+)/([^/#?\s]+)`)},
}

// RepositoryURL returns the project's GitHub or GitLab repository as a
// canonical https URL, searching project_urls and then home_page.
// Returns "" when no repository link is present.
func (m *PackageMetadata) RepositoryURL() string {
	for _, h := range repoHosts {
		if owner, repo, ok := integrations.ExtractRepoURL(h.re, m.Info.ProjectURLs, m.Info.HomePage); ok {
			return fmt.Sprintf("https://%s/%s/%s", h.host, owner, repo)
		}
	}
	return ""
}

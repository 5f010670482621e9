// Package pkg provides the libraries behind pypifeed.
//
// # Overview
//
// pypifeed follows the Python Package Index: its RSS feeds of new projects
// and new releases, its per-package JSON metadata, and the files it hosts.
// The pkg directory is organized into a few small areas:
//
//  1. [integrations/pypi] - The PyPI client (feeds, metadata, downloads)
//  2. [integrations] - Shared HTTP plumbing used by registry clients
//  3. [errors] - Coded errors (transport, not found, parse, too large)
//  4. [observability] - Hooks for HTTP and fetch events
//  5. [buildinfo] - Version information injected at build time
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/pypifeed/pkg/integrations"
//	    "github.com/matzehuels/pypifeed/pkg/integrations/pypi"
//	)
//
//	client := pypi.NewClient(integrations.NewHTTPClient(0))
//
//	items, _ := client.FetchFeed(ctx, pypi.NewestPackagesFeedURL)
//	meta, _ := client.FetchPackage(ctx, items[0].Name, "")
//	sdist := meta.Files(pypi.PackageTypeSdist)[0]
//	archive, _ := client.FetchBytes(ctx, sdist.URL)
//
// # Testing
//
// [integrations/pypi/pypitest] serves canned feeds, metadata, and files over
// a real HTTP listener, so tests run the same code path as production.
//
// [integrations/pypi]: https://pkg.go.dev/github.com/matzehuels/pypifeed/pkg/integrations/pypi
// [integrations/pypi/pypitest]: https://pkg.go.dev/github.com/matzehuels/pypifeed/pkg/integrations/pypi/pypitest
// [integrations]: https://pkg.go.dev/github.com/matzehuels/pypifeed/pkg/integrations
// [errors]: https://pkg.go.dev/github.com/matzehuels/pypifeed/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/pypifeed/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/pypifeed/pkg/buildinfo
package pkg

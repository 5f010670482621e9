// Package integrations provides the HTTP plumbing shared by registry clients.
//
// # Overview
//
// [Client] issues one GET per call through a caller-owned [Doer] (usually an
// *http.Client), checks the status, reads the whole body, and optionally
// decodes JSON. There is no caching and no retry: every call maps one HTTP
// response to one result.
//
// # Errors
//
// Failures are reported as coded errors from [errors]:
//
//   - TRANSPORT_ERROR: network failure or a non-2xx status (cause: [StatusError])
//   - NOT_FOUND: HTTP 404
//   - PARSE_ERROR: the body is not valid JSON for the target value
//   - TOO_LARGE: the body exceeds the cap passed to [NewClient]
//
// # Observability
//
// Every request is reported to the hooks registered with
// [observability.SetHTTPHooks].
//
// [errors]: github.com/matzehuels/pypifeed/pkg/errors
// [observability.SetHTTPHooks]: github.com/matzehuels/pypifeed/pkg/observability.SetHTTPHooks
package integrations

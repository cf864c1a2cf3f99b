// Package http serves the outcome of the last pipeline run as a read-only
// JSON API.
//
// The server never runs the pipeline itself. The caller publishes an
// immutable Snapshot of a finished run into a Store and the handlers read
// whatever snapshot is current:
//
//	GET /api/health             liveness, version and last run status
//	GET /api/runs/latest        step states and artifact paths
//	GET /api/panel              panel rows; ?state=, ?year=, ?finite=true
//	GET /api/panel/states       states and years of the panel
//	GET /api/diagnostics        key mismatch, sentinels, null reports
//	GET /api/forecasts          per-state forecasts; ?state=
//	GET /api/clusters           cluster assignments
//	GET /metrics                prometheus exposition
//
// Errors are rendered as errors.APIError JSON. A resource the run did not
// produce answers 404; a malformed query parameter answers 400.
package http

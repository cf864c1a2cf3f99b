// Package shared groups small helpers used by more than one layer of
// sidrapanel.
//
//   - textnorm: Unicode normalization of state keys and header labels
//   - testutil: captured slog handlers and spreadsheet fixtures for tests
//
// Nothing here knows about the reconciliation rules themselves.
package shared

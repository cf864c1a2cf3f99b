// Package validation holds the advisory checks run on source tables and
// files before reconciliation.
package validation

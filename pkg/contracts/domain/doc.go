// Package domain holds the types shared by every layer of sidrapanel: the raw
// source tables, the Year join key, the reconciled Panel and the diagnostics
// that travel with it.
package domain

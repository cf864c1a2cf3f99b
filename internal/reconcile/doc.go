// Package reconcile turns the raw economic and population tables into the
// state-year panel.
//
// The engine runs, in order: the age, state and sex filters over the
// population rows; the per-state sum over the age band; the wide to long
// reshape sorted by (local, year); the key-set comparison between sources;
// the projection and type normalization of the economic rows; the inner join
// on (local, year); and the rounded ratio derivation. Every step is exported
// as a function so it can be exercised on its own.
package reconcile

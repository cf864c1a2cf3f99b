// Package analysis holds the adapters that read the reconciled panel: line
// charts, classical additive decomposition, linear trend forecasts with
// prediction intervals and k-means clustering of states by mean forecast
// ratio, plus the console summary tables.
//
// Every adapter drops division sentinels before use. Adapters that can fail
// for a single state return Outcomes, a map of per-state results where a
// failure is a skip with a reason rather than an error.
package analysis

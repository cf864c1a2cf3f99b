// Package operations runs the reconciliation pipeline as a sequence of
// steps.
//
// Core Components:
//
// Step: a unit of work with an ID, a name and the IDs of the steps it
// depends on. Steps read and write the typed artifacts of a RunState.
//
// Registry: holds the steps and orders them topologically (Kahn's
// algorithm, ties broken by registration order).
//
// Manager: executes a run. Steps run one at a time; each gets a span and
// a duration metric. The first failing step fails the run. A step may
// return a SkipError to be marked skipped without failing the run, and a
// step whose dependency did not complete is skipped as well.
//
// The production pipeline is built with NewPipeline(NewComponents(cfg, ...)):
//
//	fetch_economic, load_population
//	  -> validate_sources -> reconcile
//	       -> export_panel, descriptive_chart, state_charts, decomposition
//	       -> forecast -> clustering
package operations

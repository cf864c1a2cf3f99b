// Package app wires the configuration, telemetry, pipeline and HTTP API into
// one Application and owns its lifecycle.
//
// # Initialization Flow
//
//	1. The caller loads configuration and initializes logging and telemetry
//	2. NewApplication creates pipeline metrics, the step components and the
//	   operations manager
//	3. The API router is built over an empty snapshot store
//	4. RunPipeline executes a run and publishes its snapshot
//	5. Serve listens until its context is cancelled, then Stop shuts the
//	   server and the telemetry providers down
//
// The API only ever reads the latest published snapshot, so a run may be
// repeated while the server is up without locking the handlers.
package app

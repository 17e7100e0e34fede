// Package serving provides the request-routing and version-lifecycle core
// for versioned model serving. It is structured into small files by concern:
//
//   - types.go: servable identity, lifecycle states, the registry entry.
//   - errors.go: error types and helpers (IsModelNotFound, IsStillInUse, ...).
//   - engine.go: execution engine and loader interfaces, RunOptions.
//   - config.go: Config and package defaults; NewWithConfig applies defaults.
//   - registry.go: concurrent name -> version-set map with atomic publish.
//   - selector.go: version selection policy (explicit or latest available).
//   - router.go: operation dispatch with scoped in-flight accounting.
//   - stream.go: pinned streaming sessions with callback delivery.
//   - lifecycle.go: retire/drain/unload coordination.
//   - events.go: lifecycle event publisher interface.
//   - status.go: status and model-list reporting.
//   - metrics.go: prometheus instrumentation for the request path.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (NewWithConfig, Router.Route, Router.OpenStream,
// Coordinator.Load/Unload, Core.Status). Internal types are subject to change.
package serving

package types

// VersionStatus reports one version of a model and its lifecycle state.
type VersionStatus struct {
	// Version number.
	// example: 2
	Version int64 `json:"version"`
	// Lifecycle state: loading, available, retiring, unloaded.
	// example: available
	State string `json:"state"`
}

// ModelVersions groups the known versions of one model name.
type ModelVersions struct {
	// Model name.
	// example: half_plus_two
	Name string `json:"name"`
	// Known versions, ascending.
	Versions []VersionStatus `json:"versions"`
}

// ModelsResponse wraps the list returned by GET /v1/models.
type ModelsResponse struct {
	Models []ModelVersions `json:"models"`
}

// ServableStatus summarizes one loaded servable for /status.
type ServableStatus struct {
	// Model name.
	// example: half_plus_two
	Name string `json:"name"`
	// Version number.
	// example: 2
	Version int64 `json:"version"`
	// Lifecycle state of this servable.
	// example: available
	State string `json:"state"`
	// Number of calls currently executing against this servable.
	// example: 1
	Inflight int64 `json:"inflight"`
	// Total calls dispatched to this servable since load.
	// example: 128
	CallsTotal uint64 `json:"calls_total"`
	// Last time this servable served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded servables across all names.
	Servables []ServableStatus `json:"servables"`
	// Total versions published since start.
	// example: 12
	LoadsTotal uint64 `json:"loads_total"`
	// Total versions fully unloaded since start.
	// example: 5
	UnloadsTotal uint64 `json:"unloads_total"`
	// Open streaming sessions.
	// example: 2
	OpenStreams int64 `json:"open_streams"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: half_plus_two
	Error string `json:"error"`
	// HTTP status code.
	// example: 404
	Code int `json:"code"`
}

// LoadRequest asks the server to load and publish one model version.
type LoadRequest struct {
	// Model name.
	// example: half_plus_two
	Name string `json:"name"`
	// Version to publish; must not collide with a published version.
	// example: 3
	Version int64 `json:"version"`
	// Path to the version directory on disk.
	// example: /srv/models/half_plus_two/3
	Path string `json:"path"`
}

// UnloadRequest asks the server to retire and unload one model version.
type UnloadRequest struct {
	// Model name.
	// example: half_plus_two
	Name string `json:"name"`
	// Version to unload.
	// example: 1
	Version int64 `json:"version"`
	// If true, fail with a conflict instead of draining in-flight calls.
	// example: false
	Force bool `json:"force,omitempty"`
}

// StreamFrame is one server-to-client frame on a streaming predict
// exchange. Exactly one of Response or Error is set; Done marks the
// final frame of the session.
type StreamFrame struct {
	Response *PredictResponse `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
	Done     bool             `json:"done,omitempty"`
}

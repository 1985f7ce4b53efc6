package server

// Status socket request/response types

// StatusResponse describes a running server
type StatusResponse struct {
	SessionID       string           `json:"session_id"`
	Root            string           `json:"root"`
	Ready           bool             `json:"ready"`
	FileCount       int              `json:"file_count"`
	LastEpoch       uint32           `json:"last_epoch"`
	SlowPathRunning bool             `json:"slow_path_running"`
	RunningEpoch    uint32           `json:"running_epoch,omitempty"`
	QueuedEdits     int              `json:"queued_edits"`
	Counters        map[string]int64 `json:"counters,omitempty"`
	UptimeSeconds   float64          `json:"uptime_seconds"`
	Error           string           `json:"error,omitempty"`
}

// PingResponse confirms server is alive
type PingResponse struct {
	Uptime  float64 `json:"uptime_seconds"`
	Version string  `json:"version"`
	BuildID string  `json:"build_id"`
}

// ShutdownResponse confirms shutdown
type ShutdownResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

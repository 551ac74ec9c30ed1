package health

import "time"

type BasicHealthResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	DurationMs int64                  `json:"duration_ms"`
	Checks     map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status   string                 `json:"status"`
	Latency  int64                  `json:"latency_ms"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

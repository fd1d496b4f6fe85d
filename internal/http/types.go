package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version,omitempty"`
	Transport string           `json:"transport"`
	Tools     int              `json:"tools"`
	Telemetry *TelemetryHealth `json:"telemetry,omitempty"`
}

// TelemetryHealth mirrors telemetry.HealthStatus.
type TelemetryHealth struct {
	Enabled  bool     `json:"enabled"`
	Degraded bool     `json:"degraded"`
	Problems []string `json:"problems,omitempty"`
}

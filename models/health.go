package models

// HealthCheckResponse is the body of the liveness probe
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

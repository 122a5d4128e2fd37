package models

import "time"

// ServiceDescriptor describes one deployed service of the fleet. Loaded once at startup.
type ServiceDescriptor struct {
	Name              string   `json:"name"`
	Repository        string   `json:"repository"`
	DeploymentBaseURL string   `json:"deploymentBaseUrl"`
	ExpectedEndpoints []string `json:"expectedEndpoints"`
}

// Check names used for breakers, metrics and failure reasons.
const (
	CheckSourceControl = "source_control"
	CheckDeployment    = "deployment"
	CheckEndpoint      = "endpoint"
)

// ValidationResult is the outcome of one orchestration run for one service.
type ValidationResult struct {
	Name                string            `json:"name"`
	SourceControlStatus bool              `json:"sourceControlStatus"`
	DeploymentStatus    bool              `json:"deploymentStatus"`
	EndpointsStatus     map[string]bool   `json:"endpointsStatus"`
	Failures            map[string]string `json:"failures,omitempty"`
}

// Healthy is the AND of every check of the service.
func (r ValidationResult) Healthy() bool {
	if !r.SourceControlStatus || !r.DeploymentStatus {
		return false
	}
	for _, ok := range r.EndpointsStatus {
		if !ok {
			return false
		}
	}
	return true
}

// FleetReport aggregates a run over the whole registry.
type FleetReport struct {
	Results    []ValidationResult `json:"results"`
	Healthy    bool               `json:"healthy"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
}

// pkg/registry/schema.go
package registry

import "notice-push/internal/common/validation"

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one job type a BPMN service task can reference.
type Activity struct {
	ID           string                `json:"id"`
	DisplayName  string                `json:"displayName"`
	Description  string                `json:"description"`
	Category     string                `json:"category"`
	Version      string                `json:"version"`
	TaskType     string                `json:"taskType"`
	InputSchema  validation.JSONSchema `json:"inputSchema"`
	OutputSchema validation.JSONSchema `json:"outputSchema"`
	ErrorCodes   []string              `json:"errorCodes"`
	Timeout      string                `json:"timeout"`
	Retries      int                   `json:"retries"`
	Tags         []string              `json:"tags"`
}

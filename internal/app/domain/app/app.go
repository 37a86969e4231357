package app

import "time"

// App is a tenant-level entity owning zero or more deployments and at most
// one live deployment at any instant.
type App struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Subdomain           string    `json:"subdomain,omitempty"`
	CurrentDeploymentID string    `json:"current_deployment_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

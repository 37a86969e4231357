package deployment

import "time"

// Deployment is one immutable package bound to an app, with a mutable
// live/retired status. At most one deployment per app is live at a time.
type Deployment struct {
	ID         string    `json:"id"`
	AppID      string    `json:"app_id"`
	PackageRef string    `json:"package"`
	Live       bool      `json:"live"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// URL is the stable per-deployment address, derived from the id and the
	// platform domain suffix. It is attached by the service layer and not
	// persisted.
	URL string `json:"url,omitempty"`
}

// URLFor derives the stable per-deployment address. The subdomain is the
// deployment id prefixed with "d-" so it can never collide with an app
// subdomain.
func URLFor(deploymentID, domainSuffix string) string {
	if domainSuffix == "" {
		return ""
	}
	return "https://d-" + deploymentID + "." + domainSuffix
}

// PreDeployment pairs a fresh upload target with the package ref that a
// subsequent create call will bind to a deployment. It is a one-shot token
// and is never persisted.
type PreDeployment struct {
	UploadURL  string `json:"url"`
	PackageRef string `json:"package"`
}

package routing

// Info is the answer the proxy layer needs for one inbound request: which
// app owns the subdomain and which deployment should serve it.
type Info struct {
	AppID        string `json:"app_id"`
	DeploymentID string `json:"deployment_id"`
}

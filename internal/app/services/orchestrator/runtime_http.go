package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
)

// HTTPRuntime drives deployment instances through the runtime fleet's
// control API.
type HTTPRuntime struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ RuntimeController = (*HTTPRuntime)(nil)

func NewHTTPRuntime(endpoint, token string, timeout time.Duration) *HTTPRuntime {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPRuntime{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRuntime) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
}

func (r *HTTPRuntime) Start(ctx context.Context, d deployment.Deployment) error {
	body, err := json.Marshal(d.Metadata.Packed(d.PackageRef))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.endpoint+"/instances/"+d.ID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("runtime: %s", readErrBody(resp))
	}
	return nil
}

func (r *HTTPRuntime) Stop(ctx context.Context, deploymentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.endpoint+"/instances/"+deploymentID, nil)
	if err != nil {
		return err
	}
	r.authorize(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("runtime: %s", readErrBody(resp))
	}
	return nil
}

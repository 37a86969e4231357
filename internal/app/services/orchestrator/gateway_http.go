package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
)

// HTTPPackageGateway talks to an external package store over its HTTP API.
type HTTPPackageGateway struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ PackageGateway = (*HTTPPackageGateway)(nil)

func NewHTTPPackageGateway(endpoint, token string, timeout time.Duration) *HTTPPackageGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPackageGateway{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *HTTPPackageGateway) Prepare(ctx context.Context, appID string) (deployment.PreDeployment, error) {
	body, _ := json.Marshal(map[string]string{"app_id": appID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/packages", bytes.NewReader(body))
	if err != nil {
		return deployment.PreDeployment{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return deployment.PreDeployment{}, fmt.Errorf("package gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return deployment.PreDeployment{}, fmt.Errorf("package gateway: %s", readErrBody(resp))
	}

	var pre deployment.PreDeployment
	if err := json.NewDecoder(resp.Body).Decode(&pre); err != nil {
		return deployment.PreDeployment{}, fmt.Errorf("package gateway: decode response: %w", err)
	}
	return pre, nil
}

func (g *HTTPPackageGateway) Confirm(ctx context.Context, packageRef string) (bool, error) {
	body, _ := json.Marshal(map[string]string{"package": packageRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/packages/confirm", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("package gateway: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound, http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("package gateway: %s", readErrBody(resp))
	}
}

func (g *HTTPPackageGateway) authorize(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}

func readErrBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, msg)
}

package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
)

// LocalGateway is an in-process package gateway for development and tests.
// Prepared packages are marked uploaded as soon as Confirm is called, so the
// full prepare/upload/deploy cycle can run without an object store.
type LocalGateway struct {
	mu       sync.Mutex
	prepared map[string]bool
}

var _ PackageGateway = (*LocalGateway)(nil)

func NewLocalGateway() *LocalGateway {
	return &LocalGateway{prepared: make(map[string]bool)}
}

func (g *LocalGateway) Prepare(ctx context.Context, appID string) (deployment.PreDeployment, error) {
	ref := "pkg-" + uuid.NewString()
	g.mu.Lock()
	g.prepared[ref] = true
	g.mu.Unlock()
	return deployment.PreDeployment{
		UploadURL:  "local://" + ref,
		PackageRef: ref,
	}, nil
}

func (g *LocalGateway) Confirm(ctx context.Context, packageRef string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prepared[packageRef], nil
}

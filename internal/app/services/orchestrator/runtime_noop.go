package orchestrator

import (
	"context"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
)

// NoopRuntime accepts every start and stop without doing anything. It stands
// in when no runtime fleet is configured.
type NoopRuntime struct{}

var _ RuntimeController = NoopRuntime{}

func (NoopRuntime) Start(ctx context.Context, d deployment.Deployment) error { return nil }
func (NoopRuntime) Stop(ctx context.Context, deploymentID string) error      { return nil }

package orchestrator

import (
	"context"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
)

// PackageGateway mediates access to the package store that holds uploaded
// application bundles.
type PackageGateway interface {
	// Prepare reserves a fresh package slot and returns the upload URL the
	// client should PUT the bundle to, plus the opaque reference that names
	// the slot in later calls.
	Prepare(ctx context.Context, appID string) (deployment.PreDeployment, error)

	// Confirm reports whether the referenced package was uploaded and is
	// intact. false with nil error means the package is unknown or
	// incomplete; a non-nil error means the gateway itself failed.
	Confirm(ctx context.Context, packageRef string) (bool, error)
}

// RuntimeController starts and stops deployment instances on the execution
// substrate.
type RuntimeController interface {
	Start(ctx context.Context, d deployment.Deployment) error
	Stop(ctx context.Context, deploymentID string) error
}

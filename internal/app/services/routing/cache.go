package routing

import (
	"context"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/routing"
)

// Cache stores deployment-subdomain answers. Only deployment-level routes
// are cached: a deployment's binding never changes once created, so a hit
// can never serve a superseded answer.
type Cache interface {
	Get(ctx context.Context, subdomain string) (routing.Info, bool, error)
	Set(ctx context.Context, subdomain string, info routing.Info) error
	Delete(ctx context.Context, subdomain string) error
}

package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/routing"
	"github.com/blueboat-cloud/lighthouse/internal/app/metrics"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

// deploymentSubdomainPrefix marks deployment-level subdomains. App
// subdomains are free-form; deployment subdomains are always derived.
const deploymentSubdomainPrefix = "d-"

// Service answers the proxy's only question: which (app, deployment) pair
// does this subdomain map to right now.
type Service struct {
	apps    storage.AppStore
	deploys storage.DeploymentStore
	cache   Cache
	metrics *metrics.Metrics
	log     *logger.Logger
}

type Config struct {
	Apps        storage.AppStore
	Deployments storage.DeploymentStore
	Cache       Cache
	Metrics     *metrics.Metrics
	Log         *logger.Logger
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("routing")
	}
	return &Service{
		apps:    cfg.Apps,
		deploys: cfg.Deployments,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		log:     cfg.Log,
	}
}

// Resolve dispatches on the subdomain shape: "d-" prefixed subdomains name a
// single pinned deployment, everything else is an app subdomain that follows
// the app's live pointer.
func (s *Service) Resolve(ctx context.Context, subdomain string) (routing.Info, error) {
	if strings.HasPrefix(subdomain, deploymentSubdomainPrefix) {
		return s.ResolveDeploymentSubdomain(ctx, subdomain)
	}
	return s.ResolveAppSubdomain(ctx, subdomain)
}

// ResolveAppSubdomain maps an app subdomain to its current live deployment.
// The answer is derived from the app record on every call, never cached, so
// a superseded deployment is never returned.
func (s *Service) ResolveAppSubdomain(ctx context.Context, subdomain string) (routing.Info, error) {
	app, err := s.apps.GetAppBySubdomain(ctx, subdomain)
	if err != nil {
		s.metrics.ObserveRoutingLookup("app", "miss")
		return routing.Info{}, err
	}
	if app.CurrentDeploymentID == "" {
		s.metrics.ObserveRoutingLookup("app", "no_live")
		return routing.Info{}, fmt.Errorf("app %s has no live deployment: %w", app.ID, storage.ErrNotFound)
	}
	s.metrics.ObserveRoutingLookup("app", "hit")
	return routing.Info{AppID: app.ID, DeploymentID: app.CurrentDeploymentID}, nil
}

// ResolveDeploymentSubdomain maps a "d-<id>" subdomain to that exact
// deployment, live or not. The binding is immutable so a cache hit is
// always valid until the deployment is deleted.
func (s *Service) ResolveDeploymentSubdomain(ctx context.Context, subdomain string) (routing.Info, error) {
	id := strings.TrimPrefix(subdomain, deploymentSubdomainPrefix)
	if id == "" || id == subdomain {
		return routing.Info{}, fmt.Errorf("subdomain %q: %w", subdomain, storage.ErrNotFound)
	}

	if s.cache != nil {
		if info, ok, err := s.cache.Get(ctx, subdomain); err == nil && ok {
			s.metrics.ObserveRoutingLookup("deployment", "cache_hit")
			return info, nil
		} else if err != nil {
			s.log.WithError(err).Warn("route cache get")
		}
	}

	d, err := s.deploys.GetDeployment(ctx, id)
	if err != nil {
		s.metrics.ObserveRoutingLookup("deployment", "miss")
		return routing.Info{}, err
	}
	info := routing.Info{AppID: d.AppID, DeploymentID: d.ID}

	if s.cache != nil {
		if err := s.cache.Set(ctx, subdomain, info); err != nil {
			s.log.WithError(err).Warn("route cache set")
		}
	}
	s.metrics.ObserveRoutingLookup("deployment", "hit")
	return info, nil
}

// InvalidateDeployment drops the cached route for a deleted deployment.
func (s *Service) InvalidateDeployment(ctx context.Context, deploymentID string) error {
	if s.cache == nil {
		return nil
	}
	err := s.cache.Delete(ctx, deploymentSubdomainPrefix+deploymentID)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// DeploymentSubdomain returns the derived subdomain for a deployment id.
func DeploymentSubdomain(deploymentID string) string {
	return deploymentSubdomainPrefix + deploymentID
}

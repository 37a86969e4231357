package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/metrics"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

var (
	// ErrDeploymentLive is returned when an operation targets the live
	// deployment of an app, which must be superseded before removal.
	ErrDeploymentLive = errors.New("deployment is live")

	// ErrPackageConsumed is returned when a package reference has already
	// been bound to some deployment.
	ErrPackageConsumed = errors.New("package already consumed")

	// ErrUnavailable is returned when the per-app lifecycle lock could not
	// be acquired in time.
	ErrUnavailable = errors.New("app is busy, retry later")
)

const (
	defaultActivationWait = 5 * time.Second
	runtimeStartAttempts  = 3
	runtimeStartBackoff   = 250 * time.Millisecond
)

// RouteInvalidator drops cached routing entries for a deployment. Wired to
// the routing cache so stale subdomain answers disappear on delete.
type RouteInvalidator interface {
	InvalidateDeployment(ctx context.Context, deploymentID string) error
}

// Service owns the deployment lifecycle: package preparation, creation with
// atomic activation, and removal.
type Service struct {
	apps    storage.AppStore
	deploys storage.DeploymentStore
	gateway PackageGateway
	runtime RuntimeController
	routes  RouteInvalidator

	locks          *appLocks
	activationWait time.Duration
	domainSuffix   string
	metrics        *metrics.Metrics
	log            *logger.Logger
}

type Config struct {
	Apps        storage.AppStore
	Deployments storage.DeploymentStore
	Gateway     PackageGateway
	Runtime     RuntimeController
	Routes      RouteInvalidator

	// ActivationWait bounds how long a create waits for the per-app lock.
	ActivationWait time.Duration
	DomainSuffix   string
	Metrics        *metrics.Metrics
	Log            *logger.Logger
}

func New(cfg Config) *Service {
	if cfg.ActivationWait <= 0 {
		cfg.ActivationWait = defaultActivationWait
	}
	if cfg.Gateway == nil {
		cfg.Gateway = NewLocalGateway()
	}
	if cfg.Runtime == nil {
		cfg.Runtime = NoopRuntime{}
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("orchestrator")
	}
	return &Service{
		apps:           cfg.Apps,
		deploys:        cfg.Deployments,
		gateway:        cfg.Gateway,
		runtime:        cfg.Runtime,
		routes:         cfg.Routes,
		locks:          newAppLocks(),
		activationWait: cfg.ActivationWait,
		domainSuffix:   cfg.DomainSuffix,
		metrics:        cfg.Metrics,
		log:            cfg.Log,
	}
}

// Prepare reserves a package slot for a new deployment of the app and
// returns the upload URL the client should push the bundle to.
func (s *Service) Prepare(ctx context.Context, appID string) (deployment.PreDeployment, error) {
	if _, err := s.apps.GetApp(ctx, appID); err != nil {
		return deployment.PreDeployment{}, err
	}
	pre, err := s.gateway.Prepare(ctx, appID)
	if err != nil {
		return deployment.PreDeployment{}, fmt.Errorf("prepare deployment: %w", err)
	}
	return pre, nil
}

// Create registers a deployment for the uploaded package, starts it on the
// runtime, and atomically promotes it to live. The previous live deployment
// is retired in the same switch, so the app always has exactly one live
// deployment once it has any.
func (s *Service) Create(ctx context.Context, appID, packageRef string, md deployment.Metadata) (deployment.Deployment, error) {
	if _, err := s.apps.GetApp(ctx, appID); err != nil {
		return deployment.Deployment{}, err
	}
	ok, err := s.gateway.Confirm(ctx, packageRef)
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("confirm package: %v: %w", err, ErrUnavailable)
	}
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("package %s not uploaded: %w", packageRef, storage.ErrNotFound)
	}

	release, ok := s.locks.acquire(ctx, appID, s.activationWait)
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("app %s: %w", appID, ErrUnavailable)
	}
	defer release()

	// The live pointer must be read under the lock: a snapshot taken before
	// acquisition can predate a concurrent activation, and the deployment it
	// misses would never have its runtime stopped.
	app, err := s.apps.GetApp(ctx, appID)
	if err != nil {
		return deployment.Deployment{}, err
	}

	d, err := s.deploys.CreateDeployment(ctx, deployment.Deployment{
		AppID:      appID,
		PackageRef: packageRef,
		Metadata:   md.Clone(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return deployment.Deployment{}, fmt.Errorf("package %s: %w", packageRef, ErrPackageConsumed)
		}
		return deployment.Deployment{}, err
	}

	if err := s.startRuntime(ctx, d); err != nil {
		// The deployment record stays, non-live. The client can delete it
		// or retry with a new package.
		s.log.WithError(err).WithField("deployment_id", d.ID).Error("runtime start failed")
		return deployment.Deployment{}, fmt.Errorf("start deployment %s: %w", d.ID, err)
	}

	previous := app.CurrentDeploymentID
	live, err := s.deploys.Activate(ctx, appID, d.ID)
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("activate deployment %s: %w", d.ID, err)
	}
	s.metrics.ObserveActivation()
	s.log.WithField("app_id", appID).WithField("deployment_id", d.ID).Info("deployment live")

	if previous != "" && previous != d.ID {
		// Best effort: the old instance no longer receives traffic either way.
		if err := s.runtime.Stop(ctx, previous); err != nil {
			s.log.WithError(err).WithField("deployment_id", previous).Warn("stop superseded deployment")
		}
	}

	live.URL = deployment.URLFor(live.ID, s.domainSuffix)
	return live, nil
}

// Delete removes a deployment. Deleting an unknown ID reports found=false
// with no error so removal is idempotent. The live deployment is refused.
func (s *Service) Delete(ctx context.Context, deploymentID string) (deployment.Deployment, bool, error) {
	d, err := s.deploys.GetDeployment(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return deployment.Deployment{}, false, nil
		}
		return deployment.Deployment{}, false, err
	}

	release, ok := s.locks.acquire(ctx, d.AppID, s.activationWait)
	if !ok {
		return deployment.Deployment{}, false, fmt.Errorf("app %s: %w", d.AppID, ErrUnavailable)
	}
	defer release()

	d, err = s.deploys.DeleteDeployment(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return deployment.Deployment{}, false, nil
		}
		if errors.Is(err, storage.ErrConflict) {
			return deployment.Deployment{}, false, fmt.Errorf("deployment %s: %w", deploymentID, ErrDeploymentLive)
		}
		return deployment.Deployment{}, false, err
	}

	if err := s.runtime.Stop(ctx, deploymentID); err != nil {
		s.log.WithError(err).WithField("deployment_id", deploymentID).Warn("stop deleted deployment")
	}
	if s.routes != nil {
		if err := s.routes.InvalidateDeployment(ctx, deploymentID); err != nil {
			s.log.WithError(err).WithField("deployment_id", deploymentID).Warn("invalidate route cache")
		}
	}
	s.log.WithField("deployment_id", deploymentID).Info("deployment deleted")
	return d, true, nil
}

func (s *Service) startRuntime(ctx context.Context, d deployment.Deployment) error {
	var err error
	for attempt := 1; attempt <= runtimeStartAttempts; attempt++ {
		if err = s.runtime.Start(ctx, d); err == nil {
			return nil
		}
		if attempt < runtimeStartAttempts {
			select {
			case <-time.After(runtimeStartBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

package app

import (
	"context"
	"time"

	"github.com/blueboat-cloud/lighthouse/internal/app/metrics"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/apps"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/deployments"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/logs"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/orchestrator"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/routing"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage/memory"
	"github.com/blueboat-cloud/lighthouse/internal/app/system"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

// Stores bundles the persistence interfaces the application runs on. Any nil
// field falls back to a shared in-memory store.
type Stores struct {
	Apps        storage.AppStore
	Deployments storage.DeploymentStore
	Logs        storage.LogStore
}

// Options carries the tunables and external collaborators.
type Options struct {
	// DomainSuffix is the platform domain deployment URLs hang off, e.g.
	// "lighthouse.dev".
	DomainSuffix string

	LogPageCap        int
	LogRetention      time.Duration
	RetentionSchedule string
	ActivationWait    time.Duration

	PackageGateway orchestrator.PackageGateway
	Runtime        orchestrator.RuntimeController
	RoutingCache   routing.Cache
}

// Application wires the services together and manages their lifecycle.
type Application struct {
	Apps         *apps.Service
	Deployments  *deployments.Service
	Orchestrator *orchestrator.Service
	Logs         *logs.Service
	Routing      *routing.Service
	Metrics      *metrics.Metrics

	manager *system.Manager
	log     *logger.Logger
}

func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Apps == nil || stores.Deployments == nil || stores.Logs == nil {
		mem := memory.New()
		if stores.Apps == nil {
			stores.Apps = mem
		}
		if stores.Deployments == nil {
			stores.Deployments = mem
		}
		if stores.Logs == nil {
			stores.Logs = mem
		}
	}

	m := metrics.New()

	routingSvc := routing.New(routing.Config{
		Apps:        stores.Apps,
		Deployments: stores.Deployments,
		Cache:       opts.RoutingCache,
		Metrics:     m,
		Log:         log.WithField("component", "routing"),
	})

	orch := orchestrator.New(orchestrator.Config{
		Apps:           stores.Apps,
		Deployments:    stores.Deployments,
		Gateway:        opts.PackageGateway,
		Runtime:        opts.Runtime,
		Routes:         routingSvc,
		ActivationWait: opts.ActivationWait,
		DomainSuffix:   opts.DomainSuffix,
		Metrics:        m,
		Log:            log.WithField("component", "orchestrator"),
	})

	logSvc := logs.New(logs.Config{
		Store:       stores.Logs,
		Deployments: stores.Deployments,
		PageCap:     opts.LogPageCap,
		Metrics:     m,
		Log:         log.WithField("component", "logs"),
	})

	app := &Application{
		Apps:         apps.New(stores.Apps),
		Deployments:  deployments.New(stores.Apps, stores.Deployments, opts.DomainSuffix),
		Orchestrator: orch,
		Logs:         logSvc,
		Routing:      routingSvc,
		Metrics:      m,
		manager:      system.NewManager(),
		log:          log,
	}

	retention := logs.NewRetention(stores.Logs, opts.LogRetention, opts.RetentionSchedule,
		log.WithField("component", "log-retention"))
	if err := app.manager.Register(retention); err != nil {
		return nil, err
	}
	return app, nil
}

// Attach registers an extra lifecycle-managed service, e.g. the HTTP server.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

func (a *Application) Start(ctx context.Context) error {
	a.log.Info("starting services")
	return a.manager.Start(ctx)
}

func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("stopping services")
	return a.manager.Stop(ctx)
}

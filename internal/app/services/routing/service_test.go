package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/routing"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage/memory"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string]routing.Info
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]routing.Info)} }

func (c *mapCache) Get(_ context.Context, subdomain string) (routing.Info, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.m[subdomain]
	return info, ok, nil
}

func (c *mapCache) Set(_ context.Context, subdomain string, info routing.Info) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[subdomain] = info
	return nil
}

func (c *mapCache) Delete(_ context.Context, subdomain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, subdomain)
	return nil
}

func setup(t *testing.T, cache Cache) (*Service, *memory.Store, appdomain.App, deployment.Deployment) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	app, err := store.CreateApp(ctx, appdomain.App{Name: "demo", Subdomain: "demo"})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	d, err := store.CreateDeployment(ctx, deployment.Deployment{AppID: app.ID, PackageRef: "pkg-r1"})
	if err != nil {
		t.Fatalf("create deployment: %v", err)
	}
	if _, err := store.Activate(ctx, app.ID, d.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	svc := New(Config{Apps: store, Deployments: store, Cache: cache})
	return svc, store, app, d
}

func TestResolveAppSubdomainFollowsLivePointer(t *testing.T) {
	svc, store, app, d1 := setup(t, nil)
	ctx := context.Background()

	info, err := svc.ResolveAppSubdomain(ctx, "demo")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.AppID != app.ID || info.DeploymentID != d1.ID {
		t.Fatalf("info = %+v, want app %s deployment %s", info, app.ID, d1.ID)
	}

	// A new activation must be visible immediately.
	d2, err := store.CreateDeployment(ctx, deployment.Deployment{AppID: app.ID, PackageRef: "pkg-r2"})
	if err != nil {
		t.Fatalf("create deployment: %v", err)
	}
	if _, err := store.Activate(ctx, app.ID, d2.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	info, err = svc.ResolveAppSubdomain(ctx, "demo")
	if err != nil {
		t.Fatalf("resolve after activate: %v", err)
	}
	if info.DeploymentID != d2.ID {
		t.Fatalf("resolved %q, want new live %q", info.DeploymentID, d2.ID)
	}
}

func TestResolveAppSubdomainNoLiveDeployment(t *testing.T) {
	store := memory.New()
	if _, err := store.CreateApp(context.Background(), appdomain.App{Name: "empty", Subdomain: "empty"}); err != nil {
		t.Fatalf("create app: %v", err)
	}
	svc := New(Config{Apps: store, Deployments: store})

	_, err := svc.ResolveAppSubdomain(context.Background(), "empty")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveDeploymentSubdomain(t *testing.T) {
	svc, store, app, d1 := setup(t, nil)
	ctx := context.Background()

	// Retired deployments stay addressable through their own subdomain.
	d2, _ := store.CreateDeployment(ctx, deployment.Deployment{AppID: app.ID, PackageRef: "pkg-r2"})
	if _, err := store.Activate(ctx, app.ID, d2.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	info, err := svc.ResolveDeploymentSubdomain(ctx, DeploymentSubdomain(d1.ID))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.DeploymentID != d1.ID || info.AppID != app.ID {
		t.Fatalf("info = %+v, want deployment %s", info, d1.ID)
	}

	if _, err := svc.ResolveDeploymentSubdomain(ctx, "d-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown deployment err = %v, want ErrNotFound", err)
	}
	if _, err := svc.ResolveDeploymentSubdomain(ctx, "plain"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unprefixed subdomain err = %v, want ErrNotFound", err)
	}
}

func TestDeploymentRouteCaching(t *testing.T) {
	cache := newMapCache()
	svc, _, app, d := setup(t, cache)
	ctx := context.Background()

	sub := DeploymentSubdomain(d.ID)
	if _, err := svc.ResolveDeploymentSubdomain(ctx, sub); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cached, ok, _ := cache.Get(ctx, sub)
	if !ok {
		t.Fatalf("route not cached after resolve")
	}
	if cached.AppID != app.ID || cached.DeploymentID != d.ID {
		t.Fatalf("cached = %+v", cached)
	}

	if err := svc.InvalidateDeployment(ctx, d.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, sub); ok {
		t.Fatalf("route still cached after invalidation")
	}
}

func TestResolveDispatchesOnPrefix(t *testing.T) {
	svc, _, app, d := setup(t, nil)
	ctx := context.Background()

	info, err := svc.Resolve(ctx, "demo")
	if err != nil || info.AppID != app.ID {
		t.Fatalf("app resolve: %+v, %v", info, err)
	}
	info, err = svc.Resolve(ctx, DeploymentSubdomain(d.ID))
	if err != nil || info.DeploymentID != d.ID {
		t.Fatalf("deployment resolve: %+v, %v", info, err)
	}
}

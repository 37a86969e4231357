package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deploylog"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu                   sync.RWMutex
	nextID               int64
	apps                 map[string]appdomain.App
	appsBySubdomain      map[string]string
	deployments          map[string]deployment.Deployment
	deploymentsByPackage map[string]string
	deployOrder          map[string]int64
	logs                 map[string][]deploylog.Entry
	logSeq               map[string]int64
}

var _ storage.AppStore = (*Store)(nil)
var _ storage.DeploymentStore = (*Store)(nil)
var _ storage.LogStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:               1,
		apps:                 make(map[string]appdomain.App),
		appsBySubdomain:      make(map[string]string),
		deployments:          make(map[string]deployment.Deployment),
		deploymentsByPackage: make(map[string]string),
		deployOrder:          make(map[string]int64),
		logs:                 make(map[string][]deploylog.Entry),
		logSeq:               make(map[string]int64),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// AppStore implementation ----------------------------------------------------

func (s *Store) CreateApp(_ context.Context, a appdomain.App) (appdomain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.apps[a.ID]; exists {
		return appdomain.App{}, fmt.Errorf("app %s already exists: %w", a.ID, storage.ErrConflict)
	}

	a.Subdomain = strings.ToLower(strings.TrimSpace(a.Subdomain))
	if a.Subdomain != "" {
		if owner, taken := s.appsBySubdomain[a.Subdomain]; taken {
			return appdomain.App{}, fmt.Errorf("subdomain %s already claimed by app %s: %w", a.Subdomain, owner, storage.ErrConflict)
		}
	}

	a.CurrentDeploymentID = ""
	a.CreatedAt = time.Now().UTC()

	s.apps[a.ID] = a
	if a.Subdomain != "" {
		s.appsBySubdomain[a.Subdomain] = a.ID
	}
	return a, nil
}

func (s *Store) GetApp(_ context.Context, id string) (appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return appdomain.App{}, fmt.Errorf("app %s: %w", id, storage.ErrNotFound)
	}
	return a, nil
}

func (s *Store) GetAppBySubdomain(_ context.Context, subdomain string) (appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.appsBySubdomain[strings.ToLower(strings.TrimSpace(subdomain))]
	if !ok {
		return appdomain.App{}, fmt.Errorf("subdomain %s: %w", subdomain, storage.ErrNotFound)
	}
	return s.apps[id], nil
}

// DeploymentStore implementation ---------------------------------------------

func (s *Store) CreateDeployment(_ context.Context, d deployment.Deployment) (deployment.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[d.AppID]; !ok {
		return deployment.Deployment{}, fmt.Errorf("app %s: %w", d.AppID, storage.ErrNotFound)
	}
	if other, used := s.deploymentsByPackage[d.PackageRef]; used {
		return deployment.Deployment{}, fmt.Errorf("package %s already consumed by deployment %s: %w", d.PackageRef, other, storage.ErrConflict)
	}

	if d.ID == "" {
		d.ID = s.nextIDLocked()
	} else if _, exists := s.deployments[d.ID]; exists {
		return deployment.Deployment{}, fmt.Errorf("deployment %s already exists: %w", d.ID, storage.ErrConflict)
	}

	d.Live = false
	d.CreatedAt = time.Now().UTC()
	d.Metadata = d.Metadata.Clone()

	s.deployments[d.ID] = d
	s.deploymentsByPackage[d.PackageRef] = d.ID
	s.deployOrder[d.ID] = s.nextID
	s.nextID++
	return cloneDeployment(d), nil
}

func (s *Store) GetDeployment(_ context.Context, id string) (deployment.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deployments[id]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment %s: %w", id, storage.ErrNotFound)
	}
	return cloneDeployment(d), nil
}

func (s *Store) ListDeployments(_ context.Context, appID string, limit, offset int) ([]deployment.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]deployment.Deployment, 0)
	for _, d := range s.deployments {
		if d.AppID == appID {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return s.deployOrder[all[i].ID] > s.deployOrder[all[j].ID]
	})

	if offset >= len(all) {
		return []deployment.Deployment{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	result := make([]deployment.Deployment, 0, len(all))
	for _, d := range all {
		result = append(result, cloneDeployment(d))
	}
	return result, nil
}

func (s *Store) DeleteDeployment(_ context.Context, id string) (deployment.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deployments[id]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment %s: %w", id, storage.ErrNotFound)
	}
	if d.Live {
		return deployment.Deployment{}, fmt.Errorf("deployment %s is live: %w", id, storage.ErrConflict)
	}

	delete(s.deployments, id)
	delete(s.deploymentsByPackage, d.PackageRef)
	delete(s.deployOrder, id)
	// Log streams are intentionally retained; retention policy prunes them.
	return cloneDeployment(d), nil
}

// Activate flips the previous live deployment (if any) to retired, marks the
// target live, and repoints the app, all under one lock so no intermediate
// state is observable.
func (s *Store) Activate(_ context.Context, appID, deploymentID string) (deployment.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[appID]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("app %s: %w", appID, storage.ErrNotFound)
	}
	d, ok := s.deployments[deploymentID]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment %s: %w", deploymentID, storage.ErrNotFound)
	}
	if d.AppID != appID {
		return deployment.Deployment{}, fmt.Errorf("deployment %s does not belong to app %s: %w", deploymentID, appID, storage.ErrConflict)
	}

	if a.CurrentDeploymentID != "" && a.CurrentDeploymentID != deploymentID {
		if prev, ok := s.deployments[a.CurrentDeploymentID]; ok {
			prev.Live = false
			s.deployments[prev.ID] = prev
		}
	}

	d.Live = true
	s.deployments[d.ID] = d
	a.CurrentDeploymentID = d.ID
	s.apps[a.ID] = a
	return cloneDeployment(d), nil
}

// LogStore implementation ----------------------------------------------------

func (s *Store) AppendLog(_ context.Context, deploymentID string, e deploylog.Entry) (deploylog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deployments[deploymentID]; !ok {
		return deploylog.Entry{}, fmt.Errorf("deployment %s: %w", deploymentID, storage.ErrNotFound)
	}

	seq := s.logSeq[deploymentID] + 1
	s.logSeq[deploymentID] = seq

	e.Seq = seq
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	e.TS = e.TS.UTC()

	s.logs[deploymentID] = append(s.logs[deploymentID], e)
	return e, nil
}

func (s *Store) ListLogs(_ context.Context, deploymentID string, limit int, beforeSeq int64) ([]deploylog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[deploymentID]
	result := make([]deploylog.Entry, 0, limit)
	for i := len(entries) - 1; i >= 0; i-- {
		if beforeSeq > 0 && entries[i].Seq >= beforeSeq {
			continue
		}
		result = append(result, entries[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) HasLogStream(_ context.Context, deploymentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.logSeq[deploymentID]
	return ok, nil
}

func (s *Store) PruneLogs(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for id, entries := range s.logs {
		kept := entries[:0]
		for _, e := range entries {
			if e.TS.Before(olderThan) {
				pruned++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.logs, id)
			// Keep logSeq so sequence numbers are never reused.
			continue
		}
		s.logs[id] = kept
	}
	return pruned, nil
}

// Helpers --------------------------------------------------------------------

func cloneDeployment(d deployment.Deployment) deployment.Deployment {
	d.Metadata = d.Metadata.Clone()
	return d
}

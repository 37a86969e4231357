package deployments

import (
	"context"
	"errors"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
)

// ErrInvalidPage is returned for negative paging parameters.
var ErrInvalidPage = errors.New("invalid paging parameters")

const defaultPageSize = 100

// Service is the read surface over deployments.
type Service struct {
	apps         storage.AppStore
	deploys      storage.DeploymentStore
	domainSuffix string
}

func New(apps storage.AppStore, deploys storage.DeploymentStore, domainSuffix string) *Service {
	return &Service{apps: apps, deploys: deploys, domainSuffix: domainSuffix}
}

// Get fetches one deployment with its derived URL attached.
func (s *Service) Get(ctx context.Context, id string) (deployment.Deployment, error) {
	d, err := s.deploys.GetDeployment(ctx, id)
	if err != nil {
		return deployment.Deployment{}, err
	}
	d.URL = deployment.URLFor(d.ID, s.domainSuffix)
	return d, nil
}

// List returns up to first deployments of the app, newest first, skipping
// offset entries. An offset beyond the end yields an empty list, not an
// error.
func (s *Service) List(ctx context.Context, appID string, first, offset int) ([]deployment.Deployment, error) {
	if first < 0 || offset < 0 {
		return nil, ErrInvalidPage
	}
	if first == 0 {
		first = defaultPageSize
	}
	if _, err := s.apps.GetApp(ctx, appID); err != nil {
		return nil, err
	}
	list, err := s.deploys.ListDeployments(ctx, appID, first, offset)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].URL = deployment.URLFor(list[i].ID, s.domainSuffix)
	}
	return list, nil
}

package apps

import (
	"context"
	"errors"
	"strings"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
)

// ErrInvalidApp is returned when a create request fails validation.
var ErrInvalidApp = errors.New("invalid app")

// Service manages app registrations.
type Service struct {
	store storage.AppStore
}

func New(store storage.AppStore) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, name, subdomain string) (appdomain.App, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return appdomain.App{}, errors.Join(ErrInvalidApp, errors.New("name is required"))
	}
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if strings.HasPrefix(subdomain, "d-") {
		// Reserved for derived per-deployment subdomains.
		return appdomain.App{}, errors.Join(ErrInvalidApp, errors.New(`subdomain must not start with "d-"`))
	}
	return s.store.CreateApp(ctx, appdomain.App{Name: name, Subdomain: subdomain})
}

func (s *Service) Get(ctx context.Context, id string) (appdomain.App, error) {
	return s.store.GetApp(ctx, id)
}

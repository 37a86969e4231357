package storage

import (
	"context"
	"errors"
	"time"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deploylog"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate an invariant, such as
// deleting a live deployment or reusing a consumed package.
var ErrConflict = errors.New("conflict")

// AppStore persists app records.
type AppStore interface {
	CreateApp(ctx context.Context, a appdomain.App) (appdomain.App, error)
	GetApp(ctx context.Context, id string) (appdomain.App, error)
	GetAppBySubdomain(ctx context.Context, subdomain string) (appdomain.App, error)
}

// DeploymentStore persists deployment records. Activate is the single
// cross-entity mutation in the system and must be atomic: readers observe
// either the previous live deployment or the new one, never zero or two.
type DeploymentStore interface {
	CreateDeployment(ctx context.Context, d deployment.Deployment) (deployment.Deployment, error)
	GetDeployment(ctx context.Context, id string) (deployment.Deployment, error)
	ListDeployments(ctx context.Context, appID string, limit, offset int) ([]deployment.Deployment, error)
	DeleteDeployment(ctx context.Context, id string) (deployment.Deployment, error)
	Activate(ctx context.Context, appID, deploymentID string) (deployment.Deployment, error)
}

// LogStore persists per-deployment log streams. AppendLog assigns the next
// sequence number for the deployment; ListLogs returns entries older than
// beforeSeq (0 meaning from the head) in descending seq order.
type LogStore interface {
	AppendLog(ctx context.Context, deploymentID string, e deploylog.Entry) (deploylog.Entry, error)
	ListLogs(ctx context.Context, deploymentID string, limit int, beforeSeq int64) ([]deploylog.Entry, error)
	HasLogStream(ctx context.Context, deploymentID string) (bool, error)
	PruneLogs(ctx context.Context, olderThan time.Time) (int64, error)
}

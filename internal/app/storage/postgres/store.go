package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deploylog"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.AppStore = (*Store)(nil)
var _ storage.DeploymentStore = (*Store)(nil)
var _ storage.LogStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- AppStore ---------------------------------------------------------------

func (s *Store) CreateApp(ctx context.Context, a appdomain.App) (appdomain.App, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	a.CurrentDeploymentID = ""

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO apps (id, name, subdomain, current_deployment_id, created_at)
		VALUES ($1, $2, $3, NULL, $4)
	`, a.ID, a.Name, toNullString(a.Subdomain), a.CreatedAt)
	if err != nil {
		return appdomain.App{}, wrapErr("create app", err)
	}
	return a, nil
}

func (s *Store) GetApp(ctx context.Context, id string) (appdomain.App, error) {
	return s.getApp(ctx, s.db, `WHERE id = $1`, id)
}

func (s *Store) GetAppBySubdomain(ctx context.Context, subdomain string) (appdomain.App, error) {
	return s.getApp(ctx, s.db, `WHERE subdomain = $1`, subdomain)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getApp(ctx context.Context, q queryRower, where string, arg any) (appdomain.App, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, subdomain, current_deployment_id, created_at
		FROM apps
	`+where, arg)

	var (
		a         appdomain.App
		subdomain sql.NullString
		current   sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &subdomain, &current, &a.CreatedAt); err != nil {
		return appdomain.App{}, wrapErr("get app", err)
	}
	a.Subdomain = subdomain.String
	a.CurrentDeploymentID = current.String
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

// --- DeploymentStore --------------------------------------------------------

func (s *Store) CreateDeployment(ctx context.Context, d deployment.Deployment) (deployment.Deployment, error) {
	if _, err := s.GetApp(ctx, d.AppID); err != nil {
		return deployment.Deployment{}, err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Live = false
	d.CreatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return deployment.Deployment{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, app_id, package_ref, live, metadata, created_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
	`, d.ID, d.AppID, d.PackageRef, metadataJSON, d.CreatedAt)
	if err != nil {
		return deployment.Deployment{}, wrapErr("create deployment", err)
	}
	return d, nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (deployment.Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app_id, package_ref, live, metadata, created_at
		FROM deployments
		WHERE id = $1
	`, id)
	return scanDeployment(row.Scan)
}

func (s *Store) ListDeployments(ctx context.Context, appID string, limit, offset int) ([]deployment.Deployment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, package_ref, live, metadata, created_at
		FROM deployments
		WHERE app_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, appID, limit, offset)
	if err != nil {
		return nil, wrapErr("list deployments", err)
	}
	defer rows.Close()

	result := make([]deployment.Deployment, 0)
	for rows.Next() {
		d, err := scanDeployment(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) DeleteDeployment(ctx context.Context, id string) (deployment.Deployment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return deployment.Deployment{}, wrapErr("delete deployment", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, app_id, package_ref, live, metadata, created_at
		FROM deployments
		WHERE id = $1
		FOR UPDATE
	`, id)
	d, err := scanDeployment(row.Scan)
	if err != nil {
		return deployment.Deployment{}, err
	}
	if d.Live {
		return deployment.Deployment{}, fmt.Errorf("deployment %s is live: %w", id, storage.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM deployments WHERE id = $1`, id); err != nil {
		return deployment.Deployment{}, wrapErr("delete deployment", err)
	}
	if err := tx.Commit(); err != nil {
		return deployment.Deployment{}, wrapErr("delete deployment", err)
	}
	return d, nil
}

// Activate runs the three-way live switch as one transaction: the app row is
// locked first so concurrent activations for the same app serialize, then
// the previous live deployment is retired, the target marked live, and the
// app pointer updated.
func (s *Store) Activate(ctx context.Context, appID, deploymentID string) (deployment.Deployment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return deployment.Deployment{}, wrapErr("activate", err)
	}
	defer tx.Rollback()

	a, err := s.getApp(ctx, tx, `WHERE id = $1 FOR UPDATE`, appID)
	if err != nil {
		return deployment.Deployment{}, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, app_id, package_ref, live, metadata, created_at
		FROM deployments
		WHERE id = $1
		FOR UPDATE
	`, deploymentID)
	d, err := scanDeployment(row.Scan)
	if err != nil {
		return deployment.Deployment{}, err
	}
	if d.AppID != a.ID {
		return deployment.Deployment{}, fmt.Errorf("deployment %s does not belong to app %s: %w", deploymentID, appID, storage.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE deployments SET live = FALSE WHERE app_id = $1 AND live = TRUE AND id <> $2
	`, appID, deploymentID); err != nil {
		return deployment.Deployment{}, wrapErr("activate", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE deployments SET live = TRUE WHERE id = $1
	`, deploymentID); err != nil {
		return deployment.Deployment{}, wrapErr("activate", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE apps SET current_deployment_id = $2 WHERE id = $1
	`, appID, deploymentID); err != nil {
		return deployment.Deployment{}, wrapErr("activate", err)
	}

	if err := tx.Commit(); err != nil {
		return deployment.Deployment{}, wrapErr("activate", err)
	}
	d.Live = true
	return d, nil
}

// --- LogStore ---------------------------------------------------------------

func (s *Store) AppendLog(ctx context.Context, deploymentID string, e deploylog.Entry) (deploylog.Entry, error) {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	e.TS = e.TS.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return deploylog.Entry{}, wrapErr("append log", err)
	}
	defer tx.Rollback()

	// Serialize sequence assignment per deployment so seq stays gap-free
	// under concurrent appends.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, deploymentID); err != nil {
		return deploylog.Entry{}, wrapErr("append log", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM deployments WHERE id = $1)`, deploymentID).Scan(&exists); err != nil {
		return deploylog.Entry{}, wrapErr("append log", err)
	}
	if !exists {
		return deploylog.Entry{}, fmt.Errorf("deployment %s: %w", deploymentID, storage.ErrNotFound)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO deployment_logs (deployment_id, seq, ts, request_id, message)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4
		FROM deployment_logs
		WHERE deployment_id = $1
		RETURNING seq
	`, deploymentID, e.TS, e.RequestID, e.Message)
	if err := row.Scan(&e.Seq); err != nil {
		return deploylog.Entry{}, wrapErr("append log", err)
	}

	if err := tx.Commit(); err != nil {
		return deploylog.Entry{}, wrapErr("append log", err)
	}
	return e, nil
}

func (s *Store) ListLogs(ctx context.Context, deploymentID string, limit int, beforeSeq int64) ([]deploylog.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, request_id, message
		FROM deployment_logs
		WHERE deployment_id = $1 AND ($2::BIGINT = 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3
	`, deploymentID, beforeSeq, limit)
	if err != nil {
		return nil, wrapErr("list logs", err)
	}
	defer rows.Close()

	result := make([]deploylog.Entry, 0, limit)
	for rows.Next() {
		var e deploylog.Entry
		if err := rows.Scan(&e.Seq, &e.TS, &e.RequestID, &e.Message); err != nil {
			return nil, err
		}
		e.TS = e.TS.UTC()
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) HasLogStream(ctx context.Context, deploymentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM deployment_logs WHERE deployment_id = $1)
	`, deploymentID).Scan(&exists)
	if err != nil {
		return false, wrapErr("has log stream", err)
	}
	return exists, nil
}

func (s *Store) PruneLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM deployment_logs WHERE ts < $1
	`, olderThan.UTC())
	if err != nil {
		return 0, wrapErr("prune logs", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Helpers --------------------------------------------------------------------

func scanDeployment(scan func(dest ...any) error) (deployment.Deployment, error) {
	var (
		d           deployment.Deployment
		metadataRaw []byte
	)
	if err := scan(&d.ID, &d.AppID, &d.PackageRef, &d.Live, &metadataRaw, &d.CreatedAt); err != nil {
		return deployment.Deployment{}, wrapErr("scan deployment", err)
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &d.Metadata)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// wrapErr translates driver errors into the storage sentinels so callers can
// use errors.Is without knowing the backend.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

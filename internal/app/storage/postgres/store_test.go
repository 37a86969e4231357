package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deploylog"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
)

// Tests in this file run against a real database. Set TEST_POSTGRES_DSN to
// enable them, e.g.
//
//	TEST_POSTGRES_DSN="postgres://localhost/lighthouse_test?sslmode=disable" go test ./...
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"deployment_logs", "deployments", "apps"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return New(db)
}

func TestPostgresAppRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, err := s.CreateApp(ctx, appdomain.App{Name: "demo", Subdomain: "demo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetApp(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "demo" || got.Subdomain != "demo" {
		t.Fatalf("got = %+v", got)
	}
	if got, err = s.GetAppBySubdomain(ctx, "demo"); err != nil || got.ID != a.ID {
		t.Fatalf("by subdomain: %+v, %v", got, err)
	}
	if _, err := s.GetApp(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestPostgresActivationSwitch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, _ := s.CreateApp(ctx, appdomain.App{Name: "demo", Subdomain: "demo"})
	d1, err := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "pg-p1"})
	if err != nil {
		t.Fatalf("create d1: %v", err)
	}
	d2, err := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "pg-p2"})
	if err != nil {
		t.Fatalf("create d2: %v", err)
	}

	if _, err := s.Activate(ctx, a.ID, d1.ID); err != nil {
		t.Fatalf("activate d1: %v", err)
	}
	if _, err := s.Activate(ctx, a.ID, d2.ID); err != nil {
		t.Fatalf("activate d2: %v", err)
	}

	got1, _ := s.GetDeployment(ctx, d1.ID)
	got2, _ := s.GetDeployment(ctx, d2.ID)
	if got1.Live || !got2.Live {
		t.Fatalf("live flags: d1=%v d2=%v", got1.Live, got2.Live)
	}
	app, _ := s.GetApp(ctx, a.ID)
	if app.CurrentDeploymentID != d2.ID {
		t.Fatalf("app points at %q", app.CurrentDeploymentID)
	}

	if _, err := s.DeleteDeployment(ctx, d2.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("delete live err = %v, want ErrConflict", err)
	}
	if _, err := s.DeleteDeployment(ctx, d1.ID); err != nil {
		t.Fatalf("delete retired: %v", err)
	}
}

func TestPostgresPackageRefUnique(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a, _ := s.CreateApp(ctx, appdomain.App{Name: "demo", Subdomain: "demo"})

	if _, err := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "pg-shared"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "pg-shared"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPostgresLogSequence(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a, _ := s.CreateApp(ctx, appdomain.App{Name: "demo", Subdomain: "demo"})
	d, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "pg-logs"})

	for i := int64(1); i <= 5; i++ {
		e, err := s.AppendLog(ctx, d.ID, deploylog.Entry{Message: fmt.Sprintf("line %d", i)})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if e.Seq != i {
			t.Fatalf("seq = %d, want %d", e.Seq, i)
		}
	}

	entries, err := s.ListLogs(ctx, d.ID, 2, 0)
	if err != nil || len(entries) != 2 || entries[0].Seq != 5 {
		t.Fatalf("list: %+v, %v", entries, err)
	}
	entries, err = s.ListLogs(ctx, d.ID, 10, 3)
	if err != nil || len(entries) != 2 || entries[0].Seq != 2 {
		t.Fatalf("list before: %+v, %v", entries, err)
	}

	pruned, err := s.PruneLogs(ctx, time.Now().Add(time.Hour))
	if err != nil || pruned != 5 {
		t.Fatalf("prune: %d, %v", pruned, err)
	}
}

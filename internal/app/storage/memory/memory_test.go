package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appdomain "github.com/blueboat-cloud/lighthouse/internal/app/domain/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deploylog"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
)

func seedApp(t *testing.T, s *Store) appdomain.App {
	t.Helper()
	a, err := s.CreateApp(context.Background(), appdomain.App{Name: "demo", Subdomain: "demo"})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	return a
}

func TestActivateSwitchesLiveAtomically(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedApp(t, s)

	d1, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "p1"})
	d2, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "p2"})

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
}

func TestActivateForeignDeployment(t *testing.T) {
	s := New()
	ctx := context.Background()
	a1 := seedApp(t, s)
	a2, _ := s.CreateApp(ctx, appdomain.App{Name: "other", Subdomain: "other"})
	d, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a2.ID, PackageRef: "p1"})

	if _, err := s.Activate(ctx, a1.ID, d.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPackageRefUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedApp(t, s)

	if _, err := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "shared"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "shared"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestDeleteLiveRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedApp(t, s)
	d, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "p1"})
	if _, err := s.Activate(ctx, a.ID, d.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := s.DeleteDeployment(ctx, d.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestSeqNeverReusedAfterPrune(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedApp(t, s)
	d, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "p1"})

	for i := 0; i < 3; i++ {
		if _, err := s.AppendLog(ctx, d.ID, deploylog.Entry{Message: "m"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	pruned, err := s.PruneLogs(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 3 {
		t.Fatalf("pruned = %d, want 3", pruned)
	}

	e, err := s.AppendLog(ctx, d.ID, deploylog.Entry{Message: "after prune"})
	if err != nil {
		t.Fatalf("append after prune: %v", err)
	}
	if e.Seq != 4 {
		t.Fatalf("seq = %d, want 4", e.Seq)
	}
}

func TestHasLogStreamAfterDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedApp(t, s)
	d, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "p1"})
	if _, err := s.AppendLog(ctx, d.ID, deploylog.Entry{Message: "m"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.DeleteDeployment(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	has, err := s.HasLogStream(ctx, d.ID)
	if err != nil || !has {
		t.Fatalf("has=%v err=%v, want stream retained", has, err)
	}
	entries, err := s.ListLogs(ctx, d.ID, 10, 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries=%d err=%v", len(entries), err)
	}
}

func TestListLogsBeforeSeq(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedApp(t, s)
	d, _ := s.CreateDeployment(ctx, deployment.Deployment{AppID: a.ID, PackageRef: "p1"})
	for i := 0; i < 5; i++ {
		if _, err := s.AppendLog(ctx, d.ID, deploylog.Entry{Message: "m"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := s.ListLogs(ctx, d.ID, 10, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Seq != 2 || entries[1].Seq != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

package logs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deploylog"
	"github.com/blueboat-cloud/lighthouse/internal/app/metrics"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

const (
	defaultPageSize = 100
	defaultPageCap  = 500
)

// Service exposes per-deployment log streams with cursor pagination and a
// live tail.
type Service struct {
	store       storage.LogStore
	deployments storage.DeploymentStore
	pageCap     int
	metrics     *metrics.Metrics
	log         *logger.Logger

	mu       sync.Mutex
	watchers map[string]map[chan deploylog.Entry]struct{}
}

type Config struct {
	Store       storage.LogStore
	Deployments storage.DeploymentStore

	// PageCap bounds how many entries a single page may carry.
	PageCap int
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

func New(cfg Config) *Service {
	if cfg.PageCap <= 0 {
		cfg.PageCap = defaultPageCap
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("logs")
	}
	return &Service{
		store:       cfg.Store,
		deployments: cfg.Deployments,
		pageCap:     cfg.PageCap,
		metrics:     cfg.Metrics,
		log:         cfg.Log,
		watchers:    make(map[string]map[chan deploylog.Entry]struct{}),
	}
}

// Append records a log entry for the deployment and fans it out to any live
// tails. ts is the event time as reported by the emitter; zero means now.
// The store assigns the sequence number, which is authoritative for ordering
// even when ts values arrive out of order.
func (s *Service) Append(ctx context.Context, deploymentID, requestID, message string, ts time.Time) (deploylog.Entry, error) {
	e, err := s.store.AppendLog(ctx, deploymentID, deploylog.Entry{
		TS:        ts,
		RequestID: requestID,
		Message:   message,
	})
	if err != nil {
		return deploylog.Entry{}, err
	}
	s.metrics.ObserveLogAppend()
	s.notify(deploymentID, e)
	return e, nil
}

// List returns one page of log entries, newest first. A non-empty cursor in
// the returned page means more entries may follow; it is only set when the
// page came back full.
func (s *Service) List(ctx context.Context, deploymentID string, first int, cursor string) (deploylog.Page, error) {
	if err := s.ensureStream(ctx, deploymentID); err != nil {
		return deploylog.Page{}, err
	}

	if first <= 0 {
		first = defaultPageSize
	}
	if first > s.pageCap {
		first = s.pageCap
	}

	var beforeSeq int64
	if cursor != "" {
		seq, err := decodeCursor(cursor)
		if err != nil {
			return deploylog.Page{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		beforeSeq = seq
	}

	entries, err := s.store.ListLogs(ctx, deploymentID, first, beforeSeq)
	if err != nil {
		return deploylog.Page{}, err
	}

	page := deploylog.Page{Data: entries}
	if len(entries) == first {
		page.Cursor = encodeCursor(entries[len(entries)-1].Seq)
	}
	return page, nil
}

// ensureStream accepts deployments that still exist and deployments that
// were deleted but left a log stream behind. Logs outlive the deployment
// until retention prunes them.
func (s *Service) ensureStream(ctx context.Context, deploymentID string) error {
	_, err := s.deployments.GetDeployment(ctx, deploymentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	has, herr := s.store.HasLogStream(ctx, deploymentID)
	if herr != nil {
		return herr
	}
	if !has {
		return err
	}
	return nil
}

// Watch subscribes to new entries for a deployment. The returned cancel
// func must be called when the tail ends. Slow consumers drop entries
// rather than block appends.
func (s *Service) Watch(deploymentID string) (<-chan deploylog.Entry, func()) {
	ch := make(chan deploylog.Entry, 64)
	s.mu.Lock()
	set, ok := s.watchers[deploymentID]
	if !ok {
		set = make(map[chan deploylog.Entry]struct{})
		s.watchers[deploymentID] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if set, ok := s.watchers[deploymentID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(s.watchers, deploymentID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Service) notify(deploymentID string, e deploylog.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[deploymentID] {
		select {
		case ch <- e:
		default:
		}
	}
}

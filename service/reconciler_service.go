package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/voting"
)

// ReconcilerService replays the reconciliation queue in the background,
// repairing local bookkeeping for votes the ledger accepted.
type ReconcilerService struct {
	votes    *voting.Service
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewReconciler creates a new reconciler service running every interval.
func NewReconciler(votes *voting.Service, interval time.Duration) *ReconcilerService {
	return &ReconcilerService{votes: votes, interval: interval}
}

// Start begins the background reconciliation loop. It returns an error if
// the service is already running.
func (rs *ReconcilerService) Start(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, rs.cancel = context.WithCancel(ctx)
	rs.done = make(chan struct{})
	go func() {
		defer close(rs.done)
		rs.votes.RunReconciler(ctx, rs.interval)
	}()
	log.Infow("reconciler service started", "interval", rs.interval.String())
	return nil
}

// Stop halts the reconciliation loop and waits for it to exit.
func (rs *ReconcilerService) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.cancel = nil
}

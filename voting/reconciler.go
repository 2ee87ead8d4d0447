package voting

import (
	"context"
	"errors"
	"time"

	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/types"
)

// Reconcile drains one pass of the reconciliation queue, replaying the local
// bookkeeping for votes the ledger already accepted. Each replayed step
// tolerates having been applied before, so a marker can be retried any
// number of times.
func (s *Service) Reconcile(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		marker, err := s.store.NextReconciliation()
		if err != nil {
			if errors.Is(err, storage.ErrNoMoreElements) {
				return nil
			}
			return err
		}
		if err := s.replay(marker); err != nil {
			log.Warnw("reconciliation replay failed",
				"tx", marker.TxHash.String(), "attempts", marker.Attempts, "err", err)
			if rErr := s.store.ReleaseReconciliation(marker.TxHash); rErr != nil {
				log.Errorw(rErr, "failed to release reconciliation marker")
			}
			continue
		}
		if err := s.store.MarkReconciliationDone(marker.TxHash); err != nil {
			log.Errorw(err, "failed to remove drained reconciliation marker")
		}
		log.Infow("vote reconciled", "tx", marker.TxHash.String())
	}
}

// replay applies the local side of an accepted vote. A step that already
// took effect in an earlier attempt is skipped.
func (s *Service) replay(marker *types.ReconciliationMarker) error {
	// the record commits together with its nullifier index and the election
	// counter, so a record that landed in a previous attempt was counted then
	err := s.store.CreateVoteRecord(&types.VoteRecord{
		ElectionID:         marker.ElectionID,
		VoterID:            marker.VoterID,
		Nullifier:          marker.Nullifier,
		CandidateID:        marker.CandidateID,
		TxHash:             marker.TxHash,
		Timestamp:          marker.CreatedAt,
		VerificationStatus: types.VerificationStatusVerified,
	})
	if err != nil && !errors.Is(err, storage.ErrConstraint) {
		return err
	}

	if err := s.store.AppendVotedElection(marker.VoterID, types.VotedElection{
		ElectionID: marker.ElectionID,
		VotedAt:    marker.CreatedAt,
		Nullifier:  marker.Nullifier,
		TxHash:     marker.TxHash,
	}); err != nil && !errors.Is(err, types.ErrAlreadyVoted) {
		return err
	}
	return nil
}

// RunReconciler replays the reconciliation queue every interval until the
// context is cancelled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infow("reconciler stopped")
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("reconciliation pass failed", "err", err)
			}
		}
	}
}

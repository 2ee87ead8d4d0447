package storage

import (
	"fmt"
	"time"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// PushReconciliation enqueues a reconciliation marker, keyed by the ledger
// transaction hash so a marker for the same vote is never duplicated.
func (s *Storage) PushReconciliation(m *types.ReconciliationMarker) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if s.hasKey(reconcilePrefix, m.TxHash) {
		return nil
	}
	return s.setArtifact(reconcilePrefix, m.TxHash, m)
}

// NextReconciliation returns the next pending marker that is not currently
// reserved by another worker, reserving it. Returns ErrNoMoreElements when
// nothing is pending. The caller must finish with MarkReconciliationDone or
// ReleaseReconciliation.
func (s *Storage) NextReconciliation() (*types.ReconciliationMarker, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	keys, err := s.listKeys(reconcilePrefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if s.hasKey(reconcileResPrefix, k) {
			continue
		}
		m := &types.ReconciliationMarker{}
		if err := s.getArtifact(reconcilePrefix, k, m); err != nil {
			return nil, err
		}
		if err := s.setArtifact(reconcileResPrefix, k, time.Now()); err != nil {
			return nil, fmt.Errorf("reserve marker: %w", err)
		}
		return m, nil
	}
	return nil, ErrNoMoreElements
}

// MarkReconciliationDone removes a drained marker and its reservation.
func (s *Storage) MarkReconciliationDone(txHash types.HexBytes) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.deleteArtifact(reconcilePrefix, txHash); err != nil {
		return err
	}
	return s.deleteArtifact(reconcileResPrefix, txHash)
}

// ReleaseReconciliation puts a marker back in the queue after a failed
// replay attempt and bumps its attempt counter.
func (s *Storage) ReleaseReconciliation(txHash types.HexBytes) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	m := &types.ReconciliationMarker{}
	if err := s.getArtifact(reconcilePrefix, txHash, m); err != nil {
		return err
	}
	m.Attempts++
	if err := s.setArtifact(reconcilePrefix, txHash, m); err != nil {
		return err
	}
	return s.deleteArtifact(reconcileResPrefix, txHash)
}

// CountPendingReconciliations returns the number of queued markers,
// reserved or not.
func (s *Storage) CountPendingReconciliations() (int, error) {
	keys, err := s.listKeys(reconcilePrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

package storage

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// CreateVoteRecord stores an accepted vote keyed by its ledger transaction
// hash. Reusing a nullifier or a transaction hash fails with ErrConstraint.
// The record, its nullifier index entry and the election's cast counter
// commit in a single transaction, so an existing record always implies a
// counted vote and replays cannot tear the two apart.
func (s *Storage) CreateVoteRecord(r *types.VoteRecord) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if s.hasKey(voteRecordPrefix, r.TxHash) {
		return fmt.Errorf("tx hash %s: %w", r.TxHash.String(), ErrConstraint)
	}
	if s.hasKey(nullifierPrefix, r.Nullifier.Bytes()) {
		return fmt.Errorf("nullifier: %w", ErrConstraint)
	}
	e, err := s.Election(r.ElectionID)
	if err != nil {
		return err
	}
	e.TotalVotesCast++

	val, err := encodeArtifact(r)
	if err != nil {
		return err
	}
	eVal, err := encodeArtifact(e)
	if err != nil {
		return err
	}
	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(tx, voteRecordPrefix).Set(r.TxHash, val); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, nullifierPrefix).Set(r.Nullifier.Bytes(), r.TxHash); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, electionPrefix).Set(r.ElectionID[:], eVal); err != nil {
		return err
	}
	return tx.Commit()
}

// VoteRecord returns the vote record stored under the given ledger
// transaction hash.
func (s *Storage) VoteRecord(txHash types.HexBytes) (*types.VoteRecord, error) {
	r := &types.VoteRecord{}
	if err := s.getArtifact(voteRecordPrefix, txHash, r); err != nil {
		return nil, err
	}
	return r, nil
}

// VoteRecordByNullifier resolves a vote record through the nullifier index.
func (s *Storage) VoteRecordByNullifier(nullifier *types.BigInt) (*types.VoteRecord, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, nullifierPrefix)
	txHash, err := rd.Get(nullifier.Bytes())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.VoteRecord(txHash)
}

// HasNullifier reports whether a vote with this nullifier was already
// recorded locally.
func (s *Storage) HasNullifier(nullifier *types.BigInt) bool {
	return s.hasKey(nullifierPrefix, nullifier.Bytes())
}

// SetVoteVerification updates the verification status of a stored vote.
func (s *Storage) SetVoteVerification(txHash types.HexBytes, status types.VerificationStatus) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	r, err := s.VoteRecord(txHash)
	if err != nil {
		return err
	}
	r.VerificationStatus = status
	return s.setArtifact(voteRecordPrefix, txHash, r)
}

// ListVoteRecords returns the stored votes for an election (zero uuid means
// all elections).
func (s *Storage) ListVoteRecords(electionID uuid.UUID) ([]*types.VoteRecord, error) {
	keys, err := s.listKeys(voteRecordPrefix)
	if err != nil {
		return nil, err
	}
	var records []*types.VoteRecord
	for _, k := range keys {
		r, err := s.VoteRecord(k)
		if err != nil {
			return nil, err
		}
		if electionID != uuid.Nil && r.ElectionID != electionID {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

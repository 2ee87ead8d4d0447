package storage

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// CreateElection stores a new election.
func (s *Storage) CreateElection(e *types.Election) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if s.hasKey(electionPrefix, e.ID[:]) {
		return fmt.Errorf("election %s: %w", e.ID, ErrConstraint)
	}
	return s.setArtifact(electionPrefix, e.ID[:], e)
}

// Election returns the election with the given id.
func (s *Storage) Election(id uuid.UUID) (*types.Election, error) {
	e := &types.Election{}
	if err := s.getArtifact(electionPrefix, id[:], e); err != nil {
		return nil, err
	}
	return e, nil
}

// updateElection applies fn to the stored election under the global lock and
// persists the result.
func (s *Storage) updateElection(id uuid.UUID, fn func(*types.Election) error) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	e, err := s.Election(id)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}
	return s.setArtifact(electionPrefix, id[:], e)
}

// SetChainElectionID binds the ledger-assigned numeric election id to the
// local election. Rebinding to a different id is rejected.
func (s *Storage) SetChainElectionID(id uuid.UUID, chainID uint64) error {
	return s.updateElection(id, func(e *types.Election) error {
		if e.ChainElectionID != nil && *e.ChainElectionID != chainID {
			return fmt.Errorf("election already bound to ledger id %d: %w",
				*e.ChainElectionID, types.ErrInvalidState)
		}
		e.ChainElectionID = &chainID
		return nil
	})
}

// SetElectionState advances the election state with a compare-and-swap: the
// transition commits only if the stored state still equals from. A stale
// from fails with types.ErrInvalidState, so concurrent transition attempts
// admit exactly one winner.
func (s *Storage) SetElectionState(id uuid.UUID, from, to types.ElectionState) error {
	return s.updateElection(id, func(e *types.Election) error {
		if e.State != from {
			return fmt.Errorf("election is %s, expected %s: %w", e.State, from, types.ErrInvalidState)
		}
		e.State = to
		return nil
	})
}

// AddEligibleVoter adds a voter to the election roll and bumps the
// registered counter. The operation is idempotent.
func (s *Storage) AddEligibleVoter(electionID, voterID uuid.UUID) error {
	return s.updateElection(electionID, func(e *types.Election) error {
		for _, v := range e.EligibleVoters {
			if v == voterID {
				return nil
			}
		}
		e.EligibleVoters = append(e.EligibleVoters, voterID)
		e.TotalVotersRegistered++
		return nil
	})
}

// FreezeResults stores the final ledger tally and marks the results as
// published. Freezing again with the same tally is a no-op, so the
// operation can be retried after a partial failure.
func (s *Storage) FreezeResults(id uuid.UUID, results map[int]uint64) error {
	return s.updateElection(id, func(e *types.Election) error {
		e.Results = results
		e.ResultsPublished = true
		return nil
	})
}

// ListElections returns all stored elections, optionally filtered by state,
// skipping offset entries and returning at most limit (0 means no limit).
func (s *Storage) ListElections(state types.ElectionState, offset, limit int) ([]*types.Election, error) {
	keys, err := s.listKeys(electionPrefix)
	if err != nil {
		return nil, err
	}
	var elections []*types.Election
	skipped := 0
	for _, k := range keys {
		id, err := uuid.FromBytes(k)
		if err != nil {
			continue
		}
		e, err := s.Election(id)
		if err != nil {
			return nil, err
		}
		if state != "" && e.State != state {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		elections = append(elections, e)
		if limit > 0 && len(elections) >= limit {
			break
		}
	}
	return elections, nil
}

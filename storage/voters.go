package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// CreateVoter stores a new voter identity and its lookup indexes. It fails
// with ErrConstraint if the user reference or the commitment is already
// bound to another identity. The record and both indexes commit in a single
// transaction.
func (s *Storage) CreateVoter(v *types.VoterIdentity) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if s.hasKey(voterUserRefPrefix, []byte(v.UserRef)) {
		return fmt.Errorf("user reference %q: %w", v.UserRef, ErrConstraint)
	}
	if s.hasKey(commitmentPrefix, v.Commitment.Bytes()) {
		return fmt.Errorf("commitment: %w", ErrConstraint)
	}

	val, err := encodeArtifact(v)
	if err != nil {
		return err
	}
	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(tx, voterPrefix).Set(v.ID[:], val); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, voterUserRefPrefix).Set([]byte(v.UserRef), v.ID[:]); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, commitmentPrefix).Set(v.Commitment.Bytes(), v.ID[:]); err != nil {
		return err
	}
	return tx.Commit()
}

// Voter returns the voter identity with the given id.
func (s *Storage) Voter(id uuid.UUID) (*types.VoterIdentity, error) {
	v := &types.VoterIdentity{}
	if err := s.getArtifact(voterPrefix, id[:], v); err != nil {
		return nil, err
	}
	return v, nil
}

// VoterByUserRef resolves a voter identity through the user-reference index.
func (s *Storage) VoterByUserRef(userRef string) (*types.VoterIdentity, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, voterUserRefPrefix)
	idBytes, err := rd.Get([]byte(userRef))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("corrupt user reference index: %w", err)
	}
	return s.Voter(id)
}

// VoterByCommitment resolves a voter identity through the commitment index.
func (s *Storage) VoterByCommitment(commitment *types.BigInt) (*types.VoterIdentity, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, commitmentPrefix)
	idBytes, err := rd.Get(commitment.Bytes())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("corrupt commitment index: %w", err)
	}
	return s.Voter(id)
}

// updateVoter applies fn to the stored voter under the global lock and
// persists the result.
func (s *Storage) updateVoter(id uuid.UUID, fn func(*types.VoterIdentity) error) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	v, err := s.Voter(id)
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}
	return s.setArtifact(voterPrefix, id[:], v)
}

// SetVoterApproved flips a pending voter to approved and records the ledger
// registration transaction. Approving a non-pending voter fails with
// ErrInvalidState from types.
func (s *Storage) SetVoterApproved(id uuid.UUID, txHash types.HexBytes) error {
	return s.updateVoter(id, func(v *types.VoterIdentity) error {
		if v.Status != types.VoterStatusPending {
			return fmt.Errorf("voter is %s: %w", v.Status, types.ErrInvalidState)
		}
		v.Status = types.VoterStatusApproved
		v.RegisteredOnChain = true
		v.RegistrationTxHash = txHash
		v.RegistrationDate = time.Now()
		return nil
	})
}

// SetVoterRejected flips a pending voter to rejected. Rejection is terminal.
func (s *Storage) SetVoterRejected(id uuid.UUID) error {
	return s.updateVoter(id, func(v *types.VoterIdentity) error {
		if v.Status != types.VoterStatusPending {
			return fmt.Errorf("voter is %s: %w", v.Status, types.ErrInvalidState)
		}
		v.Status = types.VoterStatusRejected
		return nil
	})
}

// AddEligibleElection marks the voter as eligible for the election. The
// operation is idempotent.
func (s *Storage) AddEligibleElection(voterID, electionID uuid.UUID) error {
	return s.updateVoter(voterID, func(v *types.VoterIdentity) error {
		for _, e := range v.EligibleElections {
			if e == electionID {
				return nil
			}
		}
		v.EligibleElections = append(v.EligibleElections, electionID)
		return nil
	})
}

// AppendVotedElection records a cast vote in the voter's history. A second
// entry for the same election fails with types.ErrAlreadyVoted.
func (s *Storage) AppendVotedElection(voterID uuid.UUID, voted types.VotedElection) error {
	return s.updateVoter(voterID, func(v *types.VoterIdentity) error {
		for _, ve := range v.VotedElections {
			if ve.ElectionID == voted.ElectionID {
				return types.ErrAlreadyVoted
			}
		}
		v.VotedElections = append(v.VotedElections, voted)
		return nil
	})
}

// ListVoters returns all stored voter identities, optionally filtered by
// status, skipping offset entries and returning at most limit (0 means no
// limit). Ordering follows the key order of the underlying store.
func (s *Storage) ListVoters(status types.VoterStatus, offset, limit int) ([]*types.VoterIdentity, error) {
	keys, err := s.listKeys(voterPrefix)
	if err != nil {
		return nil, err
	}
	var voters []*types.VoterIdentity
	skipped := 0
	for _, k := range keys {
		id, err := uuid.FromBytes(k)
		if err != nil {
			continue
		}
		v, err := s.Voter(id)
		if err != nil {
			return nil, err
		}
		if status != "" && v.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		voters = append(voters, v)
		if limit > 0 && len(voters) >= limit {
			break
		}
	}
	return voters, nil
}

// CountVoters returns the number of voters with the given status ("" counts
// all).
func (s *Storage) CountVoters(status types.VoterStatus) (int, error) {
	voters, err := s.ListVoters(status, 0, 0)
	if err != nil {
		return 0, err
	}
	return len(voters), nil
}

// Package voter manages the voter identity lifecycle: registration with
// commitment derivation, admin approval mirrored to the ledger, terminal
// rejection and the per-voter voting history.
package voter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/crypto/commitment"
	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/types"
)

// Ledger is the subset of the ledger gateway the voter service uses.
type Ledger interface {
	RegisterVoter(commitment *big.Int) (*common.Hash, error)
	IsVoterRegistered(ctx context.Context, commitment *big.Int) (bool, error)
	WaitTx(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// Service implements the voter lifecycle on top of local storage and the
// ledger gateway.
type Service struct {
	store       *storage.Storage
	ledger      Ledger
	commitments *commitment.Engine
}

// New creates a new voter service.
func New(store *storage.Storage, ledger Ledger, commitments *commitment.Engine) *Service {
	return &Service{
		store:       store,
		ledger:      ledger,
		commitments: commitments,
	}
}

// Register derives the voter's secret and commitment from the user reference
// and stores a new pending identity. Registering the same user reference
// twice fails with types.ErrDuplicateRegistration. The voter is not touched
// on the ledger until an admin approves it.
func (s *Service) Register(ctx context.Context, userRef string) (*types.VoterIdentity, error) {
	if userRef == "" {
		return nil, fmt.Errorf("empty user reference")
	}
	secret := s.commitments.DeriveSecret(userRef)
	comm, err := commitment.CommitmentOf(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to compute commitment: %w", err)
	}

	v := &types.VoterIdentity{
		ID:         uuid.New(),
		UserRef:    userRef,
		Secret:     (*types.BigInt)(secret),
		Commitment: (*types.BigInt)(comm),
		Status:     types.VoterStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateVoter(v); err != nil {
		if errors.Is(err, storage.ErrConstraint) {
			return nil, fmt.Errorf("%q: %w", userRef, types.ErrDuplicateRegistration)
		}
		return nil, fmt.Errorf("failed to store voter: %w", err)
	}

	s.audit(types.AuditVoterRegister, types.AuditOutcomeSuccess, userRef, v.ID, "", "")
	log.Infow("voter registered", "voterId", v.ID.String(), "userRef", userRef)
	return v, nil
}

// Approve flips a pending voter to approved and registers its commitment on
// the ledger. If the commitment is already on the ledger (a previous approval
// committed there but failed locally), the ledger write is skipped and only
// the local status is repaired, making the operation safely retriable.
func (s *Service) Approve(ctx context.Context, voterID uuid.UUID, adminRef string) (*types.VoterIdentity, error) {
	v, err := s.store.Voter(voterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	if v.Status != types.VoterStatusPending {
		return nil, fmt.Errorf("voter is %s: %w", v.Status, types.ErrInvalidState)
	}

	registered, err := s.ledger.IsVoterRegistered(ctx, v.Commitment.MathBigInt())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}
	txHash := v.RegistrationTxHash
	if !registered {
		hash, err := s.ledger.RegisterVoter(v.Commitment.MathBigInt())
		if err != nil {
			s.audit(types.AuditVoterApprove, types.AuditOutcomeFailure, adminRef, voterID, "", err.Error())
			return nil, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
		}
		if _, err := s.ledger.WaitTx(ctx, *hash); err != nil {
			s.audit(types.AuditVoterApprove, types.AuditOutcomeFailure, adminRef, voterID, "", err.Error())
			return nil, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
		}
		txHash = hash.Bytes()
	} else {
		log.Warnw("commitment already on ledger, repairing local state",
			"voterId", voterID.String())
	}

	if err := s.store.SetVoterApproved(voterID, txHash); err != nil {
		return nil, fmt.Errorf("failed to persist approval: %w", err)
	}
	s.audit(types.AuditVoterApprove, types.AuditOutcomeSuccess, adminRef, voterID, "", "")
	log.Infow("voter approved", "voterId", voterID.String(), "tx", txHash.String())
	return s.store.Voter(voterID)
}

// Reject flips a pending voter to rejected. Rejection is terminal: a
// rejected voter can neither be approved later nor register again under the
// same user reference.
func (s *Service) Reject(_ context.Context, voterID uuid.UUID, adminRef, reason string) error {
	if err := s.store.SetVoterRejected(voterID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.ErrNotFound
		}
		return err
	}
	s.audit(types.AuditVoterReject, types.AuditOutcomeSuccess, adminRef, voterID, reason, "")
	log.Infow("voter rejected", "voterId", voterID.String(), "reason", reason)
	return nil
}

// Voter returns the voter identity with the given id.
func (s *Service) Voter(voterID uuid.UUID) (*types.VoterIdentity, error) {
	v, err := s.store.Voter(voterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// VoterByUserRef returns the voter identity bound to the user reference.
func (s *Service) VoterByUserRef(userRef string) (*types.VoterIdentity, error) {
	v, err := s.store.VoterByUserRef(userRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// List returns stored voters filtered by status ("" matches all).
func (s *Service) List(status types.VoterStatus, offset, limit int) ([]*types.VoterIdentity, error) {
	return s.store.ListVoters(status, offset, limit)
}

// History returns the elections the voter has voted in.
func (s *Service) History(voterID uuid.UUID) ([]types.VotedElection, error) {
	v, err := s.Voter(voterID)
	if err != nil {
		return nil, err
	}
	return v.VotedElections, nil
}

// HasVotedIn reports whether the voter's local history contains the
// election.
func (s *Service) HasVotedIn(voterID, electionID uuid.UUID) (bool, error) {
	v, err := s.Voter(voterID)
	if err != nil {
		return false, err
	}
	return v.HasVotedIn(electionID), nil
}

func (s *Service) audit(action types.AuditAction, outcome types.AuditOutcome,
	actorRef string, voterID uuid.UUID, description, errMessage string,
) {
	if err := s.store.AppendAudit(&types.AuditEntry{
		ID:           uuid.New(),
		Action:       action,
		Outcome:      outcome,
		ActorRef:     actorRef,
		TargetKind:   types.TargetVoter,
		TargetID:     voterID.String(),
		Description:  description,
		ErrorMessage: errMessage,
		Timestamp:    time.Now(),
	}); err != nil {
		log.Warnw("failed to append audit entry", "action", string(action), "err", err)
	}
}

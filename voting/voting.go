// Package voting implements the anonymous vote submission pipeline: local
// pre-checks, proof generation, ledger submission and local bookkeeping,
// plus after-the-fact vote verification.
package voting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	rapidsnarktypes "github.com/iden3/go-rapidsnark/types"
	"go.vocdoni.io/dvote/log"

	"github.com/google/uuid"
	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/types"
	"github.com/vocdoni/zkvote-coordinator/zkproof"
)

// Ledger is the subset of the ledger gateway the voting pipeline uses.
type Ledger interface {
	IsNullifierUsed(ctx context.Context, nullifier *big.Int) (bool, error)
	CastVote(ctx context.Context, chainElectionID uint64, candidateID int,
		proof *rapidsnarktypes.ZKProof) (*common.Hash, error)
	TxStatus(ctx context.Context, hash common.Hash) (bool, error)
}

// Prover generates and verifies vote proofs.
type Prover interface {
	Prove(inputs *zkproof.VoteInputs) (*zkproof.VoteProof, error)
	VerifyProof(proof *rapidsnarktypes.ZKProof) error
}

// Service implements the vote submission pipeline.
type Service struct {
	store  *storage.Storage
	ledger Ledger
	prover Prover
}

// New creates a new voting service.
func New(store *storage.Storage, ledger Ledger, prover Prover) *Service {
	return &Service{store: store, ledger: ledger, prover: prover}
}

// CastVote runs the full submission pipeline for one ballot. The checks run
// cheapest-first; the ledger is the final arbiter of double votes, the local
// checks only fail fast. Once the ledger accepts the ballot the vote is
// final: a local bookkeeping failure afterwards queues a reconciliation
// marker instead of failing the call.
func (s *Service) CastVote(ctx context.Context, electionID, voterID uuid.UUID,
	candidateID int, sourceAddress string,
) (*types.VoteRecord, error) {
	record, pending, err := s.castVote(ctx, electionID, voterID, candidateID, sourceAddress)
	if err != nil {
		s.audit(types.AuditVoteCast, types.AuditOutcomeFailure, electionID.String(), err.Error(), nil)
		return nil, err
	}
	// the pending path already wrote its own audit entry
	if !pending {
		s.audit(types.AuditVoteCast, types.AuditOutcomeSuccess, electionID.String(), "", record.TxHash)
	}
	return record, nil
}

// castVote runs the pipeline and reports whether the accepted vote is
// pending local reconciliation.
func (s *Service) castVote(ctx context.Context, electionID, voterID uuid.UUID,
	candidateID int, sourceAddress string,
) (record *types.VoteRecord, pending bool, err error) {
	e, err := s.store.Election(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, types.ErrNotFound
		}
		return nil, false, err
	}
	if e.State != types.ElectionStateVoting {
		return nil, false, fmt.Errorf("election is %s: %w", e.State, types.ErrInvalidState)
	}
	if !e.OnLedger() {
		return nil, false, types.ErrNotOnLedger
	}
	if candidateID < 0 || candidateID >= len(e.Candidates) {
		return nil, false, fmt.Errorf("candidate %d out of range [0,%d)", candidateID, len(e.Candidates))
	}

	v, err := s.store.Voter(voterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, types.ErrNotFound
		}
		return nil, false, err
	}
	if v.Status != types.VoterStatusApproved || !v.RegisteredOnChain {
		return nil, false, fmt.Errorf("voter is %s: %w", v.Status, types.ErrNotEligible)
	}
	if !e.IsVoterEligible(voterID) {
		return nil, false, types.ErrNotEligible
	}
	if v.HasVotedIn(electionID) {
		return nil, false, types.ErrAlreadyVoted
	}

	// generate the proof; this fixes the nullifier for this (voter, election)
	proof, err := s.prover.Prove(&zkproof.VoteInputs{
		VoterSecret:     v.Secret.MathBigInt(),
		CandidateID:     candidateID,
		ChainElectionID: *e.ChainElectionID,
		MaxCandidates:   len(e.Candidates),
	})
	if err != nil {
		return nil, false, err
	}

	// fail fast before burning a transaction; the contract would reject the
	// consumed nullifier anyway
	used, err := s.ledger.IsNullifierUsed(ctx, proof.Nullifier)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}
	if used {
		return nil, false, types.ErrAlreadyVoted
	}

	if err := s.prover.VerifyProof(proof.Proof); err != nil {
		return nil, false, err
	}

	txHash, err := s.ledger.CastVote(ctx, *e.ChainElectionID, candidateID, proof.Proof)
	if err != nil {
		// a concurrent ballot may have consumed the nullifier between the
		// fail-fast check and the submission; report that as a double vote
		if used, uErr := s.ledger.IsNullifierUsed(ctx, proof.Nullifier); uErr == nil && used {
			return nil, false, types.ErrAlreadyVoted
		}
		return nil, false, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}

	record = &types.VoteRecord{
		ElectionID:         electionID,
		VoterID:            voterID,
		Nullifier:          (*types.BigInt)(proof.Nullifier),
		CandidateID:        candidateID,
		Proof:              proof.Proof,
		TxHash:             txHash.Bytes(),
		Timestamp:          time.Now(),
		VerificationStatus: types.VerificationStatusVerified,
		SourceAddress:      sourceAddress,
	}
	if err := s.recordLocally(record); err != nil {
		// the ledger accepted the vote; queue the local side for replay
		log.Errorw(err, "vote accepted on ledger but local bookkeeping failed, queuing reconciliation")
		if qErr := s.store.PushReconciliation(&types.ReconciliationMarker{
			ElectionID:  electionID,
			VoterID:     voterID,
			Nullifier:   record.Nullifier,
			CandidateID: candidateID,
			TxHash:      record.TxHash,
		}); qErr != nil {
			log.Errorw(qErr, "failed to queue reconciliation marker")
		}
		s.audit(types.AuditVoteCast, types.AuditOutcomePending, electionID.String(),
			"accepted on ledger, local bookkeeping pending reconciliation", record.TxHash)
		pending = true
	}
	log.Infow("vote cast",
		"electionId", electionID.String(), "tx", record.TxHash.String())
	return record, pending, nil
}

// recordLocally writes the accepted vote into local storage: the vote
// record with the election counter, then the voter's history entry. The
// counter commits atomically with the record, so replays stay in step.
func (s *Service) recordLocally(record *types.VoteRecord) error {
	if err := s.store.CreateVoteRecord(record); err != nil {
		return err
	}
	return s.store.AppendVotedElection(record.VoterID, types.VotedElection{
		ElectionID: record.ElectionID,
		VotedAt:    record.Timestamp,
		Nullifier:  record.Nullifier,
		TxHash:     record.TxHash,
	})
}

// VerifyResult is the outcome of re-verifying an accepted vote: the
// re-checked record together with the title of the election it belongs to.
type VerifyResult struct {
	Record        *types.VoteRecord
	ElectionTitle string
}

// VerifyVote re-checks an accepted vote: the ledger transaction must have
// succeeded and the stored proof must still verify. The stored verification
// status is updated with the outcome.
func (s *Service) VerifyVote(ctx context.Context, txHash types.HexBytes) (*VerifyResult, error) {
	record, err := s.store.VoteRecord(txHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	e, err := s.store.Election(record.ElectionID)
	if err != nil {
		return nil, err
	}

	status := types.VerificationStatusVerified
	var verifyErr error
	ok, err := s.ledger.TxStatus(ctx, common.BytesToHash(txHash))
	if err != nil || !ok {
		status = types.VerificationStatusFailed
		verifyErr = fmt.Errorf("ledger transaction not confirmed: %w", err)
	} else if err := s.prover.VerifyProof(record.Proof); err != nil {
		status = types.VerificationStatusFailed
		verifyErr = err
	}

	if err := s.store.SetVoteVerification(txHash, status); err != nil {
		return nil, err
	}
	record.VerificationStatus = status
	result := &VerifyResult{Record: record, ElectionTitle: e.Title}
	if verifyErr != nil {
		s.audit(types.AuditVoteVerify, types.AuditOutcomeFailure, txHash.String(), verifyErr.Error(), txHash)
		return result, fmt.Errorf("%w: %w", types.ErrProofVerification, verifyErr)
	}
	s.audit(types.AuditVoteVerify, types.AuditOutcomeSuccess, txHash.String(), "", txHash)
	return result, nil
}

// Votes returns the stored vote records of one election.
func (s *Service) Votes(electionID uuid.UUID) ([]*types.VoteRecord, error) {
	return s.store.ListVoteRecords(electionID)
}

// VoteByNullifier resolves a stored vote through the nullifier index.
func (s *Service) VoteByNullifier(nullifier *types.BigInt) (*types.VoteRecord, error) {
	record, err := s.store.VoteRecordByNullifier(nullifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) audit(action types.AuditAction, outcome types.AuditOutcome,
	targetID, errMessage string, txHash types.HexBytes,
) {
	if err := s.store.AppendAudit(&types.AuditEntry{
		ID:           uuid.New(),
		Action:       action,
		Outcome:      outcome,
		TargetKind:   types.TargetVote,
		TargetID:     targetID,
		ErrorMessage: errMessage,
		TxHash:       txHash,
		Timestamp:    time.Now(),
	}); err != nil {
		log.Warnw("failed to append audit entry", "action", string(action), "err", err)
	}
}

// Package election implements the election lifecycle: local-first creation
// mirrored to the ledger, the strict forward-only state machine
// (created -> registration -> voting -> ended), eligibility management and
// result publication.
package election

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/types"
)

// Ledger is the subset of the ledger gateway the election service uses.
type Ledger interface {
	CreateElection(ctx context.Context, title, description string,
		startTime, endTime time.Time, candidateCount int) (uint64, *common.Hash, error)
	StartRegistration(chainElectionID uint64) (*common.Hash, error)
	StartVoting(chainElectionID uint64) (*common.Hash, error)
	EndElection(chainElectionID uint64) (*common.Hash, error)
	GetResults(ctx context.Context, chainElectionID uint64, candidateCount int) (map[int]uint64, error)
	WaitTx(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// Service implements the election lifecycle on top of local storage and the
// ledger gateway.
type Service struct {
	store  *storage.Storage
	ledger Ledger
}

// New creates a new election service.
func New(store *storage.Storage, ledger Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

// CreateParams are the inputs for creating an election.
type CreateParams struct {
	Title        string
	Description  string
	ElectionType types.ElectionType
	Candidates   []types.Candidate
	StartTime    time.Time
	EndTime      time.Time
	CreatedBy    string
}

func (p *CreateParams) validate() error {
	if p.Title == "" {
		return fmt.Errorf("empty title")
	}
	if len(p.Candidates) < 1 {
		return fmt.Errorf("an election needs at least one candidate")
	}
	// candidate ids are the dense range [0, n), they index the on-ledger
	// tally array
	for i, cand := range p.Candidates {
		if cand.ID != i {
			return fmt.Errorf("candidate ids must be consecutive starting at 0, got %d at position %d", cand.ID, i)
		}
		if cand.Name == "" {
			return fmt.Errorf("candidate %d has no name", i)
		}
	}
	if !p.EndTime.After(p.StartTime) {
		return fmt.Errorf("end time must be after start time")
	}
	return nil
}

// Create stores the election locally and mirrors it to the ledger. The local
// record is written first; if the ledger write fails the election stays
// stored without a ledger binding and the caller can retry the mirror with
// RetryLedgerCreate. A half-created election is never exposed for
// registration because every transition requires the ledger binding.
func (s *Service) Create(ctx context.Context, params *CreateParams) (*types.Election, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	e := &types.Election{
		ID:           uuid.New(),
		Title:        params.Title,
		Description:  params.Description,
		ElectionType: params.ElectionType,
		Candidates:   params.Candidates,
		StartTime:    params.StartTime,
		EndTime:      params.EndTime,
		State:        types.ElectionStateCreated,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateElection(e); err != nil {
		return nil, fmt.Errorf("failed to store election: %w", err)
	}

	if err := s.mirrorToLedger(ctx, e); err != nil {
		s.audit(types.AuditElectionCreate, types.AuditOutcomeFailure, e.CreatedBy, e.ID, err.Error(), nil)
		log.Warnw("election stored locally but ledger mirror failed",
			"electionId", e.ID.String(), "err", err)
		return e, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}
	s.audit(types.AuditElectionCreate, types.AuditOutcomeSuccess, e.CreatedBy, e.ID, "", nil)
	return s.Election(e.ID)
}

// RetryLedgerCreate retries the ledger mirror of an election whose creation
// transaction failed. It is a no-op for elections already bound to a ledger
// id.
func (s *Service) RetryLedgerCreate(ctx context.Context, electionID uuid.UUID) (*types.Election, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.OnLedger() {
		return e, nil
	}
	if err := s.mirrorToLedger(ctx, e); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}
	s.audit(types.AuditElectionCreate, types.AuditOutcomeSuccess, e.CreatedBy, e.ID, "", nil)
	return s.Election(electionID)
}

func (s *Service) mirrorToLedger(ctx context.Context, e *types.Election) error {
	chainID, txHash, err := s.ledger.CreateElection(ctx, e.Title, e.Description,
		e.StartTime, e.EndTime, len(e.Candidates))
	if err != nil {
		return err
	}
	if err := s.store.SetChainElectionID(e.ID, chainID); err != nil {
		return fmt.Errorf("failed to bind ledger election id: %w", err)
	}
	log.Infow("election mirrored to ledger",
		"electionId", e.ID.String(), "chainElectionId", chainID, "tx", txHash.Hex())
	return nil
}

// transition performs one step of the forward-only state machine: the ledger
// call first, then the local compare-and-swap. A concurrent transition loses
// the CAS and gets types.ErrInvalidState.
func (s *Service) transition(ctx context.Context, electionID uuid.UUID, adminRef string,
	from, to types.ElectionState, action types.AuditAction,
	ledgerCall func(uint64) (*common.Hash, error),
) (*types.Election, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.State != from {
		return nil, fmt.Errorf("election is %s, expected %s: %w", e.State, from, types.ErrInvalidState)
	}
	if !e.OnLedger() {
		return nil, types.ErrNotOnLedger
	}

	hash, err := ledgerCall(*e.ChainElectionID)
	if err != nil {
		// a concurrent transition may have advanced the election between
		// the state read and the submission; report the lost race as a
		// state conflict, not a ledger failure
		if cur, rErr := s.Election(electionID); rErr == nil && cur.State != from {
			return nil, fmt.Errorf("election is %s, expected %s: %w", cur.State, from, types.ErrInvalidState)
		}
		s.audit(action, types.AuditOutcomeFailure, adminRef, electionID, err.Error(), nil)
		return nil, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}
	if _, err := s.ledger.WaitTx(ctx, *hash); err != nil {
		s.audit(action, types.AuditOutcomeFailure, adminRef, electionID, err.Error(), nil)
		return nil, fmt.Errorf("%w: %w", types.ErrLedgerWrite, err)
	}
	if err := s.store.SetElectionState(electionID, from, to); err != nil {
		return nil, err
	}
	s.audit(action, types.AuditOutcomeSuccess, adminRef, electionID, "", hash.Bytes())
	log.Infow("election transitioned",
		"electionId", electionID.String(), "from", string(from), "to", string(to))
	return s.Election(electionID)
}

// StartRegistration opens the registration phase.
func (s *Service) StartRegistration(ctx context.Context, electionID uuid.UUID, adminRef string) (*types.Election, error) {
	return s.transition(ctx, electionID, adminRef,
		types.ElectionStateCreated, types.ElectionStateRegistration,
		types.AuditElectionStart, s.ledger.StartRegistration)
}

// StartVoting opens the voting phase.
func (s *Service) StartVoting(ctx context.Context, electionID uuid.UUID, adminRef string) (*types.Election, error) {
	return s.transition(ctx, electionID, adminRef,
		types.ElectionStateRegistration, types.ElectionStateVoting,
		types.AuditElectionStart, s.ledger.StartVoting)
}

// End closes the election on the ledger and locally, then freezes the final
// tally. If fetching or storing the tally fails the election is still ended;
// PublishResults can be retried until the tally freezes.
func (s *Service) End(ctx context.Context, electionID uuid.UUID, adminRef string) (*types.Election, error) {
	e, err := s.transition(ctx, electionID, adminRef,
		types.ElectionStateVoting, types.ElectionStateEnded,
		types.AuditElectionEnd, s.ledger.EndElection)
	if err != nil {
		return nil, err
	}
	if err := s.publishResults(ctx, e); err != nil {
		log.Warnw("election ended but result publication failed, retry with PublishResults",
			"electionId", electionID.String(), "err", err)
	}
	return s.Election(electionID)
}

// PublishResults fetches the final tally from the ledger and freezes it
// locally. Only ended elections have final tallies.
func (s *Service) PublishResults(ctx context.Context, electionID uuid.UUID) (*types.Election, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.State != types.ElectionStateEnded {
		return nil, fmt.Errorf("election is %s: %w", e.State, types.ErrInvalidState)
	}
	if err := s.publishResults(ctx, e); err != nil {
		return nil, err
	}
	return s.Election(electionID)
}

func (s *Service) publishResults(ctx context.Context, e *types.Election) error {
	if !e.OnLedger() {
		return types.ErrNotOnLedger
	}
	results, err := s.ledger.GetResults(ctx, *e.ChainElectionID, len(e.Candidates))
	if err != nil {
		s.audit(types.AuditResultsPublish, types.AuditOutcomeFailure, "", e.ID, err.Error(), nil)
		return fmt.Errorf("failed to fetch results from ledger: %w", err)
	}
	if err := s.store.FreezeResults(e.ID, results); err != nil {
		s.audit(types.AuditResultsPublish, types.AuditOutcomeFailure, "", e.ID, err.Error(), nil)
		return fmt.Errorf("failed to freeze results: %w", err)
	}
	s.audit(types.AuditResultsPublish, types.AuditOutcomeSuccess, "", e.ID, "", nil)
	log.Infow("results published", "electionId", e.ID.String())
	return nil
}

// AddEligibleVoter puts an approved voter on the election roll. Eligibility
// can only change while registration is open, and is mirrored on the voter
// record.
func (s *Service) AddEligibleVoter(electionID, voterID uuid.UUID) error {
	e, err := s.Election(electionID)
	if err != nil {
		return err
	}
	if e.State != types.ElectionStateRegistration {
		return fmt.Errorf("election is %s: %w", e.State, types.ErrInvalidState)
	}
	v, err := s.store.Voter(voterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.ErrNotFound
		}
		return err
	}
	if v.Status != types.VoterStatusApproved {
		return fmt.Errorf("voter is %s: %w", v.Status, types.ErrNotEligible)
	}
	if err := s.store.AddEligibleVoter(electionID, voterID); err != nil {
		return err
	}
	return s.store.AddEligibleElection(voterID, electionID)
}

// Election returns the election with the given id.
func (s *Service) Election(electionID uuid.UUID) (*types.Election, error) {
	e, err := s.store.Election(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns stored elections filtered by state ("" matches all).
func (s *Service) List(state types.ElectionState, offset, limit int) ([]*types.Election, error) {
	return s.store.ListElections(state, offset, limit)
}

// Results returns the election tally: the frozen local copy once published,
// otherwise a live read from the ledger for elections already past voting.
func (s *Service) Results(ctx context.Context, electionID uuid.UUID) (map[int]uint64, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.ResultsPublished {
		return e.Results, nil
	}
	if e.State != types.ElectionStateEnded {
		return nil, fmt.Errorf("election is %s: %w", e.State, types.ErrInvalidState)
	}
	if !e.OnLedger() {
		return nil, types.ErrNotOnLedger
	}
	return s.ledger.GetResults(ctx, *e.ChainElectionID, len(e.Candidates))
}

// Statistics summarizes participation in one election.
type Statistics struct {
	ElectionID       uuid.UUID           `json:"electionId"`
	State            types.ElectionState `json:"state"`
	RegisteredVoters int                 `json:"registeredVoters"`
	VotesCast        int                 `json:"votesCast"`
	Turnout          float64             `json:"turnout"`
}

// Stats returns participation statistics for one election.
func (s *Service) Stats(electionID uuid.UUID) (*Statistics, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		ElectionID:       e.ID,
		State:            e.State,
		RegisteredVoters: e.TotalVotersRegistered,
		VotesCast:        e.TotalVotesCast,
	}
	if e.TotalVotersRegistered > 0 {
		stats.Turnout = float64(e.TotalVotesCast) / float64(e.TotalVotersRegistered)
	}
	return stats, nil
}

func (s *Service) audit(action types.AuditAction, outcome types.AuditOutcome,
	actorRef string, electionID uuid.UUID, errMessage string, txHash []byte,
) {
	if err := s.store.AppendAudit(&types.AuditEntry{
		ID:           uuid.New(),
		Action:       action,
		Outcome:      outcome,
		ActorRef:     actorRef,
		TargetKind:   types.TargetElection,
		TargetID:     electionID.String(),
		ErrorMessage: errMessage,
		TxHash:       txHash,
		Timestamp:    time.Now(),
	}); err != nil {
		log.Warnw("failed to append audit entry", "action", string(action), "err", err)
	}
}

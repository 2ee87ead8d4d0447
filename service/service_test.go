package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/zkvote-coordinator/crypto/commitment"
	"github.com/vocdoni/zkvote-coordinator/election"
	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/types"
	"github.com/vocdoni/zkvote-coordinator/voter"
	"github.com/vocdoni/zkvote-coordinator/voting"
)

type testCoordinator struct {
	store       *storage.Storage
	ledger      *MockLedger
	commitments *commitment.Engine
	voters      *voter.Service
	elections   *election.Service
	votes       *voting.Service
}

func newTestCoordinator(t *testing.T) *testCoordinator {
	t.Helper()
	database, err := metadb.New(db.TypePebble, filepath.Join(t.TempDir(), "db"))
	qt.Assert(t, err, qt.IsNil)
	store := storage.New(database)
	t.Cleanup(store.Close)

	commitments, err := commitment.NewEngine([]byte("test-server-key"))
	qt.Assert(t, err, qt.IsNil)
	ledger := NewMockLedger()
	return &testCoordinator{
		store:       store,
		ledger:      ledger,
		commitments: commitments,
		voters:      voter.New(store, ledger, commitments),
		elections:   election.New(store, ledger),
		votes:       voting.New(store, ledger, MockProver{}),
	}
}

// newVotingElection walks an election with the given voters through
// creation, registration (approving and enrolling every voter) and into the
// voting phase.
func (tc *testCoordinator) newVotingElection(t *testing.T, userRefs ...string) (*types.Election, []*types.VoterIdentity) {
	t.Helper()
	c := qt.New(t)
	ctx := context.Background()

	e, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Board election",
		ElectionType: types.ElectionTypeOrganizational,
		Candidates: []types.Candidate{
			{ID: 0, Name: "Alice"},
			{ID: 1, Name: "Bob"},
			{ID: 2, Name: "Carol"},
		},
		StartTime: time.Now(),
		EndTime:   time.Now().Add(24 * time.Hour),
		CreatedBy: "admin",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(e.OnLedger(), qt.IsTrue)

	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)

	var voters []*types.VoterIdentity
	for _, ref := range userRefs {
		v, err := tc.voters.Register(ctx, ref)
		c.Assert(err, qt.IsNil)
		_, err = tc.voters.Approve(ctx, v.ID, "admin")
		c.Assert(err, qt.IsNil)
		c.Assert(tc.elections.AddEligibleVoter(e.ID, v.ID), qt.IsNil)
		voters = append(voters, v)
	}

	_, err = tc.elections.StartVoting(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)
	e, err = tc.elections.Election(e.ID)
	c.Assert(err, qt.IsNil)
	return e, voters
}

func TestFullElectionLifecycle(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, voters := tc.newVotingElection(t, "alice@example.com", "bob@example.com", "carol@example.com")
	c.Assert(e.State, qt.Equals, types.ElectionStateVoting)
	c.Assert(e.TotalVotersRegistered, qt.Equals, 3)

	// everyone votes, two for candidate 0 and one for candidate 2
	for i, v := range voters {
		candidate := 0
		if i == 2 {
			candidate = 2
		}
		record, err := tc.votes.CastVote(ctx, e.ID, v.ID, candidate, "10.0.0.1")
		c.Assert(err, qt.IsNil)
		c.Assert(record.Nullifier, qt.IsNotNil)
		c.Assert(record.VerificationStatus, qt.Equals, types.VerificationStatusVerified)
	}

	// close the election; the tally freezes from the ledger
	closed, err := tc.elections.End(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)
	c.Assert(closed.State, qt.Equals, types.ElectionStateEnded)
	c.Assert(closed.ResultsPublished, qt.IsTrue)
	c.Assert(closed.Results[0], qt.Equals, uint64(2))
	c.Assert(closed.Results[1], qt.Equals, uint64(0))
	c.Assert(closed.Results[2], qt.Equals, uint64(1))
	c.Assert(closed.TotalVotesCast, qt.Equals, 3)

	// voting history landed on the voters
	history, err := tc.voters.History(voters[0].ID)
	c.Assert(err, qt.IsNil)
	c.Assert(history, qt.HasLen, 1)
	c.Assert(history[0].ElectionID, qt.Equals, e.ID)
}

func TestDoubleVoteRejected(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, voters := tc.newVotingElection(t, "alice@example.com")
	_, err := tc.votes.CastVote(ctx, e.ID, voters[0].ID, 0, "")
	c.Assert(err, qt.IsNil)

	// a second ballot from the same voter, even for another candidate,
	// is rejected
	_, err = tc.votes.CastVote(ctx, e.ID, voters[0].ID, 1, "")
	c.Assert(err, qt.ErrorIs, types.ErrAlreadyVoted)

	results, err := tc.elections.Results(ctx, e.ID)
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState) // still voting
	c.Assert(results, qt.IsNil)
}

func TestIneligibleVoterRejected(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, _ := tc.newVotingElection(t, "alice@example.com")

	// approved but never enrolled for this election
	outsider, err := tc.voters.Register(ctx, "mallory@example.com")
	c.Assert(err, qt.IsNil)
	_, err = tc.votes.CastVote(ctx, e.ID, outsider.ID, 0, "")
	c.Assert(err, qt.ErrorIs, types.ErrNotEligible) // still pending

	_, err = tc.voters.Approve(ctx, outsider.ID, "admin")
	c.Assert(err, qt.IsNil)
	_, err = tc.votes.CastVote(ctx, e.ID, outsider.ID, 0, "")
	c.Assert(err, qt.ErrorIs, types.ErrNotEligible)
}

func TestVotingOutsidePhaseRejected(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	// election still in registration
	e, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Early election",
		ElectionType: types.ElectionTypePoll,
		Candidates:   []types.Candidate{{ID: 0, Name: "Yes"}, {ID: 1, Name: "No"}},
		StartTime:    time.Now(),
		EndTime:      time.Now().Add(time.Hour),
	})
	c.Assert(err, qt.IsNil)
	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)

	v, err := tc.voters.Register(ctx, "alice@example.com")
	c.Assert(err, qt.IsNil)
	_, err = tc.voters.Approve(ctx, v.ID, "admin")
	c.Assert(err, qt.IsNil)
	c.Assert(tc.elections.AddEligibleVoter(e.ID, v.ID), qt.IsNil)

	_, err = tc.votes.CastVote(ctx, e.ID, v.ID, 0, "")
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)
}

func TestConcurrentVotesSingleSuccess(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, voters := tc.newVotingElection(t, "alice@example.com")

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tc.votes.CastVote(ctx, e.ID, voters[0].ID, i%3, "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	c.Assert(successes, qt.Equals, 1)

	records, err := tc.votes.Votes(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 1)
}

func TestInvalidLifecycleTransitions(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Strict election",
		ElectionType: types.ElectionTypeGeneral,
		Candidates:   []types.Candidate{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}},
		StartTime:    time.Now(),
		EndTime:      time.Now().Add(time.Hour),
	})
	c.Assert(err, qt.IsNil)

	// skipping phases is rejected
	_, err = tc.elections.StartVoting(ctx, e.ID, "admin")
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)
	_, err = tc.elections.End(ctx, e.ID, "admin")
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)

	// and so is moving backwards after a legal walk
	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)
	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)
}

func TestConcurrentTransitionSingleSuccess(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	// race an election from registration into voting
	fresh, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Raced election",
		ElectionType: types.ElectionTypePoll,
		Candidates:   []types.Candidate{{ID: 0, Name: "Yes"}, {ID: 1, Name: "No"}},
		StartTime:    time.Now(),
		EndTime:      time.Now().Add(time.Hour),
	})
	c.Assert(err, qt.IsNil)
	_, err = tc.elections.StartRegistration(ctx, fresh.ID, "admin")
	c.Assert(err, qt.IsNil)

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tc.elections.StartVoting(ctx, fresh.ID, "admin")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	c.Assert(successes, qt.Equals, 1)
	got, err := tc.elections.Election(fresh.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.State, qt.Equals, types.ElectionStateVoting)
}

func TestLostTransitionRaceIsStateConflict(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Raced election",
		ElectionType: types.ElectionTypePoll,
		Candidates:   []types.Candidate{{ID: 0, Name: "Yes"}, {ID: 1, Name: "No"}},
		StartTime:    time.Now(),
		EndTime:      time.Now().Add(time.Hour),
	})
	c.Assert(err, qt.IsNil)
	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)

	// a competing transition commits between this caller's state read and
	// its ledger submission, so the ledger rejects the stale advance
	tc.ledger.BeforeTransition = func() {
		tc.ledger.BeforeTransition = nil
		_, err := tc.elections.StartVoting(ctx, e.ID, "admin")
		c.Assert(err, qt.IsNil)
	}
	_, err = tc.elections.StartVoting(ctx, e.ID, "admin")
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)

	got, err := tc.elections.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.State, qt.Equals, types.ElectionStateVoting)
}

func TestLedgerMirrorRetry(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	tc.ledger.FailCreateElection = true
	e, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Flaky election",
		ElectionType: types.ElectionTypeLocal,
		Candidates:   []types.Candidate{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}},
		StartTime:    time.Now(),
		EndTime:      time.Now().Add(time.Hour),
	})
	c.Assert(err, qt.ErrorIs, types.ErrLedgerWrite)
	c.Assert(e, qt.IsNotNil) // stored locally anyway
	c.Assert(e.OnLedger(), qt.IsFalse)

	// transitions are blocked until the mirror lands
	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.ErrorIs, types.ErrNotOnLedger)

	tc.ledger.FailCreateElection = false
	e, err = tc.elections.RetryLedgerCreate(ctx, e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(e.OnLedger(), qt.IsTrue)

	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	_, err := tc.voters.Register(ctx, "alice@example.com")
	c.Assert(err, qt.IsNil)
	_, err = tc.voters.Register(ctx, "alice@example.com")
	c.Assert(err, qt.ErrorIs, types.ErrDuplicateRegistration)
}

func TestVoteVerification(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, voters := tc.newVotingElection(t, "alice@example.com")
	record, err := tc.votes.CastVote(ctx, e.ID, voters[0].ID, 1, "")
	c.Assert(err, qt.IsNil)

	verified, err := tc.votes.VerifyVote(ctx, record.TxHash)
	c.Assert(err, qt.IsNil)
	c.Assert(verified.Record.VerificationStatus, qt.Equals, types.VerificationStatusVerified)
	c.Assert(verified.ElectionTitle, qt.Equals, e.Title)

	// also resolvable through the nullifier index
	byNullifier, err := tc.votes.VoteByNullifier(record.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(byNullifier.TxHash.String(), qt.Equals, record.TxHash.String())
}

func TestReconciliationReplay(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, voters := tc.newVotingElection(t, "alice@example.com")

	// simulate a vote the ledger accepted but local bookkeeping missed
	marker := &types.ReconciliationMarker{
		ElectionID:  e.ID,
		VoterID:     voters[0].ID,
		Nullifier:   new(types.BigInt).SetUint64(123456),
		CandidateID: 1,
		TxHash:      types.HexBytes{0xfe, 0xed},
		CreatedAt:   time.Now(),
	}
	c.Assert(tc.store.PushReconciliation(marker), qt.IsNil)

	c.Assert(tc.votes.Reconcile(ctx), qt.IsNil)

	// record, history and counter are repaired
	record, err := tc.store.VoteRecord(marker.TxHash)
	c.Assert(err, qt.IsNil)
	c.Assert(record.CandidateID, qt.Equals, 1)
	history, err := tc.voters.History(voters[0].ID)
	c.Assert(err, qt.IsNil)
	c.Assert(history, qt.HasLen, 1)
	repaired, err := tc.elections.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(repaired.TotalVotesCast, qt.Equals, 1)

	n, err := tc.store.CountPendingReconciliations()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)

	// replaying an already-drained queue is a no-op
	c.Assert(tc.votes.Reconcile(ctx), qt.IsNil)
}

func TestSingleCandidateElection(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, err := tc.elections.Create(ctx, &election.CreateParams{
		Title:        "Confirmation vote",
		ElectionType: types.ElectionTypeOrganizational,
		Candidates:   []types.Candidate{{ID: 0, Name: "Approve the proposal"}},
		StartTime:    time.Now(),
		EndTime:      time.Now().Add(24 * time.Hour),
		CreatedBy:    "admin",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(e.OnLedger(), qt.IsTrue)

	_, err = tc.elections.StartRegistration(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)
	v, err := tc.voters.Register(ctx, "alice@example.com")
	c.Assert(err, qt.IsNil)
	_, err = tc.voters.Approve(ctx, v.ID, "admin")
	c.Assert(err, qt.IsNil)
	c.Assert(tc.elections.AddEligibleVoter(e.ID, v.ID), qt.IsNil)
	_, err = tc.elections.StartVoting(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)

	record, err := tc.votes.CastVote(ctx, e.ID, v.ID, 0, "10.0.0.1")
	c.Assert(err, qt.IsNil)
	c.Assert(record.CandidateID, qt.Equals, 0)

	closed, err := tc.elections.End(ctx, e.ID, "admin")
	c.Assert(err, qt.IsNil)
	c.Assert(closed.Results[0], qt.Equals, uint64(1))

	// an empty candidate list is still rejected
	_, err = tc.elections.Create(ctx, &election.CreateParams{
		Title:     "No candidates",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(time.Hour),
	})
	c.Assert(err, qt.IsNotNil)
}

func TestUncertainVoteAuditedOnce(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	e, voters := tc.newVotingElection(t, "alice@example.com")

	// occupy the voter's nullifier locally so the bookkeeping after the
	// ledger accepts hits the uniqueness constraint
	secret := tc.commitments.DeriveSecret("alice@example.com")
	nullifier, err := commitment.NullifierOf(secret, *e.ChainElectionID)
	c.Assert(err, qt.IsNil)
	c.Assert(tc.store.CreateVoteRecord(&types.VoteRecord{
		ElectionID:  e.ID,
		VoterID:     uuid.New(),
		Nullifier:   (*types.BigInt)(nullifier),
		CandidateID: 0,
		TxHash:      types.HexBytes{0xaa, 0xbb},
		Timestamp:   time.Now(),
	}), qt.IsNil)

	record, err := tc.votes.CastVote(ctx, e.ID, voters[0].ID, 1, "10.0.0.1")
	c.Assert(err, qt.IsNil)
	c.Assert(record, qt.IsNotNil)

	// the cast is queued for replay and audited exactly once, as pending
	n, err := tc.store.CountPendingReconciliations()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	casts, err := tc.store.ListAudit(types.AuditVoteCast, "", 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(casts, qt.HasLen, 1)
	c.Assert(casts[0].Outcome, qt.Equals, types.AuditOutcomePending)
}

func TestApprovalRepairsLocalState(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	v, err := tc.voters.Register(ctx, "alice@example.com")
	c.Assert(err, qt.IsNil)

	// the commitment already landed on the ledger in a previous approval
	// attempt that failed locally
	_, err = tc.ledger.RegisterVoter(v.Commitment.MathBigInt())
	c.Assert(err, qt.IsNil)

	approved, err := tc.voters.Approve(ctx, v.ID, "admin")
	c.Assert(err, qt.IsNil)
	c.Assert(approved.Status, qt.Equals, types.VoterStatusApproved)
	c.Assert(approved.RegisteredOnChain, qt.IsTrue)
}

func TestRejectionIsTerminal(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	v, err := tc.voters.Register(ctx, "mallory@example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(tc.voters.Reject(ctx, v.ID, "admin", "failed identity verification"), qt.IsNil)

	_, err = tc.voters.Approve(ctx, v.ID, "admin")
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)

	// the user reference stays bound to the rejected identity
	_, err = tc.voters.Register(ctx, "mallory@example.com")
	c.Assert(err, qt.ErrorIs, types.ErrDuplicateRegistration)
}

func TestReconcilerService(t *testing.T) {
	c := qt.New(t)
	tc := newTestCoordinator(t)

	rs := NewReconciler(tc.votes, 10*time.Millisecond)
	c.Assert(rs.Start(context.Background()), qt.IsNil)
	c.Assert(rs.Start(context.Background()), qt.IsNotNil) // already running
	rs.Stop()
	// stopping twice is harmless
	rs.Stop()
}

func TestUnknownIDs(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	tc := newTestCoordinator(t)

	_, err := tc.voters.Voter(uuid.New())
	c.Assert(err, qt.ErrorIs, types.ErrNotFound)
	_, err = tc.elections.Election(uuid.New())
	c.Assert(err, qt.ErrorIs, types.ErrNotFound)
	_, err = tc.votes.CastVote(ctx, uuid.New(), uuid.New(), 0, "")
	c.Assert(err, qt.ErrorIs, types.ErrNotFound)
	_, err = tc.votes.VerifyVote(ctx, types.HexBytes{0x01})
	c.Assert(err, qt.ErrorIs, types.ErrNotFound)
}

package storage

import (
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/zkvote-coordinator/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	database, err := metadb.New(db.TypePebble, filepath.Join(t.TempDir(), "db"))
	qt.Assert(t, err, qt.IsNil)
	st := New(database)
	t.Cleanup(st.Close)
	return st
}

func testVoter(userRef string, commitment int64) *types.VoterIdentity {
	return &types.VoterIdentity{
		ID:         uuid.New(),
		UserRef:    userRef,
		Commitment: new(types.BigInt).SetUint64(uint64(commitment)),
		Status:     types.VoterStatusPending,
		CreatedAt:  time.Now(),
	}
}

func TestVoterLifecycle(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	v := testVoter("alice@example.com", 1001)
	c.Assert(st.CreateVoter(v), qt.IsNil)

	// duplicate user reference is rejected
	dup := testVoter("alice@example.com", 1002)
	c.Assert(st.CreateVoter(dup), qt.ErrorIs, ErrConstraint)

	// duplicate commitment is rejected
	dup = testVoter("bob@example.com", 1001)
	c.Assert(st.CreateVoter(dup), qt.ErrorIs, ErrConstraint)

	got, err := st.Voter(v.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.UserRef, qt.Equals, "alice@example.com")
	c.Assert(got.Status, qt.Equals, types.VoterStatusPending)

	byRef, err := st.VoterByUserRef("alice@example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(byRef.ID, qt.Equals, v.ID)

	byCommitment, err := st.VoterByCommitment(v.Commitment)
	c.Assert(err, qt.IsNil)
	c.Assert(byCommitment.ID, qt.Equals, v.ID)

	_, err = st.VoterByUserRef("nobody@example.com")
	c.Assert(err, qt.Equals, ErrNotFound)

	// approve flips status and records the registration tx
	txHash := types.HexBytes{0xde, 0xad, 0xbe, 0xef}
	c.Assert(st.SetVoterApproved(v.ID, txHash), qt.IsNil)
	got, err = st.Voter(v.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, types.VoterStatusApproved)
	c.Assert(got.RegisteredOnChain, qt.IsTrue)
	c.Assert(got.RegistrationTxHash.String(), qt.Equals, txHash.String())

	// approving twice fails, the voter is no longer pending
	c.Assert(st.SetVoterApproved(v.ID, txHash), qt.ErrorIs, types.ErrInvalidState)
	// so does rejecting an approved voter
	c.Assert(st.SetVoterRejected(v.ID), qt.ErrorIs, types.ErrInvalidState)
}

func TestVoterElections(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	v := testVoter("carol@example.com", 2001)
	c.Assert(st.CreateVoter(v), qt.IsNil)

	electionID := uuid.New()
	c.Assert(st.AddEligibleElection(v.ID, electionID), qt.IsNil)
	// idempotent
	c.Assert(st.AddEligibleElection(v.ID, electionID), qt.IsNil)
	got, err := st.Voter(v.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.EligibleElections, qt.HasLen, 1)

	voted := types.VotedElection{
		ElectionID: electionID,
		VotedAt:    time.Now(),
		Nullifier:  new(types.BigInt).SetUint64(777),
		TxHash:     types.HexBytes{0x01},
	}
	c.Assert(st.AppendVotedElection(v.ID, voted), qt.IsNil)
	// a second history entry for the same election is a double vote
	c.Assert(st.AppendVotedElection(v.ID, voted), qt.ErrorIs, types.ErrAlreadyVoted)
	got, err = st.Voter(v.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.VotedElections, qt.HasLen, 1)
	c.Assert(got.HasVotedIn(electionID), qt.IsTrue)
}

func TestListVoters(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	for i := 0; i < 5; i++ {
		v := testVoter(string(rune('a'+i))+"@example.com", int64(3000+i))
		c.Assert(st.CreateVoter(v), qt.IsNil)
		if i < 2 {
			c.Assert(st.SetVoterApproved(v.ID, types.HexBytes{byte(i)}), qt.IsNil)
		}
	}

	all, err := st.ListVoters("", 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 5)

	approved, err := st.ListVoters(types.VoterStatusApproved, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(approved, qt.HasLen, 2)

	page, err := st.ListVoters("", 2, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(page, qt.HasLen, 2)

	n, err := st.CountVoters(types.VoterStatusPending)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 3)
}

func testElection() *types.Election {
	return &types.Election{
		ID:           uuid.New(),
		Title:        "Board election",
		ElectionType: types.ElectionTypeOrganizational,
		Candidates: []types.Candidate{
			{ID: 0, Name: "Alice"},
			{ID: 1, Name: "Bob"},
		},
		State:     types.ElectionStateCreated,
		CreatedAt: time.Now(),
	}
}

func TestElectionStateMachine(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	e := testElection()
	c.Assert(st.CreateElection(e), qt.IsNil)
	c.Assert(st.CreateElection(e), qt.ErrorIs, ErrConstraint)

	// forward transition succeeds
	err := st.SetElectionState(e.ID, types.ElectionStateCreated, types.ElectionStateRegistration)
	c.Assert(err, qt.IsNil)

	// replaying the same transition fails, the state moved on
	err = st.SetElectionState(e.ID, types.ElectionStateCreated, types.ElectionStateRegistration)
	c.Assert(err, qt.ErrorIs, types.ErrInvalidState)

	err = st.SetElectionState(e.ID, types.ElectionStateRegistration, types.ElectionStateVoting)
	c.Assert(err, qt.IsNil)
	err = st.SetElectionState(e.ID, types.ElectionStateVoting, types.ElectionStateEnded)
	c.Assert(err, qt.IsNil)

	got, err := st.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.State, qt.Equals, types.ElectionStateEnded)
}

func TestElectionChainBinding(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	e := testElection()
	c.Assert(st.CreateElection(e), qt.IsNil)

	c.Assert(st.SetChainElectionID(e.ID, 7), qt.IsNil)
	// rebinding to the same id is fine
	c.Assert(st.SetChainElectionID(e.ID, 7), qt.IsNil)
	// rebinding to a different id is not
	c.Assert(st.SetChainElectionID(e.ID, 8), qt.ErrorIs, types.ErrInvalidState)

	got, err := st.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.OnLedger(), qt.IsTrue)
	c.Assert(*got.ChainElectionID, qt.Equals, uint64(7))
}

func TestElectionRollAndResults(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	e := testElection()
	c.Assert(st.CreateElection(e), qt.IsNil)

	voterID := uuid.New()
	c.Assert(st.AddEligibleVoter(e.ID, voterID), qt.IsNil)
	c.Assert(st.AddEligibleVoter(e.ID, voterID), qt.IsNil) // idempotent
	got, err := st.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.EligibleVoters, qt.HasLen, 1)
	c.Assert(got.TotalVotersRegistered, qt.Equals, 1)
	c.Assert(got.IsVoterEligible(voterID), qt.IsTrue)

	results := map[int]uint64{0: 2, 1: 0}
	c.Assert(st.FreezeResults(e.ID, results), qt.IsNil)
	// retrying the freeze is harmless
	c.Assert(st.FreezeResults(e.ID, results), qt.IsNil)

	got, err = st.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.ResultsPublished, qt.IsTrue)
	c.Assert(got.Results[0], qt.Equals, uint64(2))
}

func TestVoteRecords(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	e := testElection()
	c.Assert(st.CreateElection(e), qt.IsNil)
	r := &types.VoteRecord{
		ElectionID:         e.ID,
		VoterID:            uuid.New(),
		Nullifier:          new(types.BigInt).SetUint64(4242),
		CandidateID:        1,
		TxHash:             types.HexBytes{0xaa, 0xbb},
		Timestamp:          time.Now(),
		VerificationStatus: types.VerificationStatusVerified,
	}
	c.Assert(st.CreateVoteRecord(r), qt.IsNil)
	c.Assert(st.HasNullifier(r.Nullifier), qt.IsTrue)

	// the cast counter commits with the record
	counted, err := st.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(counted.TotalVotesCast, qt.Equals, 1)

	// same nullifier, different tx
	dup := *r
	dup.TxHash = types.HexBytes{0xcc}
	c.Assert(st.CreateVoteRecord(&dup), qt.ErrorIs, ErrConstraint)

	// same tx, different nullifier
	dup = *r
	dup.Nullifier = new(types.BigInt).SetUint64(4243)
	c.Assert(st.CreateVoteRecord(&dup), qt.ErrorIs, ErrConstraint)

	// rejected duplicates never move the counter
	counted, err = st.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(counted.TotalVotesCast, qt.Equals, 1)

	got, err := st.VoteRecord(r.TxHash)
	c.Assert(err, qt.IsNil)
	c.Assert(got.CandidateID, qt.Equals, 1)

	byNullifier, err := st.VoteRecordByNullifier(r.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(byNullifier.TxHash.String(), qt.Equals, r.TxHash.String())

	c.Assert(st.SetVoteVerification(r.TxHash, types.VerificationStatusFailed), qt.IsNil)
	got, err = st.VoteRecord(r.TxHash)
	c.Assert(err, qt.IsNil)
	c.Assert(got.VerificationStatus, qt.Equals, types.VerificationStatusFailed)

	records, err := st.ListVoteRecords(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 1)
	records, err = st.ListVoteRecords(uuid.New())
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 0)
}

func TestReconciliationQueue(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	_, err := st.NextReconciliation()
	c.Assert(err, qt.Equals, ErrNoMoreElements)

	m := &types.ReconciliationMarker{
		ElectionID:  uuid.New(),
		VoterID:     uuid.New(),
		Nullifier:   new(types.BigInt).SetUint64(99),
		CandidateID: 0,
		TxHash:      types.HexBytes{0x10, 0x20},
	}
	c.Assert(st.PushReconciliation(m), qt.IsNil)
	// pushing the same tx twice keeps a single marker
	c.Assert(st.PushReconciliation(m), qt.IsNil)
	n, err := st.CountPendingReconciliations()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)

	got, err := st.NextReconciliation()
	c.Assert(err, qt.IsNil)
	c.Assert(got.TxHash.String(), qt.Equals, m.TxHash.String())

	// while reserved the marker is invisible to other workers
	_, err = st.NextReconciliation()
	c.Assert(err, qt.Equals, ErrNoMoreElements)

	// releasing makes it visible again with a bumped attempt counter
	c.Assert(st.ReleaseReconciliation(m.TxHash), qt.IsNil)
	got, err = st.NextReconciliation()
	c.Assert(err, qt.IsNil)
	c.Assert(got.Attempts, qt.Equals, 1)

	c.Assert(st.MarkReconciliationDone(m.TxHash), qt.IsNil)
	n, err = st.CountPendingReconciliations()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func TestAuditLog(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	base := time.Now()
	actions := []types.AuditAction{
		types.AuditVoterRegister,
		types.AuditVoterApprove,
		types.AuditVoteCast,
	}
	for i, a := range actions {
		c.Assert(st.AppendAudit(&types.AuditEntry{
			Action:    a,
			Outcome:   types.AuditOutcomeSuccess,
			ActorRef:  "admin",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}), qt.IsNil)
	}

	entries, err := st.ListAudit("", "", 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 3)
	// chronological order
	for i, a := range actions {
		c.Assert(entries[i].Action, qt.Equals, a)
	}

	casts, err := st.ListAudit(types.AuditVoteCast, "", 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(casts, qt.HasLen, 1)

	byActor, err := st.ListAudit("", "admin", 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(byActor, qt.HasLen, 3)

	none, err := st.ListAudit("", "nobody", 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(none, qt.HasLen, 0)
}

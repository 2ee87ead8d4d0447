package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	rapidsnarktypes "github.com/iden3/go-rapidsnark/types"
)

// MockLedger implements an in-memory version of the web3.Contracts gateway
// for testing. It reproduces the contract semantics the coordinator relies
// on: commitment registry, nullifier consumption and per-election tallies.
type MockLedger struct {
	mu          sync.Mutex
	commitments map[string]bool
	nullifiers  map[string]bool
	elections   []*mockElection
	txCounter   uint64

	// failure injection for tests
	FailCreateElection bool
	FailCastVote       bool
	FailRegisterVoter  bool

	// BeforeTransition, when set, runs at the start of every phase
	// transition. Tests use it to interleave a competing operation between
	// a caller's state read and its ledger submission.
	BeforeTransition func()
}

type mockElection struct {
	title          string
	candidateCount int
	state          uint8
	tally          []uint64
}

// NewMockLedger creates an empty in-memory ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		commitments: make(map[string]bool),
		nullifiers:  make(map[string]bool),
	}
}

func (m *MockLedger) nextHash() *common.Hash {
	m.txCounter++
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], m.txCounter)
	hash := common.BytesToHash(b[:])
	return &hash
}

// RegisterVoter records the commitment in the in-memory registry.
func (m *MockLedger) RegisterVoter(commitment *big.Int) (*common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRegisterVoter {
		return nil, fmt.Errorf("mock ledger: register voter failure")
	}
	m.commitments[commitment.String()] = true
	return m.nextHash(), nil
}

// IsVoterRegistered reports whether the commitment is in the registry.
func (m *MockLedger) IsVoterRegistered(_ context.Context, commitment *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitments[commitment.String()], nil
}

// IsNullifierUsed reports whether the nullifier was consumed.
func (m *MockLedger) IsNullifierUsed(_ context.Context, nullifier *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nullifiers[nullifier.String()], nil
}

// CreateElection appends a new election and returns its sequential id.
func (m *MockLedger) CreateElection(_ context.Context, title, _ string,
	_, _ time.Time, candidateCount int,
) (uint64, *common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreateElection {
		return 0, nil, fmt.Errorf("mock ledger: create election failure")
	}
	m.elections = append(m.elections, &mockElection{
		title:          title,
		candidateCount: candidateCount,
		tally:          make([]uint64, candidateCount),
	})
	return uint64(len(m.elections) - 1), m.nextHash(), nil
}

func (m *MockLedger) election(id uint64) (*mockElection, error) {
	if id >= uint64(len(m.elections)) {
		return nil, fmt.Errorf("mock ledger: unknown election %d", id)
	}
	return m.elections[id], nil
}

func (m *MockLedger) transition(id uint64, from, to uint8) (*common.Hash, error) {
	if m.BeforeTransition != nil {
		m.BeforeTransition()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.election(id)
	if err != nil {
		return nil, err
	}
	if e.state != from {
		return nil, fmt.Errorf("mock ledger: election %d in state %d, expected %d", id, e.state, from)
	}
	e.state = to
	return m.nextHash(), nil
}

// StartRegistration moves the election to the registration state.
func (m *MockLedger) StartRegistration(id uint64) (*common.Hash, error) {
	return m.transition(id, 0, 1)
}

// StartVoting moves the election to the voting state.
func (m *MockLedger) StartVoting(id uint64) (*common.Hash, error) {
	return m.transition(id, 1, 2)
}

// EndElection moves the election to the ended state.
func (m *MockLedger) EndElection(id uint64) (*common.Hash, error) {
	return m.transition(id, 2, 3)
}

// CastVote checks the proof's public signals the way the contract would:
// the commitment must be registered and the nullifier unused. A valid vote
// consumes the nullifier and bumps the tally.
func (m *MockLedger) CastVote(_ context.Context, electionID uint64, candidateID int,
	proof *rapidsnarktypes.ZKProof,
) (*common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCastVote {
		return nil, fmt.Errorf("mock ledger: cast vote failure")
	}
	e, err := m.election(electionID)
	if err != nil {
		return nil, err
	}
	if e.state != 2 {
		return nil, fmt.Errorf("mock ledger: election %d not in voting state", electionID)
	}
	if candidateID < 0 || candidateID >= e.candidateCount {
		return nil, fmt.Errorf("mock ledger: candidate %d out of range", candidateID)
	}
	if proof == nil || len(proof.PubSignals) != 3 {
		return nil, fmt.Errorf("mock ledger: malformed public signals")
	}
	commitment, nullifier := proof.PubSignals[0], proof.PubSignals[1]
	if !m.commitments[commitment] {
		return nil, fmt.Errorf("mock ledger: commitment not registered")
	}
	if m.nullifiers[nullifier] {
		return nil, fmt.Errorf("mock ledger: vote already cast")
	}
	m.nullifiers[nullifier] = true
	e.tally[candidateID]++
	return m.nextHash(), nil
}

// GetResults returns the tally of an election.
func (m *MockLedger) GetResults(_ context.Context, electionID uint64, candidateCount int) (map[int]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.election(electionID)
	if err != nil {
		return nil, err
	}
	results := make(map[int]uint64, candidateCount)
	for i := 0; i < candidateCount && i < len(e.tally); i++ {
		results[i] = e.tally[i]
	}
	return results, nil
}

// WaitTx reports every known transaction as mined and successful.
func (m *MockLedger) WaitTx(_ context.Context, _ common.Hash) (*ethtypes.Receipt, error) {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}, nil
}

// TxStatus reports every transaction as successful.
func (m *MockLedger) TxStatus(_ context.Context, _ common.Hash) (bool, error) {
	return true, nil
}

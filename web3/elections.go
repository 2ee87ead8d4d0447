package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"
)

// ElectionDetails is the on-ledger view of an election held by the
// ElectionManager contract.
type ElectionDetails struct {
	Title          string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	CandidateCount int
	State          uint8
}

// CreateElection creates the election in the ElectionManager contract, waits
// for the transaction to be mined and returns the ledger-assigned election
// id parsed from the ElectionCreated event, along with the transaction hash.
func (c *Contracts) CreateElection(ctx context.Context, title, description string,
	startTime, endTime time.Time, candidateCount int,
) (uint64, *common.Hash, error) {
	txOpts, err := c.authTransactOpts()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create transact options: %w", err)
	}
	tx, err := c.electionManager.Transact(txOpts, "createElection",
		title,
		description,
		big.NewInt(startTime.Unix()),
		big.NewInt(endTime.Unix()),
		big.NewInt(int64(candidateCount)),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create election: %w", err)
	}
	hash := tx.Hash()
	receipt, err := c.WaitTx(ctx, hash)
	if err != nil {
		return 0, nil, err
	}

	// the ledger assigns election ids sequentially; recover ours from the
	// ElectionCreated event in the receipt
	event := c.electionManagerABI.Events["ElectionCreated"]
	for _, vLog := range receipt.Logs {
		if len(vLog.Topics) == 0 || vLog.Topics[0] != event.ID {
			continue
		}
		values, err := c.electionManagerABI.Unpack("ElectionCreated", vLog.Data)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to unpack ElectionCreated event: %w", err)
		}
		electionID, ok := values[0].(*big.Int)
		if !ok {
			return 0, nil, fmt.Errorf("unexpected election id type in ElectionCreated event")
		}
		log.Infow("election created on ledger",
			"electionId", electionID.Uint64(), "tx", hash.Hex())
		return electionID.Uint64(), &hash, nil
	}
	return 0, nil, fmt.Errorf("no ElectionCreated event in receipt %s", hash.Hex())
}

// transition submits a state transition call to the ElectionManager
// contract.
func (c *Contracts) transition(method string, chainElectionID uint64) (*common.Hash, error) {
	txOpts, err := c.authTransactOpts()
	if err != nil {
		return nil, fmt.Errorf("failed to create transact options: %w", err)
	}
	tx, err := c.electionManager.Transact(txOpts, method, new(big.Int).SetUint64(chainElectionID))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	hash := tx.Hash()
	log.Debugw("election transition submitted",
		"method", method, "electionId", chainElectionID, "tx", hash.Hex())
	return &hash, nil
}

// StartRegistration opens the registration phase on the ledger.
func (c *Contracts) StartRegistration(chainElectionID uint64) (*common.Hash, error) {
	return c.transition("startRegistration", chainElectionID)
}

// StartVoting opens the voting phase on the ledger.
func (c *Contracts) StartVoting(chainElectionID uint64) (*common.Hash, error) {
	return c.transition("startVoting", chainElectionID)
}

// EndElection closes the election on the ledger.
func (c *Contracts) EndElection(chainElectionID uint64) (*common.Hash, error) {
	return c.transition("endElection", chainElectionID)
}

// GetElectionDetails returns the on-ledger election record.
func (c *Contracts) GetElectionDetails(ctx context.Context, chainElectionID uint64) (*ElectionDetails, error) {
	var out []any
	if err := callView(ctx, c.electionManager, &out, "getElectionDetails",
		new(big.Int).SetUint64(chainElectionID)); err != nil {
		return nil, fmt.Errorf("failed to get election details: %w", err)
	}
	if len(out) != 6 {
		return nil, fmt.Errorf("unexpected return arity for getElectionDetails")
	}
	title, _ := out[0].(string)
	description, _ := out[1].(string)
	startTime, ok := out[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected startTime type")
	}
	endTime, ok := out[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected endTime type")
	}
	candidateCount, ok := out[4].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected candidateCount type")
	}
	state, ok := out[5].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected state type")
	}
	return &ElectionDetails{
		Title:          title,
		Description:    description,
		StartTime:      time.Unix(startTime.Int64(), 0),
		EndTime:        time.Unix(endTime.Int64(), 0),
		CandidateCount: int(candidateCount.Int64()),
		State:          state,
	}, nil
}

// GetVoteCount returns the on-ledger tally for a single candidate.
func (c *Contracts) GetVoteCount(ctx context.Context, chainElectionID uint64, candidateID int) (uint64, error) {
	var out []any
	if err := callView(ctx, c.electionManager, &out, "getVoteCount",
		new(big.Int).SetUint64(chainElectionID), big.NewInt(int64(candidateID))); err != nil {
		return 0, fmt.Errorf("failed to get vote count: %w", err)
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected vote count type")
	}
	return count.Uint64(), nil
}

package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"
)

// RegisterVoter submits the voter commitment to the VoterRegistry contract
// and returns the transaction hash. The caller decides whether to wait for
// the transaction to be mined.
func (c *Contracts) RegisterVoter(commitment *big.Int) (*common.Hash, error) {
	txOpts, err := c.authTransactOpts()
	if err != nil {
		return nil, fmt.Errorf("failed to create transact options: %w", err)
	}
	tx, err := c.voterRegistry.Transact(txOpts, "registerVoter", toBytes32(commitment))
	if err != nil {
		return nil, fmt.Errorf("failed to register voter: %w", err)
	}
	hash := tx.Hash()
	log.Debugw("voter registration submitted", "tx", hash.Hex())
	return &hash, nil
}

// IsVoterRegistered reports whether the commitment is already in the
// VoterRegistry contract.
func (c *Contracts) IsVoterRegistered(ctx context.Context, commitment *big.Int) (bool, error) {
	var out []any
	if err := callView(ctx, c.voterRegistry, &out, "isVoterRegistered", toBytes32(commitment)); err != nil {
		return false, fmt.Errorf("failed to check voter registration: %w", err)
	}
	registered, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected return type for isVoterRegistered")
	}
	return registered, nil
}

// IsNullifierUsed reports whether the nullifier has already been consumed
// on the ledger.
func (c *Contracts) IsNullifierUsed(ctx context.Context, nullifier *big.Int) (bool, error) {
	var out []any
	if err := callView(ctx, c.voterRegistry, &out, "isNullifierUsed", toBytes32(nullifier)); err != nil {
		return false, fmt.Errorf("failed to check nullifier: %w", err)
	}
	used, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected return type for isNullifierUsed")
	}
	return used, nil
}

// Package web3 is the ledger gateway. It binds the four deployed contracts
// (Groth16Verifier, VoterRegistry, ElectionManager, VotingSystem), signs and
// sends transactions with the coordinator account, and exposes typed reads
// and writes so no other package handles raw ABI values.
package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/util"
)

const (
	// maxDialRetries is the number of retries to connect to a web3 provider.
	maxDialRetries = 5
	// web3QueryTimeout bounds every read-only ledger call.
	web3QueryTimeout = 10 * time.Second
	// defaultGasLimit is used for all coordinator transactions.
	defaultGasLimit = 5000000
)

// Addresses contains the addresses of the contracts deployed in the network.
type Addresses struct {
	Verifier        common.Address
	VoterRegistry   common.Address
	ElectionManager common.Address
	VotingSystem    common.Address
}

// Contracts contains the bindings to the deployed contracts.
type Contracts struct {
	ChainID uint64

	verifier           *bind.BoundContract
	voterRegistry      *bind.BoundContract
	electionManager    *bind.BoundContract
	electionManagerABI abi.ABI
	cli                *ethclient.Client
	votingSystem       *bind.BoundContract
	privKey            *ecdsa.PrivateKey
	address            common.Address
}

// NewContracts connects to the web3 endpoint and binds the four contracts at
// the given addresses. ABI parsing failures are programming errors and abort
// construction.
func NewContracts(addresses *Addresses, web3rpc string) (*Contracts, error) {
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	cli, err := connect(ctx, web3rpc)
	if err != nil {
		return nil, err
	}
	bChainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chainID from %s: %w", web3rpc, err)
	}

	verifierABI, err := abi.JSON(strings.NewReader(verifierABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse verifier ABI: %w", err)
	}
	voterRegistryABI, err := abi.JSON(strings.NewReader(voterRegistryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse voter registry ABI: %w", err)
	}
	electionManagerABI, err := abi.JSON(strings.NewReader(electionManagerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse election manager ABI: %w", err)
	}
	votingSystemABI, err := abi.JSON(strings.NewReader(votingSystemABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse voting system ABI: %w", err)
	}

	return &Contracts{
		ChainID:            bChainID.Uint64(),
		cli:                cli,
		verifier:           bind.NewBoundContract(addresses.Verifier, verifierABI, cli, cli, cli),
		voterRegistry:      bind.NewBoundContract(addresses.VoterRegistry, voterRegistryABI, cli, cli, cli),
		electionManager:    bind.NewBoundContract(addresses.ElectionManager, electionManagerABI, cli, cli, cli),
		electionManagerABI: electionManagerABI,
		votingSystem:       bind.NewBoundContract(addresses.VotingSystem, votingSystemABI, cli, cli, cli),
	}, nil
}

// connect dials the web3 provider, retrying up to maxDialRetries times.
func connect(ctx context.Context, uri string) (cli *ethclient.Client, err error) {
	for i := 0; i < maxDialRetries; i++ {
		if cli, err = ethclient.DialContext(ctx, uri); err != nil {
			continue
		}
		return cli, nil
	}
	return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
}

// SetAccountPrivateKey sets the private key to be used for signing transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	var err error
	c.privKey, err = crypto.HexToECDSA(util.TrimHex(hexPrivKey))
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	c.address = crypto.PubkeyToAddress(c.privKey.PublicKey)
	return nil
}

// AccountAddress returns the address of the account used to sign transactions.
func (c *Contracts) AccountAddress() common.Address {
	return c.address
}

// authTransactOpts creates the transact options with the configured private
// key. It sets the nonce, gas tip cap and gas limit.
func (c *Contracts) authTransactOpts() (*bind.TransactOpts, error) {
	if c.privKey == nil {
		return nil, fmt.Errorf("no private key set")
	}
	bChainID := new(big.Int).SetUint64(c.ChainID)
	auth, err := bind.NewKeyedTransactorWithChainID(c.privKey, bChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	log.Debugw("getting nonce", "address", c.address.Hex())
	nonce, err := c.cli.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	if auth.GasTipCap, err = c.cli.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	auth.GasLimit = defaultGasLimit
	return auth, nil
}

// callView performs a read-only contract call with the query timeout.
func callView(ctx context.Context, contract *bind.BoundContract, out *[]any,
	method string, args ...any,
) error {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	return contract.Call(&bind.CallOpts{Context: ctx}, out, method, args...)
}

// WaitTx blocks until the transaction is mined or the context expires,
// polling the receipt with exponential backoff. It returns the receipt of a
// successful transaction; a reverted transaction is an error.
func (c *Contracts) WaitTx(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	backoff := 250 * time.Millisecond
	for {
		receipt, err := c.cli.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for transaction %s: %w", hash.Hex(), ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 4*time.Second {
			backoff *= 2
		}
	}
}

// TxStatus reports whether the transaction was mined and succeeded.
func (c *Contracts) TxStatus(ctx context.Context, hash common.Hash) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	receipt, err := c.cli.TransactionReceipt(ctx, hash)
	if err != nil {
		return false, err
	}
	return receipt.Status == ethtypes.ReceiptStatusSuccessful, nil
}

// TxDetails describes a mined transaction.
type TxDetails struct {
	Hash        common.Hash
	BlockNumber uint64
	From        common.Address
	To          *common.Address
	GasUsed     uint64
	Success     bool
	Timestamp   time.Time
}

// TransactionDetails returns the receipt-level details of a mined
// transaction, including the timestamp of its block.
func (c *Contracts) TransactionDetails(ctx context.Context, hash common.Hash) (*TxDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	receipt, err := c.cli.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	tx, _, err := c.cli.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(c.ChainID)), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender: %w", err)
	}
	ts, err := c.BlockTimestamp(ctx, receipt.BlockNumber.Uint64())
	if err != nil {
		log.Warnw("failed to get block timestamp", "block", receipt.BlockNumber, "err", err)
	}
	return &TxDetails{
		Hash:        hash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		From:        from,
		To:          tx.To(),
		GasUsed:     receipt.GasUsed,
		Success:     receipt.Status == ethtypes.ReceiptStatusSuccessful,
		Timestamp:   ts,
	}, nil
}

// BlockTimestamp returns the timestamp of the given block.
func (c *Contracts) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := c.cli.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get block header: %w", err)
	}
	return time.Unix(int64(header.Time), 0), nil
}

// toBytes32 left-pads a field element into the bytes32 representation the
// registry contract expects.
func toBytes32(x *big.Int) [32]byte {
	var b [32]byte
	x.FillBytes(b[:])
	return b
}

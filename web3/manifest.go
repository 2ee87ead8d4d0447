package web3

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/types"
)

const (
	// manifestPollInterval is how often the deployment manifest is re-read
	// while waiting for the deployer to publish it.
	manifestPollInterval = 2 * time.Second
	// manifestWaitTimeout bounds the wait for the deployment manifest.
	manifestWaitTimeout = 60 * time.Second
)

// DeploymentManifest is the contracts.json file the deployer writes to the
// shared volume once all four contracts are on the ledger.
type DeploymentManifest struct {
	Verifier        string `json:"Verifier"`
	VoterRegistry   string `json:"VoterRegistry"`
	ElectionManager string `json:"ElectionManager"`
	VotingSystem    string `json:"VotingSystem"`
}

// complete reports whether every contract address is present.
func (m *DeploymentManifest) complete() bool {
	return m.Verifier != "" && m.VoterRegistry != "" &&
		m.ElectionManager != "" && m.VotingSystem != ""
}

// Addresses converts the manifest into typed contract addresses.
func (m *DeploymentManifest) Addresses() *Addresses {
	return &Addresses{
		Verifier:        common.HexToAddress(m.Verifier),
		VoterRegistry:   common.HexToAddress(m.VoterRegistry),
		ElectionManager: common.HexToAddress(m.ElectionManager),
		VotingSystem:    common.HexToAddress(m.VotingSystem),
	}
}

// LoadManifest reads and decodes the deployment manifest from disk.
func LoadManifest(path string) (*DeploymentManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment manifest: %w", err)
	}
	m := &DeploymentManifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode deployment manifest: %w", err)
	}
	return m, nil
}

// WaitForManifest polls the manifest path until a complete manifest appears
// or the deadline passes. An incomplete or missing file is not an error
// until the deadline, the deployer may still be writing it.
func WaitForManifest(ctx context.Context, path string) (*DeploymentManifest, error) {
	ctx, cancel := context.WithTimeout(ctx, manifestWaitTimeout)
	defer cancel()

	log.Infow("waiting for contract deployment manifest", "path", path)
	ticker := time.NewTicker(manifestPollInterval)
	defer ticker.Stop()
	for {
		m, err := LoadManifest(path)
		if err == nil && m.complete() {
			log.Infow("deployment manifest loaded",
				"verifier", m.Verifier,
				"voterRegistry", m.VoterRegistry,
				"electionManager", m.ElectionManager,
				"votingSystem", m.VotingSystem)
			return m, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("manifest at %s: %w", path, types.ErrDeploymentTimeout)
		case <-ticker.C:
		}
	}
}

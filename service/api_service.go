// Package service wires the coordinator components into long-running
// services with a uniform Start/Stop lifecycle, plus in-memory mocks of the
// external dependencies for testing.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/zkvote-coordinator/api"
	"github.com/vocdoni/zkvote-coordinator/election"
	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/voter"
	"github.com/vocdoni/zkvote-coordinator/voting"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage   *storage.Storage
	voters    *voter.Service
	elections *election.Service
	votes     *voting.Service
	prover    api.Prover
	api       *api.API
	mu        sync.Mutex
	cancel    context.CancelFunc
	host      string
	port      int
}

// NewAPI creates a new APIService instance.
func NewAPI(stg *storage.Storage, voters *voter.Service, elections *election.Service,
	votes *voting.Service, prover api.Prover, host string, port int,
) *APIService {
	return &APIService{
		storage:   stg,
		voters:    voters,
		elections: elections,
		votes:     votes,
		prover:    prover,
		host:      host,
		port:      port,
	}
}

// Start begins the API server. It returns an error if the service is
// already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}
	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:      as.host,
		Port:      as.port,
		Storage:   as.storage,
		Voters:    as.voters,
		Elections: as.elections,
		Votes:     as.votes,
		Prover:    as.prover,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// API returns the running API instance, nil before Start.
func (as *APIService) API() *api.API {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.api
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

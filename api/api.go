// Package api exposes the coordinator over HTTP. Handlers are thin: they
// decode, call a service and encode; every domain rule lives in the service
// packages.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	rapidsnark "github.com/iden3/go-rapidsnark/types"
	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/election"
	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/voter"
	"github.com/vocdoni/zkvote-coordinator/voting"
)

// Prover is the proof-engine subset the API uses for the standalone proof
// endpoints.
type Prover interface {
	VerifyProof(proof *rapidsnark.ZKProof) error
	VerificationKey() []byte
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	Storage   *storage.Storage
	Voters    *voter.Service
	Elections *election.Service
	Votes     *voting.Service
	Prover    Prover
}

// API type represents the API HTTP server.
type API struct {
	router    *chi.Mux
	storage   *storage.Storage
	voters    *voter.Service
	elections *election.Service
	votes     *voting.Service
	prover    Prover
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil || conf.Voters == nil || conf.Elections == nil || conf.Votes == nil {
		return nil, fmt.Errorf("missing service instances")
	}
	a := &API{
		storage:   conf.Storage,
		voters:    conf.Voters,
		elections: conf.Elections,
		votes:     conf.Votes,
		prover:    conf.Prover,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})

	// voters
	a.router.Post(VotersEndpoint, a.registerVoter)
	a.router.Get(VotersEndpoint, a.listVoters)
	a.router.Get(VoterEndpoint, a.voter)
	a.router.Post(VoterApproveEndpoint, a.approveVoter)
	a.router.Post(VoterRejectEndpoint, a.rejectVoter)
	a.router.Get(VoterHistoryEndpoint, a.voterHistory)

	// elections
	a.router.Post(ElectionsEndpoint, a.createElection)
	a.router.Get(ElectionsEndpoint, a.listElections)
	a.router.Get(ElectionEndpoint, a.election)
	a.router.Post(ElectionRegistrationEndpoint, a.startRegistration)
	a.router.Post(ElectionVotingEndpoint, a.startVoting)
	a.router.Post(ElectionEndEndpoint, a.endElection)
	a.router.Post(ElectionLedgerRetryEndpoint, a.retryLedgerCreate)
	a.router.Post(ElectionEligibilityEndpoint, a.addEligibleVoter)
	a.router.Get(ElectionResultsEndpoint, a.results)
	a.router.Post(ElectionResultsEndpoint, a.publishResults)
	a.router.Get(ElectionStatsEndpoint, a.electionStats)

	// votes
	a.router.Post(ElectionVotesEndpoint, a.castVote)
	a.router.Get(ElectionVotesEndpoint, a.listVotes)
	a.router.Get(VoteEndpoint, a.vote)
	a.router.Post(VoteVerifyEndpoint, a.verifyVote)
	a.router.Get(VoteByNullifierEndpoint, a.voteByNullifier)

	// proofs
	a.router.Get(VerificationKeyEndpoint, a.verificationKey)
	a.router.Post(ProofVerifyEndpoint, a.verifyProof)

	// audit
	a.router.Get(AuditEndpoint, a.listAudit)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

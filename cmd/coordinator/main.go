package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"
	"golang.org/x/sync/errgroup"

	"github.com/vocdoni/zkvote-coordinator/crypto/commitment"
	"github.com/vocdoni/zkvote-coordinator/election"
	"github.com/vocdoni/zkvote-coordinator/service"
	"github.com/vocdoni/zkvote-coordinator/storage"
	"github.com/vocdoni/zkvote-coordinator/voter"
	"github.com/vocdoni/zkvote-coordinator/voting"
	"github.com/vocdoni/zkvote-coordinator/web3"
	"github.com/vocdoni/zkvote-coordinator/zkproof"
)

func main() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	flag.StringP("dataDir", "d", filepath.Join(home, ".zkvote-coordinator"),
		"directory where data is stored")
	flag.String("dbType", db.TypePebble, "key-value db type (pebble, leveldb)")
	flag.String("listenHost", "0.0.0.0", "API endpoint listen address")
	flag.IntP("listenPort", "p", 3000, "API endpoint http port")
	flag.String("web3rpc", "http://localhost:8545", "web3 rpc endpoint")
	flag.StringP("privKey", "k", "", "private key of the Ethereum account funding the transactions")
	flag.String("contracts", "contracts.json", "path to the contract deployment manifest")
	flag.String("circuit", "circuits/vote.wasm", "path to the compiled voting circuit")
	flag.String("provingKey", "circuits/vote.zkey", "path to the Groth16 proving key")
	flag.String("verificationKey", "circuits/verification_key.json", "path to the verification key")
	flag.String("serverKey", "", "server-side key for voter secret derivation")
	flag.Duration("reconcileInterval", 30*time.Second, "interval between reconciliation passes")
	flag.StringP("logLevel", "l", "info", "log level (debug, info, warn, error, fatal)")
	flag.String("logOutput", "stdout", "log output (stdout, stderr or filepath)")
	flag.Parse()

	// config precedence: flags > env (ZKVOTE_*) > defaults
	viper.SetEnvPrefix("ZKVOTE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}

	log.Init(viper.GetString("logLevel"), viper.GetString("logOutput"), nil)

	dataDir := viper.GetString("dataDir")
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		log.Fatalf("cannot create data directory: %v", err)
	}
	serverKey := viper.GetString("serverKey")
	if serverKey == "" {
		log.Fatal("a server key is required (--serverKey or ZKVOTE_SERVERKEY)")
	}
	privKey := viper.GetString("privKey")
	if privKey == "" {
		log.Fatal("a funded account private key is required (--privKey or ZKVOTE_PRIVKEY)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// waiting for the deployment manifest (the contract migration may still
	// be running) and loading the circuit artifacts are both slow, run them
	// in parallel
	var contracts *web3.Contracts
	var prover *zkproof.Engine
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		manifest, err := web3.WaitForManifest(gctx, viper.GetString("contracts"))
		if err != nil {
			return err
		}
		contracts, err = web3.NewContracts(manifest.Addresses(), viper.GetString("web3rpc"))
		if err != nil {
			return err
		}
		return contracts.SetAccountPrivateKey(privKey)
	})
	g.Go(func() error {
		var err error
		prover, err = zkproof.New(
			viper.GetString("circuit"),
			viper.GetString("provingKey"),
			viper.GetString("verificationKey"),
		)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Infow("ledger gateway initialized",
		"chainId", contracts.ChainID, "account", contracts.AccountAddress().Hex())

	commitments, err := commitment.NewEngine([]byte(serverKey))
	if err != nil {
		log.Fatal(err)
	}

	database, err := metadb.New(viper.GetString("dbType"), filepath.Join(dataDir, "db"))
	if err != nil {
		log.Fatal(err)
	}
	stg := storage.New(database)

	voters := voter.New(stg, contracts, commitments)
	elections := election.New(stg, contracts)
	votes := voting.New(stg, contracts, prover)

	apiSrv := service.NewAPI(stg, voters, elections, votes, prover,
		viper.GetString("listenHost"), viper.GetInt("listenPort"))
	if err := apiSrv.Start(ctx); err != nil {
		log.Fatal(err)
	}
	reconciler := service.NewReconciler(votes, viper.GetDuration("reconcileInterval"))
	if err := reconciler.Start(ctx); err != nil {
		log.Fatal(err)
	}

	log.Info("coordinator started, press ctrl+c to stop")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	reconciler.Stop()
	apiSrv.Stop()
	stg.Close()
}

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datamarket/escrow-agent/cmd/escrowd/handlers"
	"github.com/datamarket/escrow-agent/internal/escrow"
	"github.com/datamarket/escrow-agent/internal/platform/config"
	"github.com/datamarket/escrow-agent/internal/platform/db"
	"github.com/datamarket/escrow-agent/internal/platform/node"
	"github.com/datamarket/escrow-agent/internal/platform/state"
	"github.com/datamarket/escrow-agent/internal/settlement"
	"github.com/datamarket/escrow-agent/pkg/verifier"

	"github.com/ethereum/go-ethereum/common"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	buildUser    = "unknown"
)

// Escrow Settlement Daemon
//
func main() {
	// -------------------------------------------------------------------------
	// Logging

	logPrefix := log.New(os.Stdout, "Node : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	ctx := node.ContextWithDevelopmentLogger(context.Background(), "text")

	// -------------------------------------------------------------------------
	// Config

	cfg, err := config.Environment()
	if err != nil {
		logPrefix.Fatalf("main : Parsing Config : %v", err)
	}

	// -------------------------------------------------------------------------
	// App Starting

	logPrefix.Println("main : Started : Application Initializing")
	defer logPrefix.Println("main : Completed")

	cfgJSON, err := json.MarshalIndent(config.SafeConfig(*cfg), "", "    ")
	if err != nil {
		logPrefix.Fatalf("main : Marshalling Config to JSON : %v", err)
	}

	logPrefix.Printf("main : Build %v (%v on %v)\n", buildVersion, buildUser, buildDate)
	logPrefix.Printf("main : Config : %v\n", string(cfgJSON))

	// -------------------------------------------------------------------------
	// Storage

	masterDB, err := db.New(&db.StorageConfig{
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKeyID,
		Secret:    cfg.AWS.SecretAccessKey,
		Bucket:    cfg.Storage.Bucket,
		Root:      cfg.Storage.Root,
	})
	if err != nil {
		logPrefix.Fatalf("main : Register DB : %v", err)
	}
	defer masterDB.Close()

	// -------------------------------------------------------------------------
	// Ledger

	if len(cfg.Ledger.OwnerAddress) == 0 || len(cfg.Ledger.AuthorityAddress) == 0 {
		logPrefix.Fatalf("main : Missing env vars. Please set OWNER_ADDRESS and AUTHORITY_ADDRESS.")
	}

	ledgerCfg, err := escrow.Initialize(ctx, masterDB, &state.LedgerConfig{
		Owner:        common.HexToAddress(cfg.Ledger.OwnerAddress),
		Authority:    common.HexToAddress(cfg.Ledger.AuthorityAddress),
		FeeRecipient: common.HexToAddress(cfg.Ledger.FeeAddress),
		FeeBps:       cfg.Ledger.FeeBps,
	}, time.Now())
	if err != nil {
		logPrefix.Fatalf("main : Initialize Ledger : %v", err)
	}

	// -------------------------------------------------------------------------
	// Verifier

	var signer *verifier.TokenSigner
	if len(cfg.Verifier.SigningKeyFile) > 0 {
		signer, err = verifier.NewTokenSignerFromFile(cfg.Verifier.PartnerID,
			cfg.Verifier.SigningKeyID, cfg.Verifier.SigningKeyFile)
		if err != nil {
			logPrefix.Fatalf("main : Load Signing Key : %v", err)
		}
	}

	verifierClient := verifier.NewClient(verifier.Config{
		Endpoint: cfg.Verifier.Endpoint,
		Key:      cfg.Verifier.Key,
		Signer:   signer,
	})

	if len(verifierClient.GetURL()) == 0 {
		logPrefix.Println("main : WARNING : No verify endpoint configured. Running in degraded trust mode.")
	}

	// -------------------------------------------------------------------------
	// Orchestrator

	orchestrator := settlement.NewOrchestrator(masterDB, verifierClient,
		ledgerCfg.Authority, time.Duration(cfg.Verifier.RequestTimeout))

	// -------------------------------------------------------------------------
	// Web Server

	webHandlers := &handlers.Handlers{
		MasterDB:     masterDB,
		Orchestrator: orchestrator,
		Signer:       signer,
	}

	server := &http.Server{
		Addr:    cfg.Web.Address,
		Handler: handlers.API(webHandlers),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logPrefix.Printf("main : Web server listening on %s", cfg.Web.Address)
		serverErrors <- server.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logPrefix.Fatalf("main : Web server failed : %v", err)

	case sig := <-osSignals:
		logPrefix.Printf("main : Received signal : %v : Shutting down", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logPrefix.Printf("main : Graceful shutdown failed : %v", err)
			if err := server.Close(); err != nil {
				logPrefix.Fatalf("main : Close server : %v", err)
			}
		}
	}
}

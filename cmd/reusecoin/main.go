// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command reusecoin runs the reuse coin protocol against a CKB node or an
// in-process simulated ledger. It deploys the fee token and the payment
// wallet, deploys a reusable script and pays for its uses, recording every
// state reached so an interrupted run can be resumed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/WilfredTA/ReuseCoin/catalog"
	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/chain"
	"github.com/WilfredTA/ReuseCoin/codestore"
	"github.com/WilfredTA/ReuseCoin/internal/cfgutil"
	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/runstore"
	"github.com/WilfredTA/ReuseCoin/signer"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/google/uuid"
	flags "github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

const (
	// simnetFundingCells and simnetFundingCapacity size the faucet cells
	// the simulated ledger gives the owner.
	simnetFundingCells    = 8
	simnetFundingCapacity = 100_000
)

var newlineBytes = []byte{'\n'}

func main() {
	if err := reusecoinMain(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error that ended the program to its exit status.
func exitCode(err error) int {
	code, ok := protoerr.Code(err)
	if !ok {
		return 1
	}
	switch code {
	case protoerr.ErrValidation:
		return 2
	case protoerr.ErrMissingDependency:
		return 3
	case protoerr.ErrDoubleSpend:
		return 4
	case protoerr.ErrNetwork:
		return 5
	case protoerr.ErrConsensusRejected:
		return 6
	default:
		return 1
	}
}

func reusecoinMain() error {
	cfg, _, err := loadConfig()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			return nil
		}
		return err
	}
	defer logWriter.Close()

	log.Infof("Version %s on %s", version(), cfg.params.Name)

	ctx, stop := withInterrupt(context.Background())
	defer stop()

	if cfg.ListRuns {
		return listRuns(cfg)
	}

	params := *cfg.params
	params.Secp256k1DepGroup = cfg.depGroup

	keys := signer.NewKeyring(&params)
	owner, err := ownerLock(cfg, keys)
	if err != nil {
		return reportErr("Failed to load the owner key", err)
	}
	addr, err := params.Address(owner)
	if err != nil {
		return reportErr("Failed to encode the owner address", err)
	}
	log.Infof("Owner address %s", addr)

	backend, codes, err := newBackend(cfg, &params, owner)
	if err != nil {
		return reportErr("Failed to set up the ledger backend", err)
	}
	log.Infof("Using the %s backend", backend.BackEnd())

	if cfg.ListCatalog {
		return listCatalog(ctx, cfg, backend)
	}

	store, err := runstore.Open(cfg.runsDBPath(), defaultDBTimeout)
	if err != nil {
		return reportErr("Failed to open the run store", err)
	}
	defer store.Close()

	tracker := cellref.NewTracker()
	var resumed *wallet.State
	if cfg.Resume != "" {
		s, err := loadRun(store, tracker, cfg.Resume)
		if err != nil {
			return reportErr("Failed to load the run", err)
		}
		resumed = &s
	}

	w, err := wallet.New(wallet.Config{
		Params:    &params,
		Signer:    keys,
		Submitter: backend,
		Cells:     backend,
		Codes:     codes,
		Owner:     owner,
		FeeRate:   cfg.FeeRate.Capacity,
		Tracker:   tracker,
		Journal:   store,
	})
	if err != nil {
		return reportErr("Failed to create the workflow", err)
	}

	var s wallet.State
	if resumed != nil {
		s = *resumed
		log.Infof("Resuming run %v at phase %v", s.RunID, s.Phase)
	} else {
		s = w.Start()
	}

	s, err = advance(ctx, w, s, planFromConfig(cfg))
	if err != nil {
		log.Errorf("Run %v stopped at phase %v: %v", s.RunID, s.Phase,
			err)
		if !cfg.SimNet {
			log.Infof("Resume it with --resume=%v", s.RunID)
		}
		return reportErr("Run failed", err)
	}

	printState(s)

	if cfg.CatalogDB != "" {
		if err := publish(ctx, cfg, backend, s); err != nil {
			return reportErr("Failed to publish the script", err)
		}
	}

	return nil
}

// reportErr writes what failed and why to stderr and returns err.
func reportErr(what string, err error) error {
	fmt.Fprintf(os.Stderr, "%s: %v", what, err)
	os.Stderr.Write(newlineBytes)
	return err
}

// ownerLock adds the owner key to keys and returns its default lock. The key
// comes from the config, a prompt, or, on simnet, is generated.
func ownerLock(cfg *config, keys *signer.Keyring) (wire.Script, error) {
	if cfg.PrivKey != "" {
		return keys.ImportHex(cfg.PrivKey)
	}

	if cfg.SimNet {
		_, lock, err := keys.NewKey()
		if err != nil {
			return wire.Script{}, err
		}
		log.Infof("Generated a throwaway simnet key")
		return lock, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return wire.Script{}, errors.New("no --privkey given and stdin " +
			"is not a terminal")
	}
	secret, err := promptSecret("Owner private key (hex)")
	if err != nil {
		return wire.Script{}, err
	}
	return keys.ImportHex(strings.TrimSpace(secret))
}

func promptSecret(what string) (string, error) {
	fmt.Printf("%s: ", what)
	fd := int(os.Stdin.Fd())
	input, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(input), nil
}

// newBackend returns the ledger and code store of the selected network. The
// simulated ledger enforces the rules of the configured script binaries and
// funds the owner.
func newBackend(cfg *config, params *netparams.Params,
	owner wire.Script) (chain.Interface, wallet.CodeStore, error) {

	if !cfg.SimNet {
		client, err := chain.NewRPCClient(&chain.RPCConfig{
			URL:          cfg.RPCConnect.Value,
			PollInterval: cfg.PollInterval,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, codestore.NewDir(cfg.CodeDir), nil
	}

	codes, err := simnetCodes(cfg)
	if err != nil {
		return nil, nil, err
	}
	hash := func(name string) (wire.Hash, error) {
		code, err := codes.ReadBytes(name)
		if err != nil {
			return wire.Hash{}, err
		}
		return wire.CKBHash(code), nil
	}

	type codeRule struct {
		name string
		rule func(wire.Hash) chain.ScriptRule
	}
	codeRules := []codeRule{
		{cfg.TokenDefCode, chain.TokenRule},
		{cfg.WalletLockCode, chain.WalletRule},
		{cfg.ScriptCode, chain.PaymentRule},
	}
	if cfg.TypeID != "" || cfg.Unique {
		codeRules = append(codeRules,
			codeRule{cfg.TypeIDCode, chain.TypeIDRule})
	}

	rules := make([]chain.ScriptRule, 0, len(codeRules))
	for _, r := range codeRules {
		h, err := hash(r.name)
		if err != nil {
			return nil, nil, err
		}
		rules = append(rules, r.rule(h))
	}

	ledger := chain.NewSimLedger(params, rules...)
	for i := 0; i < simnetFundingCells; i++ {
		ledger.Fund(owner, wire.CKBytes(simnetFundingCapacity))
	}

	return ledger, codes, nil
}

// simnetCodes returns the code directory when it exists and placeholder
// binaries otherwise. The simulated ledger never executes code, so any
// distinct bytes serve.
func simnetCodes(cfg *config) (wallet.CodeStore, error) {
	exists, err := cfgutil.FileExists(cfg.CodeDir)
	if err != nil {
		return nil, err
	}
	if exists {
		return codestore.NewDir(cfg.CodeDir), nil
	}

	log.Infof("Code directory %s not found, using placeholder binaries",
		cfg.CodeDir)

	codes := make(map[string][]byte)
	for _, name := range []string{cfg.TokenDefCode, cfg.WalletLockCode,
		cfg.ScriptCode, cfg.TypeIDCode} {

		codes[name] = []byte("simnet placeholder code " + name)
	}
	return codestore.NewMemory(codes), nil
}

// loadRun reads a recorded run and restores its consumed references into
// tracker.
func loadRun(store *runstore.Store, tracker *cellref.Tracker,
	id string) (wallet.State, error) {

	runID, err := uuid.Parse(id)
	if err != nil {
		return wallet.State{}, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("run id %q", id), err)
	}

	s, spent, err := store.Load(runID)
	if err != nil {
		return wallet.State{}, err
	}
	tracker.Restore(spent)

	return s, nil
}

func listRuns(cfg *config) error {
	store, err := runstore.Open(cfg.runsDBPath(), defaultDBTimeout)
	if err != nil {
		return reportErr("Failed to open the run store", err)
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return reportErr("Failed to list runs", err)
	}
	for _, r := range runs {
		fmt.Printf("%v  %-22v  %s\n", r.ID, r.Phase,
			r.Updated.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// printState writes the outputs of a finished run to stdout.
func printState(s wallet.State) {
	fmt.Printf("Run %v reached phase %v\n", s.RunID, s.Phase)
	if s.Token != nil {
		fmt.Printf("Token type hash:       %v\n", s.Token.TypeScript.Hash())
	}
	if s.Wallet != nil {
		fmt.Printf("Wallet lock hash:      %v\n", s.Wallet.Lock.Hash())
		fmt.Printf("Wallet cell:           %v (%v tokens, %v)\n",
			s.Wallet.Ref.OutPoint, s.Wallet.Amount,
			s.Wallet.Ref.Cell.Capacity)
	}
	if s.Script != nil {
		fmt.Printf("Reusable script:       %v at %v\n",
			s.Script.DataHash, s.Script.Ref.OutPoint)
	}
	if s.Usage != nil {
		fmt.Printf("Paid uses:             %d\n", s.Usage.Count)
	}
	if s.TypeID != nil {
		fmt.Printf("Type id:               %v (version %d)\n",
			s.TypeID.ID, s.TypeID.Version)
	}
	if s.LastTransfer != nil {
		fmt.Printf("Transferred:           %v tokens in %v\n",
			s.LastTransfer.Amount, s.LastTransfer.Sent.OutPoint)
	}
}

// publish adds the run's reusable script to the catalog and prints the
// catalog listings.
func publish(ctx context.Context, cfg *config, cells catalog.CellSource,
	s wallet.State) error {

	entry, err := catalog.FromState(s, catalog.Metadata{
		Name:        cfg.ScriptName,
		Description: cfg.ScriptDescription,
		Author:      cfg.ScriptAuthor,
	})
	if err != nil {
		return err
	}

	db, err := catalog.Open(ctx, cfg.CatalogDriver, cfg.CatalogDB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Put(ctx, entry); err != nil {
		return err
	}
	log.Infof("Published script %q to the catalog", entry.Name)

	return printListings(ctx, catalog.NewIndex(db, cells))
}

func listCatalog(ctx context.Context, cfg *config,
	cells catalog.CellSource) error {

	db, err := catalog.Open(ctx, cfg.CatalogDriver, cfg.CatalogDB)
	if err != nil {
		return reportErr("Failed to open the catalog", err)
	}
	defer db.Close()

	if err := printListings(ctx, catalog.NewIndex(db, cells)); err != nil {
		return reportErr("Failed to list the catalog", err)
	}
	return nil
}

func printListings(ctx context.Context, index *catalog.Index) error {
	listings, err := index.Refresh(ctx)
	if err != nil {
		return err
	}
	for _, l := range listings {
		fmt.Printf("%-20s %v fee %v tokens + %v, collected %v tokens "+
			"in %d %s (%v)\n", l.Name, l.DataHash,
			l.Payment.UsageFee, wire.Capacity(l.Payment.CKBRate),
			l.Collected, l.Cells, pickNoun(l.Cells, "cell", "cells"),
			l.Capacity)
	}
	return nil
}

func pickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

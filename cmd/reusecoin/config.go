// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/WilfredTA/ReuseCoin/build"
	"github.com/WilfredTA/ReuseCoin/catalog"
	"github.com/WilfredTA/ReuseCoin/chain"
	"github.com/WilfredTA/ReuseCoin/internal/cfgutil"
	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "reusecoin.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "reusecoin.log"
	defaultCodeDirname    = "codes"
	defaultMaxLogFileSize = 10
	defaultMaxLogFiles    = 3
	defaultRPCPort        = "8114"
	defaultDBTimeout      = 10 * time.Second

	defaultTokenDefCode   = "simple_udt"
	defaultWalletLockCode = "reuse_coin_wallet"
	defaultScriptCode     = "reusable_script"
	defaultTypeIDCode     = "type_id"

	defaultCKBRate   = 1 * wire.ShannonsPerCKByte
	defaultTokenRate = 100
	defaultIssue     = 1_000_000
	defaultDeposit   = 1_000
	defaultUses      = 1

	runsDBName = "runs.db"
)

var (
	reusecoinHomeDir  = btcutil.AppDataDir("reusecoin", false)
	defaultConfigFile = filepath.Join(reusecoinHomeDir, defaultConfigFilename)
	defaultDataDir    = reusecoinHomeDir
	defaultLogDir     = filepath.Join(reusecoinHomeDir, defaultLogDirname)
	defaultCodeDir    = filepath.Join(reusecoinHomeDir, defaultCodeDirname)
)

type config struct {
	// General application behavior
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store run states"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	TestNet     bool   `long:"testnet" description:"Use the test network (default mainnet)"`
	DevNet      bool   `long:"devnet" description:"Use a local development chain (default mainnet)"`
	SimNet      bool   `long:"simnet" description:"Use an in-process simulated ledger funded with test capacity"`

	// Node options
	RPCConnect   *cfgutil.ExplicitString `short:"c" long:"rpcconnect" description:"URL or host:port of the CKB node RPC server (default port: 8114)"`
	PollInterval time.Duration           `long:"pollinterval" description:"How often to poll the node for transaction commitment"`
	DepGroup     string                  `long:"secp256k1depgroup" description:"Out point <txhash>:<index> of the secp256k1 dep group, for devnets whose genesis differs"`

	// Key options
	PrivKey string `long:"privkey" default-mask:"-" description:"Hex encoded secp256k1 private key owning the run (prompted for if unset)"`

	// Script code options
	CodeDir        string `long:"codedir" description:"Directory holding the script binaries"`
	TokenDefCode   string `long:"tokendefcode" description:"File name of the token definition binary"`
	WalletLockCode string `long:"walletlockcode" description:"File name of the wallet lock binary"`
	ScriptCode     string `long:"scriptcode" description:"File name of the reusable script binary"`
	TypeIDCode     string `long:"typeidcode" description:"File name of the type id script binary"`

	// Run options
	FeeRate   *cfgutil.CapacityFlag    `long:"feerate" description:"Fee rate in CKB per 1000 bytes (default 0.00001)"`
	CKBRate   *cfgutil.CapacityFlag    `long:"ckbrate" description:"Capacity in CKB each use adds to the wallet"`
	TokenRate *cfgutil.TokenAmountFlag `long:"tokenrate" description:"Token fee of one use"`
	Issue     *cfgutil.TokenAmountFlag `long:"issue" description:"Token amount to mint"`
	Deposit   *cfgutil.TokenAmountFlag `long:"deposit" description:"Token amount moved into the new wallet"`
	Unique    bool                     `long:"unique" description:"Bind the wallet to the single reusable script deployed for it"`
	Uses      int                      `long:"uses" description:"Number of paid uses of the reusable script to make"`
	TypeID    string                   `long:"typeid" description:"Create, or update, a type id cell holding this data"`

	TransferTo     string                   `long:"transferto" description:"Address receiving a token transfer after the run"`
	TransferAmount *cfgutil.TokenAmountFlag `long:"transferamount" description:"Token amount to transfer"`

	// Run store options
	Resume   string `long:"resume" description:"Resume the run with this id"`
	ListRuns bool   `long:"listruns" description:"List the recorded runs and exit"`

	// Catalog options
	CatalogDB         string `long:"catalogdb" description:"Data source of the script catalog; publishing is skipped when unset"`
	CatalogDriver     string `long:"catalogdriver" description:"Database driver of the script catalog {sqlite, pgx}"`
	ScriptName        string `long:"scriptname" description:"Catalog name of the reusable script"`
	ScriptDescription string `long:"scriptdescription" description:"Catalog description of the reusable script"`
	ScriptAuthor      string `long:"scriptauthor" description:"Catalog author of the reusable script"`
	ListCatalog       bool   `long:"listcatalog" description:"Print the catalog with live wallet balances and exit"`

	params    *netparams.Params
	depGroup  wire.OutPoint
	recipient wire.Script
}

// runsDBPath returns the run store path of the active network.
func (c *config) runsDBPath() string {
	return filepath.Join(c.DataDir, c.params.Name, runsDBName)
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	cfg := config{
		DebugLevel:     build.LogLevel,
		ConfigFile:     defaultConfigFile,
		DataDir:        defaultDataDir,
		LogDir:         defaultLogDir,
		RPCConnect:     cfgutil.NewExplicitString(""),
		PollInterval:   chain.DefaultPollInterval,
		CodeDir:        defaultCodeDir,
		TokenDefCode:   defaultTokenDefCode,
		WalletLockCode: defaultWalletLockCode,
		ScriptCode:     defaultScriptCode,
		TypeIDCode:     defaultTypeIDCode,
		FeeRate:        cfgutil.NewCapacityFlag(0),
		CKBRate:        cfgutil.NewCapacityFlag(defaultCKBRate),
		TokenRate:      cfgutil.NewTokenAmountFlag(defaultTokenRate),
		Issue:          cfgutil.NewTokenAmountFlag(defaultIssue),
		Deposit:        cfgutil.NewTokenAmountFlag(defaultDeposit),
		TransferAmount: cfgutil.NewTokenAmountFlag(0),
		Uses:           defaultUses,
		CatalogDriver:  catalog.DriverSQLite,
		ScriptName:     defaultScriptCode,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	funcName := "loadConfig"
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFile := cfgutil.CleanAndExpandPath(preCfg.ConfigFile)
	err = flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	cfg.params = &netparams.MainNetParams
	numNets := 0
	if cfg.TestNet {
		cfg.params = &netparams.TestNetParams
		numNets++
	}
	if cfg.DevNet {
		cfg.params = &netparams.DevNetParams
		numNets++
	}
	if cfg.SimNet {
		cfg.params = &netparams.SimNetParams
		numNets++
	}
	if numNets > 1 {
		str := "%s: The testnet, devnet and simnet params can't be " +
			"used together -- choose one"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	cfg.DataDir = cfgutil.CleanAndExpandPath(cfg.DataDir)
	cfg.CodeDir = cfgutil.CleanAndExpandPath(cfg.CodeDir)

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cfgutil.CleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.params.Name)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logWriter.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized,
	// the logger variables may be used.
	err = logWriter.InitLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		defaultMaxLogFileSize, defaultMaxLogFiles,
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Parse, validate, and set debug log level(s).
	if err := logWriter.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if err := cfg.validate(); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// validate checks the option combinations and derives the network
// dependent settings.
func (c *config) validate() error {
	if c.SimNet {
		if c.Resume != "" {
			return errors.New("simnet runs live in memory and can " +
				"not be resumed")
		}
		if c.RPCConnect.ExplicitlySet() {
			return errors.New("--rpcconnect can not be used with " +
				"--simnet")
		}
	} else {
		c.RPCConnect.SetDefault(c.params.RPCURL)
		url, err := cfgutil.NormalizeURL(c.RPCConnect.Value,
			defaultRPCPort)
		if err != nil {
			return fmt.Errorf("invalid --rpcconnect: %w", err)
		}
		c.RPCConnect.Value = url
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval %v must be positive",
			c.PollInterval)
	}
	if c.Uses < 0 {
		return fmt.Errorf("number of uses %d is negative", c.Uses)
	}
	if c.Issue.Sign() == 0 {
		return errors.New("the issued token amount must be positive")
	}
	if c.Deposit.Cmp(c.Issue.Int) > 0 {
		return fmt.Errorf("deposit %v exceeds the issued amount %v",
			c.Deposit, c.Issue)
	}

	switch c.CatalogDriver {
	case catalog.DriverSQLite, catalog.DriverPostgres:
	default:
		return fmt.Errorf("unknown catalog driver %q, want one of %v",
			c.CatalogDriver, catalog.Drivers())
	}
	if c.ListCatalog && c.CatalogDB == "" {
		return errors.New("--listcatalog requires --catalogdb")
	}

	c.depGroup = c.params.Secp256k1DepGroup
	if c.DepGroup != "" {
		op, err := wire.ParseOutPoint(c.DepGroup)
		if err != nil {
			return fmt.Errorf("invalid --secp256k1depgroup: %w", err)
		}
		c.depGroup = op
	}

	if c.TransferTo != "" {
		lock, err := wire.DecodeAddress(c.params.AddressHRP,
			c.TransferTo)
		if err != nil {
			return fmt.Errorf("invalid --transferto: %w", err)
		}
		if c.TransferAmount.Sign() == 0 {
			return errors.New("--transferto requires a positive " +
				"--transferamount")
		}
		c.recipient = lock
	}

	return nil
}

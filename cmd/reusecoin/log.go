// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/WilfredTA/ReuseCoin/build"
	"github.com/WilfredTA/ReuseCoin/catalog"
	"github.com/WilfredTA/ReuseCoin/chain"
	"github.com/WilfredTA/ReuseCoin/runstore"
	"github.com/WilfredTA/ReuseCoin/signer"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
)

// logWriter writes every subsystem to stdout and, once its rotator is
// initialized, to the log file.
var logWriter = build.NewRotatingLogWriter()

// log is the logger of the command itself.
var log = logWriter.RegisterSubLogger("RUSE", nil)

// Loggers can not be used before the log rotator has been initialized with a
// log file.  This must be performed early during application startup by
// calling logWriter.InitLogRotator.
func init() {
	logWriter.RegisterSubLogger(wallet.Subsystem, wallet.UseLogger)
	logWriter.RegisterSubLogger(txauthor.Subsystem, txauthor.UseLogger)
	logWriter.RegisterSubLogger(chain.Subsystem, chain.UseLogger)
	logWriter.RegisterSubLogger(signer.Subsystem, signer.UseLogger)
	logWriter.RegisterSubLogger(runstore.Subsystem, runstore.UseLogger)
	logWriter.RegisterSubLogger(catalog.Subsystem, catalog.UseLogger)
}

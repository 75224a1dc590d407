// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package catalog

import (
	"github.com/WilfredTA/ReuseCoin/build"
	"github.com/btcsuite/btclog"
)

// Subsystem is the logging tag of the script catalog.
const Subsystem = "CTLG"

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger(Subsystem, nil))
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES
//
// wdboard - safety watchdog board firmware and bench tools

package main

import (
	"os"

	"github.com/golang/glog"

	"github.com/3DES/WatchdogBoard/cmd"
)

func main() {
	defer glog.Flush()
	if err := cmd.Execute(); err != nil {
		glog.Errorf("%v", err)
		os.Exit(1)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

// Package firmware assembles the board: watchdog core, cyclic I/O task,
// diagnosis store and protocol receiver, and runs them against a serial
// connection and a tick source.
package firmware

import (
	"github.com/3DES/WatchdogBoard/pkg/diagnosis"
	"github.com/3DES/WatchdogBoard/pkg/iotask"
	"github.com/3DES/WatchdogBoard/pkg/watchdog"
)

// device adapts the firmware subsystems to the lineproto.Device surface.
type device struct {
	version string
	wd      *watchdog.Watchdog
	io      *iotask.Handler
	store   *diagnosis.Store
}

func (d *device) Version() string { return d.version }

func (d *device) SetWatchdog(value uint16) { d.wd.Set(value) }

func (d *device) WatchdogRunning() bool { return d.wd.Running() }

func (d *device) LockRequired() bool { return d.wd.LockRequired() }

func (d *device) SetOutput(index, value uint16) { d.io.SetOutput(index, value) }

func (d *device) Output(index uint16) bool { return d.io.Output(index) }

func (d *device) Input(index uint16) bool { return d.io.Input(index) }

func (d *device) ConsumeDiagnoses() (uint16, uint16, uint16) {
	return d.store.Diagnoses(), d.store.ErrorNumber(), d.store.ExecutedTests()
}

func (d *device) RequestSelfTest() bool { return d.wd.RequestSelfTest() }

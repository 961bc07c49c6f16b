// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package iotask

import (
	"testing"

	"github.com/3DES/WatchdogBoard/pkg/board"
	"github.com/3DES/WatchdogBoard/pkg/diagnosis"
	"github.com/3DES/WatchdogBoard/pkg/watchdog"
)

// testProfile uses small distinct pin numbers so assertions read easily.
func testProfile() board.Profile {
	return board.Profile{
		Pins: board.PinConfig{
			Outputs:   []board.Pin{1, 2, 3, 4, 5, 6, 7},
			Watchdog:  8,
			ResetLock: 9,
			Led:       10,
			Inputs:    []board.Pin{11, 12, 13, 14},
		},
	}
}

type rig struct {
	sim   *board.Simulator
	store *diagnosis.Store
	wd    *watchdog.Watchdog
	h     *Handler
}

func newRig(t *testing.T) *rig {
	t.Helper()
	sim := board.NewSimulator()
	profile := testProfile()
	sim.WireRelay(profile.Pins.Watchdog, profile.Pins.Inputs[0])
	store := diagnosis.NewStore()
	wd := watchdog.New(store)
	return &rig{sim: sim, store: store, wd: wd, h: New(sim, wd, profile)}
}

// arm walks the rig through the initial self test and arms the watchdog.
func (r *rig) arm(t *testing.T) {
	t.Helper()
	for i := 0; i < 5; i++ {
		r.h.Tick()
	}
	r.wd.Set(1)
	if r.wd.State() != watchdog.StateOk {
		t.Fatalf("failed to arm: %s", r.wd.State())
	}
}

func TestTask_BootState(t *testing.T) {
	r := newRig(t)

	for pin := board.Pin(1); pin <= 8; pin++ {
		if r.sim.Level(pin) {
			t.Errorf("output pin %d driven at boot", pin)
		}
		if r.sim.Mode(pin) != board.ModeOutput {
			t.Errorf("output pin %d not configured as output", pin)
		}
	}
	if r.sim.Mode(9) != board.ModeInput {
		t.Error("reset-lock pin must boot tri-stated")
	}
	if !r.sim.Level(10) {
		t.Error("status LED must boot on")
	}
}

func TestTask_RelayPulsesWhenPermitted(t *testing.T) {
	r := newRig(t)
	r.arm(t)

	// the relay pin follows the shared polarity, one toggle per tick
	var levels []bool
	for i := 0; i < 4; i++ {
		r.h.Tick()
		levels = append(levels, r.sim.Level(8))
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] == levels[i-1] {
			t.Fatalf("relay pin did not toggle between ticks: %v", levels)
		}
	}
}

func TestTask_RelayLowWithoutArming(t *testing.T) {
	r := newRig(t)

	for i := 0; i < 100; i++ {
		r.h.Tick()
		if r.sim.Level(8) {
			t.Fatal("relay driven while the watchdog was never armed")
		}
	}
}

func TestTask_PulsedOutputsShareThePolarity(t *testing.T) {
	r := newRig(t)
	r.arm(t)
	r.h.SetOutput(0, 1) // pulsed
	r.h.SetOutput(2, 1) // pulsed
	r.h.SetOutput(3, 1) // steady

	for i := 0; i < 6; i++ {
		r.h.Tick()
		if r.sim.Level(1) != r.sim.Level(8) || r.sim.Level(3) != r.sim.Level(8) {
			t.Fatal("pulsed outputs out of phase with the relay polarity")
		}
		if !r.sim.Level(4) {
			t.Fatal("steady output not held high")
		}
		if r.sim.Level(2) {
			t.Fatal("output 1 driven while logically off")
		}
	}
}

func TestTask_OutputsDropWhenWatchdogNotOk(t *testing.T) {
	r := newRig(t)
	r.arm(t)
	for i := uint16(0); i < NumOutputs; i++ {
		r.h.SetOutput(i, 1)
	}
	r.h.Tick()

	r.wd.Set(0) // fault

	r.h.Tick()
	for pin := board.Pin(1); pin <= 8; pin++ {
		if r.sim.Level(pin) {
			t.Errorf("pin %d still driven after the fault", pin)
		}
	}

	// the stored output states survive, only the pins drop
	if !r.h.Output(0) {
		t.Error("logical output state must survive the fault")
	}
}

func TestTask_OutputStoreBounds(t *testing.T) {
	r := newRig(t)

	r.h.SetOutput(7, 1) // the watchdog slot is not addressable
	if r.h.Output(7) {
		t.Error("out-of-range output accepted")
	}
	if r.h.Input(4) {
		t.Error("out-of-range input read true")
	}
}

func TestTask_InputSampling(t *testing.T) {
	r := newRig(t)

	r.sim.SetInput(12, true)
	r.sim.SetInput(14, true)
	r.h.Tick()

	want := [NumInputs]bool{false, true, false, true}
	for i := uint16(0); i < NumInputs; i++ {
		if r.h.Input(i) != want[i] {
			t.Errorf("input %d = %v, want %v", i, r.h.Input(i), want[i])
		}
	}
}

func TestTask_ResetLockSequencing(t *testing.T) {
	r := newRig(t)
	r.arm(t)

	r.h.Tick()
	if r.sim.Mode(9) != board.ModeOutput || !r.sim.Level(9) {
		t.Fatal("reset-lock pin not driven high after arming")
	}

	// fault and run out the grace period
	r.wd.Set(0)
	for i := 0; i < int(watchdog.LockMax); i++ {
		r.h.Tick()
	}
	if r.sim.Mode(9) != board.ModeInput {
		t.Error("reset-lock pin not released after the grace period")
	}
	if r.sim.Level(9) {
		t.Error("reset-lock level must be dropped before tri-stating")
	}
}

func TestTask_LedPolicy(t *testing.T) {
	r := newRig(t)

	// solid on through INIT
	for i := 0; i < 500; i++ {
		r.h.Tick()
	}
	if !r.sim.Level(10) {
		t.Fatal("LED must stay on in INIT")
	}

	r.wd.Set(1)
	for i := 0; i < ledPeriodOk; i++ {
		r.h.Tick()
	}
	if r.sim.Level(10) {
		t.Fatal("LED should have completed a slow toggle in OK")
	}

	r.wd.Set(0)
	for i := 0; i < ledPeriodError; i++ {
		r.h.Tick()
	}
	if !r.sim.Level(10) {
		t.Error("LED should blink fast after a fault")
	}
}

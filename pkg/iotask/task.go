// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

// Package iotask drives the board's pins once per millisecond: pulsed and
// steady outputs, the watchdog relay, the reset-lock sequencing, input
// sampling and the status LED. It owns the logical output and input slot
// stores shared with the protocol receiver.
package iotask

import (
	"sync"

	"github.com/3DES/WatchdogBoard/pkg/board"
	"github.com/3DES/WatchdogBoard/pkg/watchdog"
)

const (
	// NumOutputs logical outputs are addressable by the host; the
	// watchdog relay occupies one more slot in the physical pin table
	// that the set-output path can never reach.
	NumOutputs = 7
	NumInputs  = 4

	watchdogIndex = NumOutputs
)

// pulsedPorts marks which physical output slots pulse at tick cadence
// instead of driving a steady level. The mixed table is authoritative:
// outputs 0..2 pulse, 3..6 are steady, the watchdog relay always pulses.
var pulsedPorts = [NumOutputs + 1]bool{true, true, true, false, false, false, false, true}

// Status LED cadence in ticks.
const (
	ledPeriodOk    = 2000
	ledPeriodError = 100
)

// Handler is the cyclic I/O task. Tick is invoked from the 1 kHz timer
// context; the output store is written from the protocol context. mu
// serializes whole ticks and is also how the retrigger burst suspends the
// cyclic task, the moral equivalent of masking the timer interrupt.
type Handler struct {
	mu   sync.Mutex
	port board.Port
	wd   *watchdog.Watchdog

	outputPins [NumOutputs + 1]board.Pin // last slot is the watchdog relay
	inputPins  [NumInputs]board.Pin
	resetLock  board.Pin
	led        board.Pin

	slotMu  sync.Mutex
	outputs [NumOutputs]bool
	inputs  [NumInputs]bool

	highCycle bool
	locked    bool
	ledLevel  bool
	ledTicks  uint16
}

// New wires the task to a port using the given profile and puts every pin
// into its boot state: outputs driven low, the reset lock tri-stated, the
// status LED on.
func New(port board.Port, wd *watchdog.Watchdog, profile board.Profile) *Handler {
	h := &Handler{port: port, wd: wd}
	copy(h.outputPins[:NumOutputs], profile.Pins.Outputs)
	h.outputPins[watchdogIndex] = profile.Pins.Watchdog
	copy(h.inputPins[:], profile.Pins.Inputs)
	h.resetLock = profile.Pins.ResetLock
	h.led = profile.Pins.Led

	for _, pin := range h.outputPins {
		port.SetMode(pin, board.ModeOutput)
		port.Write(pin, false)
	}
	for _, pin := range h.inputPins {
		port.SetMode(pin, board.ModeInput)
	}
	port.SetMode(h.resetLock, board.ModeInput)
	port.SetMode(h.led, board.ModeOutput)
	port.Write(h.led, true)
	h.ledLevel = true
	return h
}

// SetOutput stores a logical output state; the next tick applies it. An
// out-of-range index is ignored, the protocol layer has already NACKed
// it.
func (h *Handler) SetOutput(index, value uint16) {
	if index >= NumOutputs {
		return
	}
	h.slotMu.Lock()
	h.outputs[index] = value != 0
	h.slotMu.Unlock()
}

// Output returns the stored state of a logical output.
func (h *Handler) Output(index uint16) bool {
	if index >= NumOutputs {
		return false
	}
	h.slotMu.Lock()
	defer h.slotMu.Unlock()
	return h.outputs[index]
}

// Input returns the input state sampled by the last tick.
func (h *Handler) Input(index uint16) bool {
	if index >= NumInputs {
		return false
	}
	h.slotMu.Lock()
	defer h.slotMu.Unlock()
	return h.inputs[index]
}

// Tick runs one cycle of the I/O task.
func (h *Handler) Tick() {
	h.mu.Lock()
	defer h.mu.Unlock()

	// one shared polarity bit keeps every pulsed output on the same edges
	h.highCycle = !h.highCycle

	// self test consumes the readback sample, then the watchdog counts
	// down; the combined verdict gates the relay
	readback := h.port.Read(h.inputPins[0])
	drive := h.wd.Tick(readback)
	if drive {
		h.port.Write(h.outputPins[watchdogIndex], h.highCycle)
	} else {
		h.port.Write(h.outputPins[watchdogIndex], false)
	}

	h.sequenceResetLock()

	// all logical outputs drop the moment the watchdog is not OK
	ok := h.wd.State() == watchdog.StateOk
	h.slotMu.Lock()
	outputs := h.outputs
	h.slotMu.Unlock()
	for i := 0; i < NumOutputs; i++ {
		switch {
		case !ok || !outputs[i]:
			h.port.Write(h.outputPins[i], false)
		case pulsedPorts[i]:
			h.port.Write(h.outputPins[i], h.highCycle)
		default:
			h.port.Write(h.outputPins[i], true)
		}
	}

	var inputs [NumInputs]bool
	for i := range h.inputPins {
		inputs[i] = h.port.Read(h.inputPins[i])
	}
	h.slotMu.Lock()
	h.inputs = inputs
	h.slotMu.Unlock()

	h.updateLed()
}

// sequenceResetLock moves the reset-lock pin between driven-high and
// tri-state, edges only. Locking raises the level before switching the
// pin to output; unlocking drops the level first so the pull-up is off by
// the time the pin goes back to input.
func (h *Handler) sequenceResetLock() {
	lock := h.wd.LockRequired()
	if lock == h.locked {
		return
	}
	if lock {
		h.port.Write(h.resetLock, true)
		h.port.SetMode(h.resetLock, board.ModeOutput)
	} else {
		h.port.Write(h.resetLock, false)
		h.port.SetMode(h.resetLock, board.ModeInput)
	}
	h.locked = lock
}

// updateLed applies the status LED policy: solid on while the watchdog
// has not been armed, slow blink while OK, fast blink after a fault.
func (h *Handler) updateLed() {
	var period uint16
	switch h.wd.State() {
	case watchdog.StateInit:
		if !h.ledLevel {
			h.ledLevel = true
			h.port.Write(h.led, true)
		}
		h.ledTicks = 0
		return
	case watchdog.StateOk:
		period = ledPeriodOk
	default:
		period = ledPeriodError
	}
	h.ledTicks++
	if h.ledTicks >= period {
		h.ledTicks = 0
		h.ledLevel = !h.ledLevel
		h.port.Write(h.led, h.ledLevel)
	}
}

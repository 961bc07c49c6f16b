// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

// Package board abstracts the digital I/O port of the watchdog board and
// its boot-time hardware profile. Two implementations exist: the
// Raspberry Pi GPIO header via go-rpio, and an in-memory simulator that
// closes the relay readback loop for bench work and tests.
package board

// Pin is a hardware pin number in the driver's own numbering scheme
// (BCM numbers for the Raspberry Pi driver).
type Pin uint8

// PinMode selects the electrical role of a pin. ModeInput is the
// tri-state role used by the unlocked reset-lock pin.
type PinMode uint8

const (
	ModeInput PinMode = iota
	ModeOutput
)

// Port is a digital I/O port. Implementations must tolerate calls from
// the cyclic tick at 1 kHz; errors are not part of the contract because
// a pin access on the chosen targets cannot meaningfully fail mid-flight.
type Port interface {
	// SetMode switches a pin between tri-state input and driven output.
	SetMode(pin Pin, mode PinMode)

	// Write drives an output pin high or low. Writing while the pin is
	// still an input presets the level it drives once switched to output;
	// the reset-lock sequencing relies on that.
	Write(pin Pin, high bool)

	// Read samples a pin level.
	Read(pin Pin) bool
}

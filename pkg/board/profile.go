// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the boot-time hardware binding of the board: which pins
// carry the outputs, the watchdog relay, the reset lock, the status LED
// and the inputs, plus the serial line settings. It is read once at
// startup; pin assignments never change at runtime.
type Profile struct {
	Serial SerialConfig `yaml:"serial"`
	Pins   PinConfig    `yaml:"pins"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type PinConfig struct {
	// Outputs lists the 7 logical output pins. Indices 0..2 are pulsed,
	// 3..6 are steady.
	Outputs []Pin `yaml:"outputs"`

	// Watchdog is the relay pin. It sits outside Outputs on purpose:
	// nothing addressable through the set-output command may ever reach
	// it.
	Watchdog Pin `yaml:"watchdog"`

	ResetLock Pin `yaml:"reset_lock"`
	Led       Pin `yaml:"led"`

	// Inputs lists the 4 digital input pins; index 0 doubles as the
	// watchdog readback.
	Inputs []Pin `yaml:"inputs"`
}

// DefaultProfile returns the binding of the reference board.
func DefaultProfile() Profile {
	return Profile{
		Serial: SerialConfig{Device: "/dev/ttyAMA0", Baud: 9600},
		Pins: PinConfig{
			Outputs:   []Pin{17, 27, 22, 5, 6, 13, 19},
			Watchdog:  26,
			ResetLock: 21,
			Led:       16,
			Inputs:    []Pin{23, 24, 25, 12},
		},
	}
}

// LoadProfile reads a profile from path, fills in defaults and validates
// it.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	profile.normalize()
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// normalize fills defaulted fields left empty by a partial profile.
func (p *Profile) normalize() {
	def := DefaultProfile()
	if p.Serial.Device == "" {
		p.Serial.Device = def.Serial.Device
	}
	if p.Serial.Baud == 0 {
		p.Serial.Baud = def.Serial.Baud
	}
	if len(p.Pins.Outputs) == 0 {
		p.Pins.Outputs = def.Pins.Outputs
	}
	if len(p.Pins.Inputs) == 0 {
		p.Pins.Inputs = def.Pins.Inputs
	}
}

// Validate checks pin counts and uniqueness.
func (p *Profile) Validate() error {
	if p.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", p.Serial.Baud)
	}
	if len(p.Pins.Outputs) != 7 {
		return fmt.Errorf("profile must name exactly 7 output pins, got %d", len(p.Pins.Outputs))
	}
	if len(p.Pins.Inputs) != 4 {
		return fmt.Errorf("profile must name exactly 4 input pins, got %d", len(p.Pins.Inputs))
	}

	seen := map[Pin]string{}
	claim := func(pin Pin, role string) error {
		if prev, ok := seen[pin]; ok {
			return fmt.Errorf("pin %d assigned to both %s and %s", pin, prev, role)
		}
		seen[pin] = role
		return nil
	}
	for i, pin := range p.Pins.Outputs {
		if err := claim(pin, fmt.Sprintf("output %d", i)); err != nil {
			return err
		}
	}
	if err := claim(p.Pins.Watchdog, "watchdog"); err != nil {
		return err
	}
	if err := claim(p.Pins.ResetLock, "reset_lock"); err != nil {
		return err
	}
	if err := claim(p.Pins.Led, "led"); err != nil {
		return err
	}
	for i, pin := range p.Pins.Inputs {
		if err := claim(pin, fmt.Sprintf("input %d", i)); err != nil {
			return err
		}
	}
	return nil
}

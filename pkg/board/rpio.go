// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package board

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPiPort drives the Raspberry Pi GPIO header through /dev/gpiomem.
type RPiPort struct{}

// OpenRPi memory-maps the GPIO registers and returns the port.
func OpenRPi() (*RPiPort, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}
	return &RPiPort{}, nil
}

// Close unmaps the GPIO registers.
func (p *RPiPort) Close() error {
	return rpio.Close()
}

func (p *RPiPort) SetMode(pin Pin, mode PinMode) {
	switch mode {
	case ModeOutput:
		rpio.Pin(pin).Output()
	default:
		// plain input, pull explicitly off so the pin really tri-states
		rpio.Pin(pin).Input()
		rpio.Pin(pin).PullOff()
	}
}

func (p *RPiPort) Write(pin Pin, high bool) {
	if high {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
}

func (p *RPiPort) Read(pin Pin) bool {
	return rpio.Pin(pin).Read() == rpio.High
}

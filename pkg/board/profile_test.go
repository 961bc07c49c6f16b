// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package board

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProfile_FillsDefaults(t *testing.T) {
	path := writeProfile(t, "serial:\n  device: /dev/ttyUSB3\n")

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if profile.Serial.Device != "/dev/ttyUSB3" {
		t.Errorf("device = %q", profile.Serial.Device)
	}
	if profile.Serial.Baud != 9600 {
		t.Errorf("baud default = %d, want 9600", profile.Serial.Baud)
	}
	if len(profile.Pins.Outputs) != 7 || len(profile.Pins.Inputs) != 4 {
		t.Errorf("default pin table not applied: %+v", profile.Pins)
	}
}

func TestLoadProfile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "wrong output count",
			content: "pins:\n  outputs: [1, 2, 3]\n",
			wantErr: "exactly 7 output pins",
		},
		{
			name:    "wrong input count",
			content: "pins:\n  inputs: [1, 2]\n",
			wantErr: "exactly 4 input pins",
		},
		{
			name:    "duplicate pin",
			content: "pins:\n  watchdog: 17\n", // 17 is default output 0
			wantErr: "assigned to both",
		},
		{
			name:    "negative baud",
			content: "serial:\n  baud: -1\n",
			wantErr: "invalid baud rate",
		},
		{
			name:    "not yaml",
			content: "pins: [",
			wantErr: "failed to parse profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultProfile_IsValid(t *testing.T) {
	profile := DefaultProfile()
	if err := profile.Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestSimulator_RelayEmulation(t *testing.T) {
	sim := NewSimulator()
	sim.WireRelay(26, 23)

	if sim.Read(23) {
		t.Fatal("relay must start de-energized")
	}

	// pulsing keeps the coil energized
	for i := 0; i < 10; i++ {
		sim.Write(26, i%2 == 0)
		if i > 0 && !sim.Read(23) {
			t.Fatalf("relay dropped while pulsed at write %d", i)
		}
	}

	// a stretch of low-only writes lets it drop out
	for i := 0; i < relayHoldTicks; i++ {
		sim.Write(26, false)
	}
	if sim.Read(23) {
		t.Error("relay still energized after the pulses stopped")
	}
}

func TestSimulator_InputsAndModes(t *testing.T) {
	sim := NewSimulator()

	sim.SetInput(5, true)
	if !sim.Read(5) {
		t.Error("externally applied input not visible")
	}

	sim.SetMode(7, ModeOutput)
	sim.Write(7, true)
	if sim.Mode(7) != ModeOutput || !sim.Read(7) {
		t.Error("driven output does not read back")
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package iotask

import (
	"time"

	"github.com/golang/glog"
)

// RetriggerResult is the outcome of the stop-and-retrigger burst.
type RetriggerResult uint8

const (
	RetriggerPassed RetriggerResult = iota
	RetriggerStopFailed
	RetriggerRetriggerFailed
)

func (r RetriggerResult) String() string {
	switch r {
	case RetriggerPassed:
		return "PASSED"
	case RetriggerStopFailed:
		return "STOP_FAILED"
	case RetriggerRetriggerFailed:
		return "RETRIGGER_FAILED"
	}
	return "UNKNOWN"
}

// Burst tuning. The shared timeout is ten seconds counted in tick events;
// the relay has to be seen de-energized on five debounced samples before
// the reassertion starts, and energized five hundred times before the
// burst trusts it to survive on the regular 1 ms cadence.
const (
	retriggerTimeout    = 10000
	retriggerLowSamples = 5
	retriggerHighTarget = 500
	retriggerBurstEdges = 4 // relay-pin edge pairs between tick checks
)

// StopAndRetrigger re-energizes the watchdog relay with a tight pulse
// burst after the self test let it drop. It runs in the foreground
// context and holds the task lock for its whole duration, so the cyclic
// tick cannot interleave its own relay writes; tick is the 1 ms pacing
// source and every received tick burns one unit of the shared timeout.
func (h *Handler) StopAndRetrigger(tick <-chan time.Time) RetriggerResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	relay := h.outputPins[watchdogIndex]
	readback := h.inputPins[0]
	timeout := retriggerTimeout

	// phase A: hold the coil released and wait for the relay to be
	// provably off
	low := 0
	for low < retriggerLowSamples {
		h.port.Write(relay, false)
		<-tick
		timeout--
		if timeout == 0 {
			glog.Errorf("retrigger burst: relay did not stop")
			return RetriggerStopFailed
		}
		if h.port.Read(readback) {
			low = 0
		} else {
			low++
		}
	}

	// phase B: hammer the coil with edges faster than the tick cadence
	// until the readback has confirmed it often enough to be trusted
	high := 0
	for high < retriggerHighTarget {
		for i := 0; i < retriggerBurstEdges; i++ {
			h.port.Write(relay, true)
			h.port.Write(relay, false)
		}
		if h.port.Read(readback) {
			high++
		}
		select {
		case <-tick:
			timeout--
			if timeout == 0 {
				glog.Errorf("retrigger burst: relay did not come back")
				return RetriggerRetriggerFailed
			}
		default:
		}
	}
	glog.V(2).Infof("retrigger burst passed after %d ticks", retriggerTimeout-timeout)
	return RetriggerPassed
}

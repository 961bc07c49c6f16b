// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package watchdog

import (
	"sync"

	"github.com/golang/glog"

	"github.com/3DES/WatchdogBoard/pkg/diagnosis"
)

// Self-test timing. The readback input has to match the expectation on
// five consecutive samples (EMC debouncing) within a ten second window;
// the full relay-off test repeats every 100 hours and has to be requested
// by the host before the period expires.
const (
	testSamples = 5
	testWindow  = 10000 / TickMillis
)

// testRepeatPeriod is a variable so tests can expire it without walking
// through 100 hours of ticks.
var testRepeatPeriod = uint32(100) * 60 * 60 * 1000 / TickMillis

type testState uint8

const (
	testInitial testState = iota
	testRepeatedExpectOn
	testRepeatedExpectOff
	testPassed
	testFailed
)

func (s testState) String() string {
	switch s {
	case testInitial:
		return "INITIAL"
	case testRepeatedExpectOn:
		return "REPEATED_EXPECT_ON"
	case testRepeatedExpectOff:
		return "REPEATED_EXPECT_OFF"
	case testPassed:
		return "PASSED"
	case testFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// selfTest is the inner state machine closing the loop between the
// watchdog relay output and its readback input.
//
// The confirmation flag is the approval-gate half that proves the self
// test ran this tick: update either re-asserts it or the relay drops. It
// never survives a tick because update returns it by value; nothing of it
// is stored between ticks.
type selfTest struct {
	mu         sync.Mutex
	state      testState
	stateTicks uint8  // consecutive matching samples still needed
	window     uint16 // ticks left for the current phase
	remaining  uint32 // ticks until the repeated test is overdue
	requested  bool
	retrigger  bool

	store *diagnosis.Store
}

func newSelfTest(store *diagnosis.Store) *selfTest {
	return &selfTest{
		state:      testInitial,
		stateTicks: testSamples,
		window:     testWindow,
		store:      store,
	}
}

// enter switches state and re-arms the consecutive-sample counter and the
// phase window.
func (t *selfTest) enter(s testState) {
	glog.V(2).Infof("self test %s -> %s", t.state, s)
	t.state = s
	t.stateTicks = testSamples
	t.window = testWindow
}

// expect consumes one readback sample against the expected level. It
// reports success once the level held for the required consecutive
// samples; a mismatch restarts the count.
func (t *selfTest) expect(level, readback bool) bool {
	if readback != level {
		t.stateTicks = testSamples
		return false
	}
	t.stateTicks--
	return t.stateTicks == 0
}

// timeout burns one tick of the phase window and reports expiry.
func (t *selfTest) timeout() bool {
	t.window--
	return t.window == 0
}

// update runs one tick of the self test and returns the confirmation
// flag: true only if this tick proved, or maintained proof of, a working
// relay loop.
func (t *selfTest) update(readback bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case testInitial:
		// the relay must be provably off before it is ever driven
		if t.expect(false, readback) {
			t.store.SetExecutedTest(diagnosis.TestSelfTest)
			t.remaining = testRepeatPeriod
			t.enter(testPassed)
			return true
		}
		if t.timeout() {
			t.store.SetError(diagnosis.ErrInitialSelfTest)
			t.enter(testFailed)
		}

	case testPassed:
		if t.retrigger {
			// the off-phase just let the relay drop; it stays off until
			// the foreground burst has pulled the coil back in, the 1 ms
			// cadence alone may not manage that
			return false
		}
		if t.requested {
			t.requested = false
			t.enter(testRepeatedExpectOn)
			return true
		}
		if t.remaining > 0 {
			t.remaining--
		}
		if t.remaining == 0 {
			t.store.SetError(diagnosis.ErrRepeatedSelfTestRequestMissed)
			t.enter(testFailed)
			return false
		}
		return true

	case testRepeatedExpectOn:
		// relay keeps running; prove the readback sees it energized
		if t.expect(true, readback) {
			// confirmation still given this tick; withholding starts
			// with the first off-phase tick
			t.enter(testRepeatedExpectOff)
			return true
		}
		if t.timeout() {
			t.store.SetError(diagnosis.ErrRepeatedSelfTestOn)
			t.enter(testFailed)
			return false
		}
		return true

	case testRepeatedExpectOff:
		// confirmation withheld, the relay drops; prove the readback
		// sees it de-energize
		if t.expect(false, readback) {
			t.store.SetExecutedTest(diagnosis.TestSelfTest)
			t.remaining = testRepeatPeriod
			t.retrigger = true
			t.enter(testPassed)
			// still no confirmation: the relay belongs to the burst now
			return false
		}
		if t.timeout() {
			t.store.SetError(diagnosis.ErrRepeatedSelfTestOff)
			t.enter(testFailed)
		}

	case testFailed:
	}
	return false
}

// failed reports whether the self test has latched its terminal state.
func (t *selfTest) failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == testFailed
}

// request arms the repeated self test. Accepted only in the passed
// resting state.
func (t *selfTest) request() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != testPassed {
		return false
	}
	t.requested = true
	return true
}

// retriggerPending reports whether the relay is parked waiting for the
// burst. The flag is raised when the off-phase completes and stays raised
// until finishRetrigger, so the cyclic task keeps the relay off for the
// whole handover.
func (t *selfTest) retriggerPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retrigger
}

// finishRetrigger releases the relay back to the regular tick cadence
// once the burst has completed.
func (t *selfTest) finishRetrigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retrigger = false
}

func (t *selfTest) stateName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.String()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

// Package watchdog implements the safety core of the board: a countdown
// watchdog with a three-state machine, the reset-lock timer and the
// periodic relay self test.
//
// The state machine:
//
//	           |   INIT    ||     OK    |    ERROR
//	-----------|-----------||-----------|------------
//	value == 0 | stay INIT || -> ERROR  |  stay ERROR
//	-----------|-----------|============|------------
//	value != 0 | -> OK     |  -> OK     || stay ERROR
//
// INIT accepts a clear because that is the normal state during startup;
// once the watchdog has been armed, reaching a cleared counter by any path
// is a fault that only a hardware reset recovers.
package watchdog

import (
	"sync"

	"github.com/golang/glog"

	"github.com/3DES/WatchdogBoard/pkg/diagnosis"
)

// State is the outer watchdog state.
type State uint8

const (
	StateInit State = iota
	StateOk
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOk:
		return "OK"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Timing constants in ticks of the 1 ms cyclic task.
const (
	TickMillis = 1

	// TriggerMax is the count a trigger arms, roughly 60 seconds.
	TriggerMax uint16 = 60000 / TickMillis

	// LockMax is how long the reset-lock pin stays held after a fault so
	// the external battery-cutoff timing circuit can complete.
	LockMax uint16 = 30000 / TickMillis
)

// Watchdog is the process-wide watchdog singleton. The (state, counter,
// lockReset) triple is mutated from both the protocol context and the
// cyclic tick; mu is the critical section around it.
type Watchdog struct {
	mu        sync.Mutex
	state     State
	counter   uint16
	lockReset uint16

	store    *diagnosis.Store
	selfTest *selfTest
}

// New creates a watchdog in INIT with a cleared counter.
func New(store *diagnosis.Store) *Watchdog {
	return &Watchdog{store: store, selfTest: newSelfTest(store)}
}

// Set triggers (value != 0) or clears (value == 0) the watchdog.
//
// Triggering arms the counter and pins the reset lock. Clearing is legal
// in INIT (usual during startup); in OK it is a fault and latches ERROR.
// In ERROR neither a trigger nor a clear changes the state; each counts
// the reset lock down by one.
func (w *Watchdog) Set(value uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateError && value != 0 {
		if w.state != StateOk {
			glog.Infof("watchdog armed, state %s -> %s", w.state, StateOk)
		}
		w.counter = TriggerMax
		w.lockReset = LockMax
		w.state = StateOk
		return
	}

	if w.state == StateInit {
		w.counter = 0
		return
	}
	if w.state == StateOk {
		w.enterError(diagnosis.ErrWatchdogCleared)
		return
	}
	// already in ERROR: keep counting the reset lock down so repeated
	// host requests cannot hold the reset line forever
	if w.lockReset > 0 {
		w.lockReset--
	}
}

// enterError performs the one-way transition into ERROR. The reset lock is
// decremented once per entry path; the per-tick countdown continues in
// Tick. Callers hold mu.
func (w *Watchdog) enterError(errorNumber uint16) {
	if w.state != StateError {
		glog.Errorf("watchdog fault 0x%04x, state %s -> %s", errorNumber, w.state, StateError)
	}
	w.store.SetError(errorNumber)
	w.state = StateError
	w.counter = 0
	if w.lockReset > 0 {
		w.lockReset--
	}
}

// forceError latches ERROR on behalf of the self test, which has already
// recorded its own error number.
func (w *Watchdog) forceError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateError {
		return
	}
	glog.Errorf("watchdog forced into %s by failed self test", StateError)
	w.state = StateError
	w.counter = 0
	if w.lockReset > 0 {
		w.lockReset--
	}
}

// Tick advances the watchdog by one cyclic tick: the self test consumes
// the relay readback sample first, then the countdown runs. It reports
// whether the relay may be driven this tick, which requires an armed
// counter, OK state and a fresh self-test confirmation.
func (w *Watchdog) Tick(readback bool) bool {
	confirmed := w.selfTest.update(readback)
	if w.selfTest.failed() {
		w.forceError()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateOk:
		if w.counter > 0 {
			w.counter--
			if w.counter == 0 {
				w.enterError(diagnosis.ErrWatchdogNotTriggered)
			}
		} else {
			// armed state with a cleared counter cannot happen through
			// Set; treat it as a fault of its own
			w.enterError(diagnosis.ErrWatchdogStoppedUnexpectedly)
		}
	case StateError:
		if w.lockReset > 0 {
			w.lockReset--
		}
	}

	return w.state == StateOk && w.counter > 0 && confirmed
}

// Fail records errorNumber and latches ERROR. Used by the retrigger
// burst, which detects relay faults outside the tick path.
func (w *Watchdog) Fail(errorNumber uint16) {
	w.store.SetError(errorNumber)
	w.forceError()
}

// Running reports whether the watchdog counter is armed.
func (w *Watchdog) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counter != 0
}

// LockRequired reports whether the reset-lock pin has to be held.
func (w *Watchdog) LockRequired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lockReset != 0
}

// State returns the current outer state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// RequestSelfTest schedules a repeated self test. It reports whether the
// request was accepted, which requires the self test to be in its passed
// resting state.
func (w *Watchdog) RequestSelfTest() bool {
	return w.selfTest.request()
}

// RetriggerPending reports whether the self test has completed its
// relay-off phase and is holding the relay off until the foreground
// context has run the retrigger burst.
func (w *Watchdog) RetriggerPending() bool {
	return w.selfTest.retriggerPending()
}

// FinishRetrigger hands the relay back to the cyclic tick after the
// burst has completed.
func (w *Watchdog) FinishRetrigger() {
	w.selfTest.finishRetrigger()
}

// SelfTestState returns a printable name of the inner self-test state,
// for logging and the monitor.
func (w *Watchdog) SelfTestState() string {
	return w.selfTest.stateName()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package watchdog

import (
	"testing"

	"github.com/3DES/WatchdogBoard/pkg/diagnosis"
)

// passInitialSelfTest walks a fresh watchdog through the initial self
// test: five consecutive low readback samples.
func passInitialSelfTest(w *Watchdog) {
	for i := 0; i < testSamples; i++ {
		w.Tick(false)
	}
}

func TestWatchdog_InitialState(t *testing.T) {
	w := New(diagnosis.NewStore())

	if w.State() != StateInit {
		t.Errorf("fresh watchdog state = %s, want INIT", w.State())
	}
	if w.Running() {
		t.Error("fresh watchdog must not be running")
	}
	if w.LockRequired() {
		t.Error("reset lock must be released before the watchdog was ever armed")
	}
}

func TestWatchdog_ClearInInitIsLegal(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)

	w.Set(0)
	if w.State() != StateInit {
		t.Errorf("clear in INIT moved state to %s", w.State())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrNone {
		t.Errorf("clear in INIT recorded error 0x%04x", got)
	}
}

func TestWatchdog_ArmAndRetrigger(t *testing.T) {
	w := New(diagnosis.NewStore())
	passInitialSelfTest(w)

	w.Set(1)
	if w.State() != StateOk || !w.Running() || !w.LockRequired() {
		t.Fatalf("arming failed: state=%s running=%v lock=%v", w.State(), w.Running(), w.LockRequired())
	}

	// burn some of the counter, then re-trigger back to full
	for i := 0; i < 1000; i++ {
		if !w.Tick(false) {
			t.Fatalf("relay dropped at tick %d", i)
		}
	}
	w.Set(1)
	for i := 0; i < int(TriggerMax)-1; i++ {
		if !w.Tick(false) {
			t.Fatalf("relay dropped at tick %d after re-trigger", i)
		}
	}
}

func TestWatchdog_TimeoutIsTerminal(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	w.Set(1)

	drives := 0
	for i := 0; i < int(TriggerMax)+10; i++ {
		if w.Tick(false) {
			drives++
		}
	}
	if w.State() != StateError {
		t.Fatalf("state after starvation = %s, want ERROR", w.State())
	}
	if drives != int(TriggerMax)-1 {
		t.Errorf("relay drove for %d ticks, want %d", drives, int(TriggerMax)-1)
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrWatchdogNotTriggered {
		t.Errorf("latched error = 0x%04x, want ErrWatchdogNotTriggered", got)
	}

	// terminality: neither trigger nor clear leaves ERROR
	w.Set(1)
	if w.State() != StateError || w.Running() {
		t.Error("trigger resurrected a faulted watchdog")
	}
	w.Set(0)
	if w.State() != StateError {
		t.Error("clear changed a faulted watchdog")
	}
}

func TestWatchdog_ClearWhileRunningIsFatal(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	w.Set(1)

	w.Set(0)
	if w.State() != StateError {
		t.Fatalf("state after clear = %s, want ERROR", w.State())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrWatchdogCleared {
		t.Errorf("latched error = 0x%04x, want ErrWatchdogCleared", got)
	}
	if w.Tick(false) {
		t.Error("relay must drop within one tick of the fault")
	}
}

func TestWatchdog_ResetLockCountdown(t *testing.T) {
	w := New(diagnosis.NewStore())
	passInitialSelfTest(w)
	w.Set(1)
	w.Set(0) // ERROR, lock decremented once on entry

	if !w.LockRequired() {
		t.Fatal("reset lock must be held right after the fault")
	}
	// one decrement happened on the ERROR entry, the rest per tick
	for i := 0; i < int(LockMax)-2; i++ {
		w.Tick(false)
		if !w.LockRequired() {
			t.Fatalf("reset lock released early at tick %d", i)
		}
	}
	w.Tick(false)
	if w.LockRequired() {
		t.Error("reset lock still held after the grace period")
	}
}

func TestWatchdog_RelayNeedsConfirmation(t *testing.T) {
	w := New(diagnosis.NewStore())

	// armed before the initial self test has passed: counter runs but the
	// approval gate withholds the relay
	w.Set(1)
	if w.Tick(true) {
		t.Error("relay driven without self-test confirmation")
	}
}

func TestSelfTest_InitialTimeout(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)

	// readback stuck high: the initial test can never pass
	for i := 0; i < testWindow; i++ {
		w.Tick(true)
	}
	if w.State() != StateError {
		t.Fatalf("state = %s, want ERROR after initial self test timeout", w.State())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrInitialSelfTest {
		t.Errorf("latched error = 0x%04x, want ErrInitialSelfTest", got)
	}
}

func TestSelfTest_MismatchRestartsSampleCount(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)

	// alternate so five consecutive lows never happen, but stay inside
	// the window
	for i := 0; i < 100; i++ {
		w.Tick(i%3 == 0)
	}
	if w.SelfTestState() != "INITIAL" {
		t.Fatalf("self test left INITIAL on non-consecutive samples: %s", w.SelfTestState())
	}

	// now five clean samples complete it
	passInitialSelfTest(w)
	if w.SelfTestState() != "PASSED" {
		t.Errorf("self test state = %s, want PASSED", w.SelfTestState())
	}
	if got := store.ExecutedTests(); got != diagnosis.TestSelfTest {
		t.Errorf("executed tests = 0x%04x, want the self test bit", got)
	}
}

func TestSelfTest_RequestOnlyAcceptedWhenPassed(t *testing.T) {
	w := New(diagnosis.NewStore())

	if w.RequestSelfTest() {
		t.Error("request must be rejected during the initial test")
	}
	passInitialSelfTest(w)
	if !w.RequestSelfTest() {
		t.Error("request must be accepted in the passed state")
	}
}

func TestSelfTest_RepeatedWalk(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	store.ExecutedTests() // drain the initial test bit
	w.Set(1)

	if !w.RequestSelfTest() {
		t.Fatal("request rejected")
	}

	// next tick enters the on-phase; the relay keeps its confirmation
	if !w.Tick(true) {
		t.Fatal("relay dropped entering the on-phase")
	}
	if w.SelfTestState() != "REPEATED_EXPECT_ON" {
		t.Fatalf("state = %s", w.SelfTestState())
	}

	// five high samples complete the on-phase
	for i := 0; i < testSamples; i++ {
		if !w.Tick(true) {
			t.Fatal("relay dropped during the on-phase")
		}
	}
	if w.SelfTestState() != "REPEATED_EXPECT_OFF" {
		t.Fatalf("state = %s, want REPEATED_EXPECT_OFF", w.SelfTestState())
	}

	// off-phase: confirmation is withheld, the relay drops; the relay
	// takes a few ticks to de-energize before the low samples count
	for i := 0; i < 3; i++ {
		if w.Tick(true) {
			t.Fatal("relay driven during the off-phase")
		}
	}
	for i := 0; i < testSamples; i++ {
		if w.Tick(false) {
			t.Fatal("relay driven before the off-phase completed")
		}
	}
	if w.SelfTestState() != "PASSED" {
		t.Fatalf("state = %s, want PASSED after the off-phase", w.SelfTestState())
	}
	if got := store.ExecutedTests(); got != diagnosis.TestSelfTest {
		t.Errorf("executed tests = 0x%04x after the repeated test", got)
	}
	if !w.RetriggerPending() {
		t.Fatal("completed off-phase must park the relay for the burst")
	}

	// the relay stays off for every tick between the off-phase completing
	// and the burst finishing, no matter how late the burst starts
	for i := 0; i < 20; i++ {
		if w.Tick(false) {
			t.Fatal("relay driven while the retrigger burst was pending")
		}
	}
	if !w.RetriggerPending() {
		t.Error("pending flag must survive until the burst finishes")
	}

	w.FinishRetrigger()
	if w.RetriggerPending() {
		t.Error("pending flag must clear once the burst finished")
	}
	if !w.Tick(true) {
		t.Error("relay must resume on the regular cadence after the burst")
	}
	if w.State() != StateOk {
		t.Errorf("watchdog state = %s, want OK after a passed repeated test", w.State())
	}
}

func TestSelfTest_OnPhaseTimeout(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	w.Set(1)
	w.RequestSelfTest()
	w.Tick(false) // enter the on-phase

	for i := 0; i < testWindow; i++ {
		w.Tick(false)
	}
	if w.State() != StateError {
		t.Fatalf("state = %s, want ERROR", w.State())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrRepeatedSelfTestOn {
		t.Errorf("latched error = 0x%04x, want ErrRepeatedSelfTestOn", got)
	}
}

func TestSelfTest_OffPhaseTimeout(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	w.Set(1)
	w.RequestSelfTest()
	w.Tick(true) // enter the on-phase
	for i := 0; i < testSamples; i++ {
		w.Tick(true) // complete the on-phase
	}

	// readback stuck high: the relay never provably drops
	for i := 0; i < testWindow; i++ {
		w.Tick(true)
	}
	if w.State() != StateError {
		t.Fatalf("state = %s, want ERROR", w.State())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrRepeatedSelfTestOff {
		t.Errorf("latched error = 0x%04x, want ErrRepeatedSelfTestOff", got)
	}
}

func TestSelfTest_RequestMissed(t *testing.T) {
	oldPeriod := testRepeatPeriod
	testRepeatPeriod = 50
	defer func() { testRepeatPeriod = oldPeriod }()

	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	w.Set(1)

	for i := 0; i < 60; i++ {
		w.Tick(false)
	}
	if w.State() != StateError {
		t.Fatalf("state = %s, want ERROR after the repeat period expired", w.State())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrRepeatedSelfTestRequestMissed {
		t.Errorf("latched error = 0x%04x, want ErrRepeatedSelfTestRequestMissed", got)
	}
}

func TestWatchdog_FailLatchesError(t *testing.T) {
	store := diagnosis.NewStore()
	w := New(store)
	passInitialSelfTest(w)
	w.Set(1)

	w.Fail(diagnosis.ErrRepeatedSelfTestOn)
	if w.State() != StateError || w.Running() {
		t.Errorf("Fail did not latch: state=%s running=%v", w.State(), w.Running())
	}
	if got := store.ErrorNumber(); got != diagnosis.ErrRepeatedSelfTestOn {
		t.Errorf("latched error = 0x%04x", got)
	}
}

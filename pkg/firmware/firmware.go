// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package firmware

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/3DES/WatchdogBoard/pkg/board"
	"github.com/3DES/WatchdogBoard/pkg/diagnosis"
	"github.com/3DES/WatchdogBoard/pkg/iotask"
	"github.com/3DES/WatchdogBoard/pkg/lineproto"
	"github.com/3DES/WatchdogBoard/pkg/watchdog"
)

// Firmware is one fully wired board instance.
type Firmware struct {
	Store    *diagnosis.Store
	Watchdog *watchdog.Watchdog
	IO       *iotask.Handler
	Handler  *lineproto.Handler
}

// New assembles a board on the given port. version is what the version
// command reports.
func New(port board.Port, profile board.Profile, version string) *Firmware {
	store := diagnosis.NewStore()
	wd := watchdog.New(store)
	ioHandler := iotask.New(port, wd, profile)
	handler := lineproto.NewHandler(&device{
		version: version,
		wd:      wd,
		io:      ioHandler,
		store:   store,
	})
	return &Firmware{
		Store:    store,
		Watchdog: wd,
		IO:       ioHandler,
		Handler:  handler,
	}
}

// Run operates the board until ctx is cancelled or the connection fails:
// the cyclic task ticks at 1 kHz, a watcher hands retrigger requests from
// the self test to the burst, and the calling goroutine pumps the
// protocol.
func (f *Firmware) Run(ctx context.Context, conn io.ReadWriter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go f.RunBackground(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- f.Pump(conn) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunBackground runs the cyclic tick and the retrigger watcher without a
// protocol connection attached, until ctx is cancelled.
func (f *Firmware) RunBackground(ctx context.Context) error {
	go f.retriggerLoop(ctx)
	f.tickLoop(ctx)
	return ctx.Err()
}

// Pump feeds bytes from conn through the protocol receiver and writes
// response lines back, until the connection fails.
func (f *Firmware) Pump(conn io.ReadWriter) error {
	return lineproto.NewReceiver(f.Handler, conn).Run(conn)
}

func (f *Firmware) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(watchdog.TickMillis * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.IO.Tick()
		}
	}
}

// retriggerLoop waits for the self test to complete its relay-off phase
// and then runs the burst from the foreground context. The self test
// keeps the relay parked off until FinishRetrigger, so the ticks that
// elapse before the burst takes over cannot re-energize the coil through
// the ordinary pulsed path. A burst failure is a relay fault and latches
// the watchdog.
func (f *Firmware) retriggerLoop(ctx context.Context) {
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if !f.Watchdog.RetriggerPending() {
				continue
			}
			pace := time.NewTicker(watchdog.TickMillis * time.Millisecond)
			result := f.IO.StopAndRetrigger(pace.C)
			pace.Stop()
			f.Watchdog.FinishRetrigger()
			switch result {
			case iotask.RetriggerPassed:
				glog.Infof("relay retrigger burst passed")
			case iotask.RetriggerStopFailed:
				f.Watchdog.Fail(diagnosis.ErrRepeatedSelfTestOff)
			case iotask.RetriggerRetriggerFailed:
				f.Watchdog.Fail(diagnosis.ErrRepeatedSelfTestOn)
			}
		}
	}
}

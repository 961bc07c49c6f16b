// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 3DES

package cmd

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/3DES/WatchdogBoard/pkg/board"
	"github.com/3DES/WatchdogBoard/pkg/firmware"
)

var (
	profilePath       string
	simulate          bool
	listenAddr        string
	ignoreCrc         bool
	ignoreFrameNumber bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the board firmware",
	Long: `Run the watchdog board: the 1 kHz cyclic I/O task, the relay
self test and the line-protocol receiver on the configured serial port.

With --simulate the GPIO port is replaced by an in-memory board whose
relay readback follows the watchdog pin, so the full protocol including
the self test can be exercised without hardware. With --listen the line
protocol is served on a WebSocket endpoint instead of the serial port;
only one session is served at a time.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&profilePath, "profile", "", "Hardware profile YAML (default: built-in reference board)")
	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "Use the simulated board instead of GPIO hardware")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Serve the protocol on a WebSocket endpoint instead of the serial port, e.g. :8480")

	// bench-only overrides, the runtime equivalents of the firmware's
	// IGNORE_CRC / IGNORE_FRAME_NUMBER switches
	serveCmd.Flags().BoolVar(&ignoreCrc, "ignore-crc", false, "Skip CRC validation (bench testing only)")
	serveCmd.Flags().BoolVar(&ignoreFrameNumber, "ignore-frame-number", false, "Skip frame number validation (bench testing only)")
	serveCmd.Flags().MarkHidden("ignore-crc")
	serveCmd.Flags().MarkHidden("ignore-frame-number")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	profile := board.DefaultProfile()
	if profilePath != "" {
		var err error
		profile, err = board.LoadProfile(profilePath)
		if err != nil {
			return err
		}
	}

	var port board.Port
	if simulate {
		sim := board.NewSimulator()
		sim.WireRelay(profile.Pins.Watchdog, profile.Pins.Inputs[0])
		port = sim
		glog.Infof("running against the simulated board")
	} else {
		rpi, err := board.OpenRPi()
		if err != nil {
			return err
		}
		defer rpi.Close()
		port = rpi
	}

	fw := firmware.New(port, profile, Version)
	fw.Handler.IgnoreCrc = ignoreCrc
	fw.Handler.IgnoreFrameNumber = ignoreFrameNumber
	if ignoreCrc || ignoreFrameNumber {
		glog.Warningf("bench overrides active: ignore-crc=%v ignore-frame-number=%v", ignoreCrc, ignoreFrameNumber)
	}

	if listenAddr != "" {
		return serveWebSocket(fw, listenAddr)
	}

	device := profile.Serial.Device
	if portName != "" {
		device = portName
	}
	baud := profile.Serial.Baud
	if cmd.Flags().Changed("baud") {
		baud = baudRate
	}
	conn, err := OpenSerialConnection(device, baud)
	if err != nil {
		return err
	}
	defer conn.Close()

	glog.Infof("board up on %s @ %d baud, version %s", device, baud, Version)
	return fw.Run(context.Background(), conn)
}

// serveWebSocket exposes the line protocol on a WebSocket endpoint. The
// board state is shared across connections, but only one session runs at
// a time; the firmware ticks regardless of whether a host is attached.
func serveWebSocket(fw *firmware.Firmware, addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwBackground(ctx, fw)

	var sessionMu sync.Mutex
	upgrader := websocket.Upgrader{}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			glog.Errorf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		if !sessionMu.TryLock() {
			glog.Warningf("rejecting second concurrent session from %s", r.RemoteAddr)
			return
		}
		defer sessionMu.Unlock()

		glog.Infof("host session from %s", r.RemoteAddr)
		ws := &WebSocketConnection{conn: conn}
		if err := fw.Pump(ws); err != nil && err != io.EOF {
			glog.V(2).Infof("session ended: %v", err)
		}
	})

	glog.Infof("board up on ws://%s/ws, version %s", addr, Version)
	return http.ListenAndServe(addr, nil)
}

// fwBackground runs the cyclic and retrigger loops without a protocol
// connection attached.
func fwBackground(ctx context.Context, fw *firmware.Firmware) {
	if err := fw.RunBackground(ctx); err != nil && err != context.Canceled {
		glog.Errorf("background tasks stopped: %v", err)
	}
}

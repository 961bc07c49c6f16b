// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 3DES

package cmd

import (
	goflag "flag"

	"github.com/spf13/cobra"
)

// Version is the firmware/tool version reported on the wire and by
// --version. The suffix names the authoritative port table variant:
// three pulsed outputs, four steady ones.
var Version = "1.1_MIXED"

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "wdboard",
	Short: "Watchdog board firmware and bench tools",
	Long: `wdboard - safety watchdog and I/O mediation for the relay board.

The serve command runs the board side: it keeps the hardware watchdog
relay pulsing while the host proves liveness over the framed serial
protocol, latches any fault until hardware reset, and mediates output
and input access.

The remaining commands are host-side bench tools speaking the same
protocol over a serial line or a WebSocket bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the
WDBOARD_PASSWORD environment variable, or prompted interactively if not
set. A --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// glog registers -v / -logtostderr etc. on the standard flag set
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	rootCmd.Version = Version
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

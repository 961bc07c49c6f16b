// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 3DES

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/3DES/WatchdogBoard/pkg/lineproto"
)

var benchInterval time.Duration

var benchCmd = &cobra.Command{
	Use:   "bench [command [args...]]",
	Short: "Send protocol commands to the board",
	Long: `Send one command to the board, or run an interactive session.

One-shot:
  wdboard bench -p /dev/ttyUSB0 V           # get version
  wdboard bench -p /dev/ttyUSB0 W 1         # trigger watchdog
  wdboard bench -p /dev/ttyUSB0 S 0 1       # switch output 0 on

Without --interval a one-shot command goes out as frame 0, so it is
accepted only by a board that has not accepted a frame yet; otherwise
the board answers with an unexpected-frame-number NACK. W is accepted
only after the board has answered a V, so without --interval a one-shot
W is always NACKed.

Without arguments an interactive prompt reads the same command syntax
from stdin. Frame numbers and CRCs are generated automatically; on an
unexpected-frame-number NACK the session resynchronizes to the number
the board reports.

With --interval the watchdog is re-triggered periodically in the
background so outputs can be exercised by hand without the board timing
out.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().DurationVar(&benchInterval, "interval", 0, "Re-trigger the watchdog at this interval (e.g. 30s)")
	rootCmd.AddCommand(benchCmd)
}

// parseBenchCommand turns "S 0 1" into a command letter and arguments.
func parseBenchCommand(fields []string) (byte, []uint16, error) {
	if len(fields) == 0 || len(fields[0]) != 1 {
		return 0, nil, fmt.Errorf("expected a single command letter, got %q", strings.Join(fields, " "))
	}
	command := fields[0][0]
	args := make([]uint16, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid argument %q: %w", f, err)
		}
		args = append(args, uint16(v))
	}
	return command, args, nil
}

func printResponse(response *lineproto.Response) {
	if response.IsNack() {
		fmt.Printf("NACK %d [%s] (next frame %d)\n", response.ErrCode, response.Echo, response.FrameNumber)
		return
	}
	fmt.Printf("%c %s\n", response.Command, strings.Join(response.Fields, " "))
}

func runBench(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	client := lineproto.NewClient(conn)

	if benchInterval > 0 {
		// the watchdog accepts W only after a successful V
		if _, err := client.Do(lineproto.CmdVersion); err != nil {
			return err
		}
		go func() {
			ticker := time.NewTicker(benchInterval)
			defer ticker.Stop()
			for range ticker.C {
				client.Do(lineproto.CmdWatchdog, 1)
			}
		}()
	}

	if len(args) > 0 {
		command, values, err := parseBenchCommand(args)
		if err != nil {
			return err
		}
		response, err := client.Do(command, values...)
		if err != nil {
			return err
		}
		printResponse(response)
		return nil
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Println("Commands: V | W <0|1> | S <idx> <0|1> | R <idx> | D | T  (Ctrl+D to exit)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		command, values, err := parseBenchCommand(fields)
		if err != nil {
			fmt.Println(err)
			continue
		}
		response, err := client.Do(command, values...)
		if err != nil {
			return err
		}
		printResponse(response)
	}
}

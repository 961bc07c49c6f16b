// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 3DES

package cmd

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/3DES/WatchdogBoard/pkg/lineproto"
)

var recordFile string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Display the raw line log in human-readable format",
	Long: `Continuously display board traffic as it arrives, one line per
frame with timestamp and decode status.

With --file each observed line is additionally appended to a session log
as a stream of CBOR records for later analysis.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordFile, "file", "", "Append CBOR session records to this file")
	rootCmd.AddCommand(recordCmd)
}

// sessionRecord is one observed protocol line in the CBOR session log.
type sessionRecord struct {
	Time time.Time `cbor:"1,keyasint"`
	Raw  []byte    `cbor:"2,keyasint"`
	OK   bool      `cbor:"3,keyasint"`
	Note string    `cbor:"4,keyasint,omitempty"`
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var enc *cbor.Encoder
	if recordFile != "" {
		f, err := os.OpenFile(recordFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open session log: %w", err)
		}
		defer f.Close()
		enc = cbor.NewEncoder(f)
	}

	fmt.Printf("wdboard - Raw Line Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	buf := make([]byte, 128)
	line := make([]byte, 0, 128)

	emit := func(raw []byte) {
		record := sessionRecord{Time: time.Now(), Raw: append([]byte(nil), raw...), OK: true}
		if _, err := lineproto.ParseResponse(raw); err != nil {
			record.OK = false
			record.Note = err.Error()
		}
		status := "ok"
		if !record.OK {
			status = record.Note
		}
		fmt.Printf("[%s] %-40q %s\n", record.Time.Format("15:04:05.000"), raw, status)
		if enc != nil {
			if err := enc.Encode(record); err != nil {
				log.Printf("session log write failed: %v", err)
			}
		}
	}

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			b := buf[i]
			if b == '\n' || b == 0 {
				if len(line) > 0 {
					emit(line)
					line = line[:0]
				}
				continue
			}
			line = append(line, b)
			if len(line) >= cap(line) {
				emit(line)
				line = line[:0]
			}
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

// Package lineproto implements the framed, CRC-protected ASCII line protocol
// spoken between the watchdog board and its host.
//
// A frame is a sequence of ';'-terminated tokens ending in a line feed:
//
//	<fno>;<cmd>;<payload...>;<crc>;\n
//
// The CRC-16/X.25 checksum covers every byte up to and including the ';'
// that precedes the CRC token. The package provides both ends of the wire:
// the board-side receiver/handler and the host-side client.
package lineproto

// Frame size limits. A request that reaches MaxRequestLength bytes before
// its terminator triggers overflow resynchronization.
const (
	MaxRequestLength  = 20
	MaxResponseLength = 60
)

// Command letters.
const (
	CmdVersion   = 'V'
	CmdWatchdog  = 'W'
	CmdSetOutput = 'S'
	CmdReadInput = 'R'
	CmdDiagnoses = 'D'
	CmdTest      = 'T'
	CmdNack      = 'E' // only ever sent, never received
)

// Protocol error codes carried in NACK responses.
const (
	ErrNone                  = 0
	ErrUnknownCommand        = 1
	ErrUnknownState          = 2
	ErrInvalidFrameNumber    = 3
	ErrUnexpectedFrameNumber = 4
	ErrInvalidValue          = 5
	ErrInvalidIndex          = 6
	ErrInvalidCrc            = 7
	ErrOverflow              = 8
	ErrInvalidStartup        = 9
)

// Addressable I/O ranges. The watchdog relay sits one past the last logical
// output and is deliberately not reachable through CmdSetOutput.
const (
	SupportedOutputs = 7
	SupportedInputs  = 4
)

// Tokenizer states (internal). Each command owns a block of consecutive
// states so that a ';' simply advances to the next one.
const (
	keyFrameNumber  = 0
	keyCommand      = 1
	keyEmptyCommand = 2 // reached when the command token was empty

	keyWatchdog      = 100
	keyWatchdogValue = 101
	keyWatchdogCrc   = 102
	keyWatchdogEnd   = 103

	keySetOutput      = 200
	keySetOutputIndex = 201
	keySetOutputValue = 202
	keySetOutputCrc   = 203
	keySetOutputEnd   = 204

	keyReadInput      = 300
	keyReadInputIndex = 301
	keyReadInputCrc   = 302
	keyReadInputEnd   = 303

	keyVersion    = 400
	keyVersionCrc = 401
	keyVersionEnd = 402

	keyDiagnoses    = 500
	keyDiagnosesCrc = 501
	keyDiagnosesEnd = 502

	keyTest    = 600
	keyTestCrc = 601
	keyTestEnd = 602
)

// CRC accumulation states (internal). The running CRC must include the ';'
// in front of the CRC token but nothing after it, so the scanner flags the
// last payload token and disables accumulation on the following separator.
const (
	crcEnabled = iota
	crcToDisable
	crcDisabled
)

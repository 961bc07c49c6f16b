// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package lineproto

import "github.com/golang/glog"

// Device is the board surface the protocol handler drives. Implementations
// are expected to be safe for calls from the receiving context while the
// cyclic I/O task runs concurrently.
type Device interface {
	// Version returns the firmware version string reported by CmdVersion.
	Version() string

	// SetWatchdog triggers (value != 0) or clears (value == 0) the watchdog.
	SetWatchdog(value uint16)

	// WatchdogRunning reports whether the watchdog counter is nonzero.
	WatchdogRunning() bool

	// LockRequired reports whether the reset-lock pin must be held.
	LockRequired() bool

	// SetOutput stores a logical output state. index has already been
	// validated against SupportedOutputs.
	SetOutput(index, value uint16)

	// Output returns the stored state of a logical output.
	Output(index uint16) bool

	// Input returns the last sampled state of a digital input.
	Input(index uint16) bool

	// ConsumeDiagnoses drains the diagnosis accumulators: collected
	// diagnosis bits, the first latched error number, and the executed
	// test bits. All three are cleared by the call.
	ConsumeDiagnoses() (diagnoses, firstError, executedTests uint16)

	// RequestSelfTest asks the watchdog to schedule a repeated self test.
	// It reports whether the request was accepted.
	RequestSelfTest() bool
}

// Handler validates framed requests and executes them against a Device.
// It owns the frame-number expectation and the version gate; a Handler is
// confined to the receiving context and needs no locking of its own.
type Handler struct {
	device Device

	nextExpectedFrameNumber uint16
	versionSeen             bool

	// Bench-only overrides, the runtime equivalents of the firmware's
	// IGNORE_CRC / IGNORE_FRAME_NUMBER debug switches.
	IgnoreCrc         bool
	IgnoreFrameNumber bool
}

// NewHandler creates a protocol handler bound to device.
func NewHandler(device Device) *Handler {
	return &Handler{device: device}
}

// NextExpectedFrameNumber returns the frame number the handler will accept
// next.
func (h *Handler) NextExpectedFrameNumber() uint16 {
	return h.nextExpectedFrameNumber
}

// appendDigit folds one ASCII digit into an unsigned decimal accumulator,
// leftmost digit first. It reports failure on a non-digit and on 16-bit
// overflow.
func appendDigit(value *uint16, c byte) bool {
	d := c - '0'
	if d > 9 {
		return false
	}
	v := uint32(*value)*10 + uint32(d)
	if v > 0xFFFF {
		return false
	}
	*value = uint16(v)
	return true
}

// HandleLine processes one complete, terminator-stripped request and
// returns the response line, '\n' included. A nil request reports receive
// buffer overflow.
func (h *Handler) HandleLine(request []byte) []byte {
	if request == nil {
		glog.V(2).Info("request overflow")
		response := appendInteger(make([]byte, 0, MaxResponseLength), h.nextExpectedFrameNumber)
		response = appendChar(response, CmdNack)
		response = appendInteger(response, ErrOverflow)
		return finishLine(response)
	}
	glog.V(2).Infof("request %q", request)

	var (
		frameNumber  uint16
		commandIndex uint16
		commandValue uint16
		receivedCrc  uint16
		command      byte
		receiveError uint16
	)
	crc := uint16(crcInitial)
	crcState := crcEnabled
	keyIndex := keyFrameNumber

	// First detected error wins; it also stops the scan.
	setError := func(e uint16) {
		if receiveError == ErrNone {
			receiveError = e
		}
	}

	for i := 0; i < len(request) && request[i] > '\x0a' && receiveError == ErrNone; i++ {
		b := request[i]
		if crcState != crcDisabled {
			crc = CRCStep(b, crc)
		}
		if b == ';' {
			keyIndex++
			if crcState == crcToDisable {
				crcState = crcDisabled
			}
			continue
		}

		switch keyIndex {
		case keyFrameNumber:
			if !appendDigit(&frameNumber, b) {
				setError(ErrInvalidFrameNumber)
			}

		case keyCommand:
			command = b
			switch b {
			case CmdWatchdog:
				keyIndex = keyWatchdog
			case CmdSetOutput:
				keyIndex = keySetOutput
			case CmdReadInput:
				keyIndex = keyReadInput
			case CmdVersion:
				keyIndex = keyVersion
				crcState = crcToDisable
			case CmdDiagnoses:
				keyIndex = keyDiagnoses
				crcState = crcToDisable
			case CmdTest:
				keyIndex = keyTest
				crcState = crcToDisable
			default:
				setError(ErrUnknownCommand)
			}

		// A second character in the command token (e.g. "WW") or a
		// character after an empty command token is equally invalid.
		case keyEmptyCommand, keyWatchdog, keySetOutput, keyReadInput,
			keyVersion, keyDiagnoses, keyTest:
			setError(ErrUnknownCommand)

		case keyWatchdogValue, keySetOutputValue:
			if !appendDigit(&commandValue, b) {
				setError(ErrInvalidValue)
			}
			crcState = crcToDisable

		case keySetOutputIndex:
			if !appendDigit(&commandIndex, b) {
				setError(ErrInvalidIndex)
			}

		case keyReadInputIndex:
			if !appendDigit(&commandIndex, b) {
				setError(ErrInvalidIndex)
			}
			crcState = crcToDisable

		case keyWatchdogCrc, keySetOutputCrc, keyReadInputCrc,
			keyVersionCrc, keyDiagnosesCrc, keyTestCrc:
			if !appendDigit(&receivedCrc, b) {
				setError(ErrInvalidCrc)
			}

		case keyWatchdogEnd, keySetOutputEnd, keyReadInputEnd,
			keyVersionEnd, keyDiagnosesEnd, keyTestEnd:
			// trailing garbage after the CRC token is tolerated here;
			// the state after one more ';' reports ErrUnknownState

		default:
			setError(ErrUnknownState)
		}
	}

	if receiveError == ErrNone && crc^crcFinalXor != receivedCrc && !h.IgnoreCrc {
		setError(ErrInvalidCrc)
	} else if receiveError == ErrNone {
		if frameNumber != h.nextExpectedFrameNumber && !h.IgnoreFrameNumber {
			setError(ErrUnexpectedFrameNumber)
		}

		switch command {
		case CmdWatchdog:
			if !h.versionSeen {
				// the host has to prove protocol compatibility before it
				// may arm or clear the watchdog
				setError(ErrInvalidStartup)
			} else if commandValue > 1 {
				setError(ErrInvalidValue)
			}
		case CmdSetOutput:
			if commandIndex >= SupportedOutputs {
				setError(ErrInvalidIndex)
			} else if commandValue > 1 {
				setError(ErrInvalidValue)
			}
		case CmdReadInput:
			if commandIndex >= SupportedInputs {
				setError(ErrInvalidIndex)
			}
		case CmdVersion, CmdDiagnoses, CmdTest:
		default:
			// empty command token, or a frame without one
			setError(ErrUnknownCommand)
		}
	}

	response := appendInteger(make([]byte, 0, MaxResponseLength), h.nextExpectedFrameNumber)
	if receiveError != ErrNone {
		glog.V(3).Infof("request rejected with error %d", receiveError)
		response = appendChar(response, CmdNack)
		response = appendInteger(response, receiveError)
		response = appendRequest(response, request)
	} else {
		response = appendChar(response, command)
		switch command {
		case CmdVersion:
			h.versionSeen = true
			response = appendString(response, h.device.Version())

		case CmdWatchdog:
			oldRunning := h.device.WatchdogRunning()
			h.device.SetWatchdog(commandValue)
			response = appendBool(response, oldRunning)
			response = appendBool(response, h.device.WatchdogRunning())
			response = appendBool(response, h.device.LockRequired())

		case CmdSetOutput:
			oldState := h.device.Output(commandIndex)
			h.device.SetOutput(commandIndex, commandValue)
			response = appendInteger(response, commandIndex)
			response = appendBool(response, oldState)
			response = appendBool(response, h.device.Output(commandIndex))

		case CmdReadInput:
			response = appendInteger(response, commandIndex)
			response = appendBool(response, h.device.Input(commandIndex))

		case CmdDiagnoses:
			diagnoses, firstError, executedTests := h.device.ConsumeDiagnoses()
			response = appendInteger(response, diagnoses)
			response = appendInteger(response, firstError)
			response = appendInteger(response, executedTests)

		case CmdTest:
			response = appendBool(response, h.device.RequestSelfTest())
		}

		// a valid request has been seen for this frame number
		h.nextExpectedFrameNumber++
	}
	return finishLine(response)
}

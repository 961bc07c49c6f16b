// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 3DES

package lineproto

import "strconv"

// Response construction helpers. Every token, the CRC included, is closed
// with a ';'; the complete line is closed with '\n'.

// appendInteger appends value as unsigned decimal and finalizes the token.
func appendInteger(dst []byte, value uint16) []byte {
	dst = strconv.AppendUint(dst, uint64(value), 10)
	return append(dst, ';')
}

// appendChar appends a single-letter token.
func appendChar(dst []byte, c byte) []byte {
	return append(dst, c, ';')
}

// appendString appends a string token, e.g. the version string.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, ';')
}

// appendBool appends a boolean as a 0/1 token.
func appendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, '1', ';')
	}
	return append(dst, '0', ';')
}

// appendRequest quotes the offending request as a single bracketed token.
// Copying stops at the first non-printable byte so a damaged terminator
// cannot leak control characters into the response.
func appendRequest(dst []byte, request []byte) []byte {
	dst = append(dst, '[')
	for _, b := range request {
		if b < ' ' || b > '~' {
			break
		}
		dst = append(dst, b)
	}
	dst = append(dst, ']')
	return append(dst, ';')
}

// finishLine appends the CRC token over everything built so far plus the
// line terminator. Requests and responses share this closing shape.
func finishLine(dst []byte) []byte {
	dst = appendInteger(dst, CRCSum(dst))
	return append(dst, '\n')
}

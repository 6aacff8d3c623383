// Package sysex provides byte-level MIDI message helpers: SysEx framing and
// status-byte filtering.
package sysex

import (
	"github.com/bandapps/libremidi/sdk/contracts"
)

// MIDI system status bytes.
const (
	StatusSysExStart    = 0xF0
	StatusSysExEnd      = 0xF7
	StatusClock         = 0xF8
	StatusActiveSensing = 0xFE
)

// IsFramed reports whether data already carries SysEx start and end bytes.
func IsFramed(data []byte) bool {
	return len(data) >= 2 && data[0] == StatusSysExStart && data[len(data)-1] == StatusSysExEnd
}

// Frame wraps a payload in SysEx start/end bytes. When alreadyFramed is set
// and the payload carries the framing bytes it is returned unchanged.
// Without the flag the payload is always wrapped; avoiding double framing is
// the caller's responsibility.
func Frame(payload []byte, alreadyFramed bool) []byte {
	if alreadyFramed && IsFramed(payload) {
		return payload
	}
	framed := make([]byte, 0, len(payload)+2)
	framed = append(framed, StatusSysExStart)
	framed = append(framed, payload...)
	return append(framed, StatusSysExEnd)
}

// Allowed reports whether a message passes the input filters, gating on its
// status byte. Called before the cross-thread hand-off so suppressed classes
// never cost a dispatch.
func Allowed(data []byte, f contracts.InputFilters) bool {
	if len(data) == 0 {
		return false
	}
	switch data[0] {
	case StatusSysExStart:
		return f.ReceiveSysEx
	case StatusClock:
		return f.ReceiveTiming
	case StatusActiveSensing:
		return f.ReceiveSensing
	}
	return true
}

package sysex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bandapps/libremidi/sdk/contracts"
)

func TestFrameUnframedPayload(t *testing.T) {
	assert.Equal(t,
		[]byte{0xF0, 0x01, 0x02, 0xF7},
		Frame([]byte{0x01, 0x02}, false))
}

func TestFrameAlreadyFramed(t *testing.T) {
	framed := []byte{0xF0, 0x01, 0x02, 0xF7}

	// With the flag set, a framed payload passes through unchanged.
	assert.Equal(t, framed, Frame(framed, true))

	// Without the flag, framing is applied again.
	assert.Equal(t,
		[]byte{0xF0, 0xF0, 0x01, 0x02, 0xF7, 0xF7},
		Frame(framed, false))
}

func TestFrameEmptyPayload(t *testing.T) {
	assert.Equal(t, []byte{0xF0, 0xF7}, Frame(nil, false))
}

func TestAllowed(t *testing.T) {
	defaults := contracts.DefaultInputFilters()

	noteOn := []byte{0x90, 60, 100}
	assert.True(t, Allowed(noteOn, defaults))
	assert.True(t, Allowed(noteOn, contracts.InputFilters{}))

	sysex := []byte{0xF0, 0x7E, 0xF7}
	assert.True(t, Allowed(sysex, defaults))
	assert.False(t, Allowed(sysex, contracts.InputFilters{ReceiveSysEx: false}))

	clock := []byte{0xF8}
	assert.False(t, Allowed(clock, defaults))
	assert.True(t, Allowed(clock, contracts.InputFilters{ReceiveTiming: true}))

	sensing := []byte{0xFE}
	assert.False(t, Allowed(sensing, defaults))
	assert.True(t, Allowed(sensing, contracts.InputFilters{ReceiveSensing: true}))

	assert.False(t, Allowed(nil, defaults))
}

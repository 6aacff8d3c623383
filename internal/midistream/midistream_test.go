package midistream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(chunks ...[]byte) [][]byte {
	var got [][]byte
	p := New(func(msg []byte) {
		c := make([]byte, len(msg))
		copy(c, msg)
		got = append(got, c)
	})
	for _, chunk := range chunks {
		p.Feed(chunk)
	}
	return got
}

func TestParserCompleteMessages(t *testing.T) {
	got := collect([]byte{0x90, 0x40, 0x64, 0x80, 0x40, 0x00})
	assert.Equal(t, [][]byte{{0x90, 0x40, 0x64}, {0x80, 0x40, 0x00}}, got)
}

func TestParserSplitAcrossReads(t *testing.T) {
	got := collect([]byte{0x90, 0x40}, []byte{0x64})
	assert.Equal(t, [][]byte{{0x90, 0x40, 0x64}}, got)
}

func TestParserRunningStatus(t *testing.T) {
	got := collect([]byte{0x90, 0x40, 0x64, 0x41, 0x64, 0x42, 0x64})
	assert.Equal(t, [][]byte{
		{0x90, 0x40, 0x64},
		{0x90, 0x41, 0x64},
		{0x90, 0x42, 0x64},
	}, got)
}

func TestParserTwoByteMessages(t *testing.T) {
	got := collect([]byte{0xC0, 0x05, 0xD0, 0x30})
	assert.Equal(t, [][]byte{{0xC0, 0x05}, {0xD0, 0x30}}, got)
}

func TestParserSysExAccumulation(t *testing.T) {
	got := collect([]byte{0xF0, 0x7E, 0x00}, []byte{0x09, 0x01, 0xF7})
	assert.Equal(t, [][]byte{{0xF0, 0x7E, 0x00, 0x09, 0x01, 0xF7}}, got)
}

func TestParserRealtimeInterleavedInSysEx(t *testing.T) {
	got := collect([]byte{0xF0, 0x7E, 0xF8, 0x01, 0xF7})
	assert.Equal(t, [][]byte{
		{0xF8},
		{0xF0, 0x7E, 0x01, 0xF7},
	}, got)
}

func TestParserAbortedSysEx(t *testing.T) {
	// A non-realtime status inside SysEx aborts the transfer.
	got := collect([]byte{0xF0, 0x7E, 0x90, 0x40, 0x64})
	assert.Equal(t, [][]byte{{0x90, 0x40, 0x64}}, got)
}

func TestParserStrayDataBytesDropped(t *testing.T) {
	got := collect([]byte{0x40, 0x64, 0x90, 0x40, 0x64})
	assert.Equal(t, [][]byte{{0x90, 0x40, 0x64}}, got)
}

func TestParserSingleByteSystem(t *testing.T) {
	got := collect([]byte{0xF6, 0xFE, 0xFF})
	assert.Equal(t, [][]byte{{0xF6}, {0xFE}, {0xFF}}, got)
}

package midiwindows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandapps/libremidi/sdk/contracts"
)

func TestPnPInstanceID(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "usb interface path",
			path: `\\?\USB#VID_1234&PID_5678#ABC123#{6994ad04-93ef-11d0-a3cc-00a0c9223196}`,
			want: `USB\VID_1234&PID_5678\ABC123`,
		},
		{
			name: "software synth path",
			path: `\\?\SWD#MMDEVAPI#MicrosoftGSWavetableSynth#{guid}`,
			want: `SWD\MMDEVAPI\MicrosoftGSWavetableSynth`,
		},
		{
			name: "no guid suffix",
			path: `\\?\USB#VID_1234&PID_5678#SERIAL`,
			want: `USB\VID_1234&PID_5678\SERIAL`,
		},
		{
			name: "empty",
			path: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pnpInstanceID(tt.path))
		})
	}
}

func TestUSBSerialFromInstanceID(t *testing.T) {
	assert.Equal(t, "ABC123", usbSerialFromInstanceID(`USB\VID_1234&PID_5678\ABC123`))

	// Instance-path-generated segments are not serial numbers.
	assert.Equal(t, "", usbSerialFromInstanceID(`USB\VID_1234&PID_5678\5&2d4e7a8&0&1`))
	assert.Equal(t, "", usbSerialFromInstanceID("no-separators"))
}

func TestMatchDeviceIDSurvivesEnumerationGaps(t *testing.T) {
	// Device 1 failed its capabilities query and is missing, so slice
	// positions no longer equal WinMM device IDs.
	candidates := []contracts.Port{
		{PortName: "Synth A", PlatformPortID: 100, ClientHandle: 0},
		{PortName: "Synth C", PlatformPortID: 102, ClientHandle: 2},
	}

	id, ok := matchDeviceID(candidates, contracts.Port{PortName: "Synth C", PlatformPortID: 102})
	require.True(t, ok)
	assert.Equal(t, uintptr(2), id)

	// Identity-only fallback still yields the carried device ID.
	id, ok = matchDeviceID(candidates, contracts.Port{PortName: "Synth C", PlatformPortID: 999})
	require.True(t, ok)
	assert.Equal(t, uintptr(2), id)

	_, ok = matchDeviceID(candidates, contracts.Port{PortName: "Synth B"})
	assert.False(t, ok)
}

func TestShortMessageLen(t *testing.T) {
	tests := []struct {
		status byte
		want   int
	}{
		{0x90, 3}, // note on
		{0x80, 3}, // note off
		{0xB0, 3}, // control change
		{0xC0, 2}, // program change
		{0xD0, 2}, // channel pressure
		{0xE0, 3}, // pitch bend
		{0xF1, 2}, // MTC quarter frame
		{0xF2, 3}, // song position
		{0xF3, 2}, // song select
		{0xF8, 1}, // clock
		{0xFE, 1}, // active sensing
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortMessageLen(tt.status), "status %#x", tt.status)
	}
}

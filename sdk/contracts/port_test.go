package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportClassifyPriority(t *testing.T) {
	cases := []struct {
		raw  TransportType
		want TransportType
	}{
		{0, TransportUnknown},
		{TransportUSB, TransportUSB},
		{TransportUSB | TransportHardware, TransportUSB},
		{TransportBluetooth | TransportHardware, TransportBluetooth},
		{TransportNetwork | TransportPCI | TransportUSB, TransportNetwork},
		{TransportPCI | TransportHardware, TransportPCI},
		{TransportLoopback | TransportSoftware, TransportLoopback},
		{TransportSoftware, TransportSoftware},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.raw.Classify(), "raw=0x%02X", uint8(c.raw))
	}
}

func TestTransportString(t *testing.T) {
	assert.Equal(t, "usb", (TransportUSB | TransportHardware).String())
	assert.Equal(t, "unknown", TransportUnknown.String())
	assert.Equal(t, "software", TransportSoftware.String())
}

func TestIdentityKey(t *testing.T) {
	p := Port{PortName: "Bus 1", Manufacturer: "Apple", Product: "IAC", Serial: "s"}
	assert.Equal(t, "Bus 1|Apple|IAC|s", p.IdentityKey())

	// Session-local fields do not participate.
	q := p
	q.Index = 3
	q.ClientHandle = 99
	assert.Equal(t, p.IdentityKey(), q.IdentityKey())
}

func TestDefaultInputFilters(t *testing.T) {
	f := DefaultInputFilters()
	assert.True(t, f.ReceiveSysEx)
	assert.False(t, f.ReceiveTiming)
	assert.False(t, f.ReceiveSensing)
}

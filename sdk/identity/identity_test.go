package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bandapps/libremidi/sdk/contracts"
)

func TestStableIDIgnoresSessionFields(t *testing.T) {
	p1 := contracts.Port{
		Index:          0,
		PlatformPortID: 11,
		ClientHandle:   42,
		PortName:       "Bus 1",
		Manufacturer:   "Apple Inc.",
		Product:        "IAC Driver",
		Serial:         "",
	}
	p2 := p1
	p2.Index = 7
	p2.PlatformPortID = 9999
	p2.ClientHandle = 1

	assert.Equal(t, StableID(p1), StableID(p2))
}

func TestStableIDChangesWithIdentityTuple(t *testing.T) {
	base := contracts.Port{PortName: "MIDI Out", Manufacturer: "KORG", Product: "nanoKEY2", Serial: "0001"}

	for _, mutate := range []func(*contracts.Port){
		func(p *contracts.Port) { p.PortName = "MIDI In" },
		func(p *contracts.Port) { p.Manufacturer = "Roland" },
		func(p *contracts.Port) { p.Product = "nanoKEY"; p.Serial = "20001" },
		func(p *contracts.Port) { p.Serial = "0002" },
	} {
		other := base
		mutate(&other)
		assert.NotEqual(t, StableID(base), StableID(other))
	}
}

func TestStableIDKnownVector(t *testing.T) {
	// FNV-1a over the empty identity tuple "|||" pins the hash parameters.
	h := fnvOffsetBasis
	for _, b := range []byte("|||") {
		h ^= uint64(b)
		h *= fnvPrime
	}
	assert.Equal(t, h, StableID(contracts.Port{}))
}

func TestEffectiveIDFallback(t *testing.T) {
	anon := contracts.Port{PortName: "Midi Through Port-0", PlatformPortID: 14}
	assert.Equal(t, uint64(14), EffectiveID(anon))

	named := anon
	named.Product = "Through"
	assert.Equal(t, StableID(named), EffectiveID(named))

	serialOnly := anon
	serialOnly.Serial = "S1"
	assert.Equal(t, StableID(serialOnly), EffectiveID(serialOnly))
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandapps/libremidi/sdk/contracts"
)

func port(name, product string) contracts.Port {
	return contracts.Port{PortName: name, Manufacturer: "Test", Product: product}
}

func TestBuildAssignsIndicesAndDirections(t *testing.T) {
	snap := Build(
		[]contracts.Port{port("in A", "a"), port("in B", "b")},
		[]contracts.Port{port("out A", "a")},
	)

	require.Len(t, snap.Inputs, 2)
	require.Len(t, snap.Outputs, 1)
	for i, p := range snap.Inputs {
		assert.Equal(t, int32(i), p.Index)
		assert.Equal(t, contracts.DirectionInput, p.Direction)
	}
	assert.Equal(t, int32(0), snap.Outputs[0].Index)
	assert.Equal(t, contracts.DirectionOutput, snap.Outputs[0].Direction)
}

func TestDiffKeyedOnIdentityNotIndex(t *testing.T) {
	a := port("A", "pa")
	b := port("B", "pb")
	c := port("C", "pc")

	prev := Build([]contracts.Port{a, b}, nil)
	next := Build([]contracts.Port{a, c}, nil)

	added, removed := Diff(prev.Inputs, next.Inputs)
	require.Len(t, added, 1)
	require.Len(t, removed, 1)
	assert.Equal(t, "C", added[0].PortName)
	assert.Equal(t, "B", removed[0].PortName)

	// A shifted index between snapshots in neither list.
	for _, p := range append(added, removed...) {
		assert.NotEqual(t, "A", p.PortName)
	}
}

func TestDiffEmpty(t *testing.T) {
	a := port("A", "pa")
	added, removed := Diff([]contracts.Port{a}, []contracts.Port{a})
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestEventsPerDirection(t *testing.T) {
	prev := Build([]contracts.Port{port("A", "pa")}, []contracts.Port{port("X", "px")})
	next := Build([]contracts.Port{port("A", "pa"), port("B", "pb")}, nil)

	events := Events(prev, next)
	assert.ElementsMatch(t,
		[]contracts.HotplugEvent{contracts.InputAdded, contracts.OutputRemoved},
		events)
}

func TestEventsSetupChangedFallback(t *testing.T) {
	// A native "something changed" with no visible diff re-announces adds on
	// both directions rather than dropping the notification.
	snap := Build([]contracts.Port{port("A", "pa")}, nil)
	events := Events(snap, snap)
	assert.ElementsMatch(t,
		[]contracts.HotplugEvent{contracts.InputAdded, contracts.OutputAdded},
		events)
}

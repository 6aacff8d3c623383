package midiloopback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandapps/libremidi/internal/logger"
	"github.com/bandapps/libremidi/sdk/contracts"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := NewAdapter(logger.NewNopLogger(), 16)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestEnumerateListsBothDirections(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1", Manufacturer: "Test", Product: "Loop"}))
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 2", Manufacturer: "Test", Product: "Loop"}))

	inputs, outputs, err := a.Enumerate()
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	require.Len(t, outputs, 2)

	assert.Equal(t, "Bus 1", inputs[0].PortName)
	assert.Equal(t, "Bus 2", inputs[1].PortName)
	assert.Equal(t, contracts.DirectionInput, inputs[0].Direction)
	assert.Equal(t, contracts.DirectionOutput, outputs[0].Direction)
	assert.True(t, inputs[0].Virtual)
	assert.Equal(t, contracts.TransportLoopback, inputs[0].Transport.Classify())
	assert.NotEqual(t, inputs[0].PlatformPortID, outputs[0].PlatformPortID)
}

func TestRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1", Product: "Loop"}))
	inputs, outputs, err := a.Enumerate()
	require.NoError(t, err)

	got := make(chan []byte, 1)
	in, err := a.OpenInput(inputs[0], func(data []byte, ts int64) {
		got <- data
	}, contracts.DefaultInputFilters())
	require.NoError(t, err)
	defer in.Close()

	out, err := a.OpenOutput(outputs[0])
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, out.Send([]byte{0x90, 60, 100}))

	select {
	case data := <-got:
		assert.Equal(t, []byte{0x90, 60, 100}, data)
	case <-time.After(time.Second):
		t.Fatal("message did not round-trip")
	}

	// Exactly once.
	select {
	case <-got:
		t.Fatal("message delivered twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFiltersSuppressAtSubmission(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1", Product: "Loop"}))
	inputs, outputs, _ := a.Enumerate()

	got := make(chan []byte, 4)
	in, err := a.OpenInput(inputs[0], func(data []byte, ts int64) {
		got <- data
	}, contracts.InputFilters{ReceiveSysEx: false})
	require.NoError(t, err)
	defer in.Close()

	out, err := a.OpenOutput(outputs[0])
	require.NoError(t, err)

	require.NoError(t, out.Send([]byte{0xF0, 0x01, 0xF7})) // suppressed
	require.NoError(t, out.Send([]byte{0xF8}))             // suppressed by default
	require.NoError(t, out.Send([]byte{0x80, 60, 0}))      // passes

	select {
	case data := <-got:
		assert.Equal(t, []byte{0x80, 60, 0}, data)
	case <-time.After(time.Second):
		t.Fatal("filtered input received nothing")
	}
	select {
	case data := <-got:
		t.Fatalf("suppressed message delivered: %v", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendEmptyIsNoOp(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1"}))
	_, outputs, _ := a.Enumerate()
	out, err := a.OpenOutput(outputs[0])
	require.NoError(t, err)
	assert.NoError(t, out.Send(nil))
}

func TestSendAfterPortRemoval(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1"}))
	_, outputs, _ := a.Enumerate()
	out, err := a.OpenOutput(outputs[0])
	require.NoError(t, err)

	require.NoError(t, a.RemovePort("Bus 1"))
	assert.ErrorIs(t, out.Send([]byte{0x90, 60, 1}), contracts.ErrSendFailed)
}

func TestHotplugNotify(t *testing.T) {
	a := newTestAdapter(t)
	fired := make(chan struct{}, 4)
	a.SetHotplugNotify(func() { fired <- struct{}{} })

	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1"}))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("AddPort did not notify")
	}

	require.NoError(t, a.RemovePort("Bus 1"))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("RemovePort did not notify")
	}
}

func TestOpenVanishedPort(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddPort(PortSpec{Name: "Bus 1"}))
	inputs, outputs, _ := a.Enumerate()
	require.NoError(t, a.RemovePort("Bus 1"))

	_, err := a.OpenInput(inputs[0], func([]byte, int64) {}, contracts.DefaultInputFilters())
	assert.ErrorIs(t, err, contracts.ErrOpenFailed)

	_, err = a.OpenOutput(outputs[0])
	assert.ErrorIs(t, err, contracts.ErrOpenFailed)
}

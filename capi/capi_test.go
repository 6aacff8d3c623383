package capi

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandapps/libremidi/internal/logger"
	"github.com/bandapps/libremidi/internal/midi/midiloopback"
	"github.com/bandapps/libremidi/sdk/contracts"
)

func newLoopbackAdapter(t *testing.T, specs ...midiloopback.PortSpec) *midiloopback.Adapter {
	t.Helper()
	adapter := midiloopback.NewAdapter(logger.NewNopLogger(), 0)
	for _, spec := range specs {
		require.NoError(t, adapter.AddPort(spec))
	}
	return adapter
}

func createObserver(t *testing.T, hotplug contracts.HotplugFunc, specs ...midiloopback.PortSpec) uint64 {
	t.Helper()
	handle, st := ObserverCreate(hotplug,
		contracts.WithTransport(newLoopbackAdapter(t, specs...)),
		contracts.WithLogger(logger.NewNopLogger()))
	require.Equal(t, StatusOK, st)
	require.NotZero(t, handle)
	t.Cleanup(func() { ObserverDestroy(handle) })
	return handle
}

func TestStatusCodeValues(t *testing.T) {
	assert.Equal(t, Status(0), StatusOK)
	assert.Equal(t, Status(-1), StatusInvalid)
	assert.Equal(t, Status(-2), StatusNotFound)
	assert.Equal(t, Status(-3), StatusOpenFailed)
	assert.Equal(t, Status(-4), StatusSendFailed)
	assert.Equal(t, Status(-5), StatusInitFailed)
}

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, StatusOK, statusFromError(nil))
	assert.Equal(t, StatusInvalid, statusFromError(contracts.ErrInvalidArgument))
	assert.Equal(t, StatusInvalid, statusFromError(contracts.ErrDisposed))
	assert.Equal(t, StatusNotFound, statusFromError(contracts.ErrNotFound))
	assert.Equal(t, StatusOpenFailed, statusFromError(contracts.ErrOpenFailed))
	assert.Equal(t, StatusSendFailed, statusFromError(contracts.ErrSendFailed))
	assert.Equal(t, StatusInitFailed, statusFromError(contracts.ErrInitFailed))
}

func TestVersionNonEmpty(t *testing.T) {
	assert.NotEmpty(t, Version())
}

func TestObserverLifecycle(t *testing.T) {
	handle := createObserver(t, nil, midiloopback.PortSpec{Name: "Port A"})

	count, st := ObserverInputCount(handle)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, int32(1), count)

	count, st = ObserverOutputCount(handle)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, int32(1), count)

	assert.Equal(t, StatusOK, ObserverRefresh(handle))
	assert.Equal(t, StatusOK, ObserverDestroy(handle))

	// The handle is dead after destroy.
	assert.Equal(t, StatusInvalid, ObserverDestroy(handle))
	assert.Equal(t, StatusInvalid, ObserverRefresh(handle))
	_, st = ObserverInputCount(handle)
	assert.Equal(t, StatusInvalid, st)
}

func TestZeroHandleNeverValid(t *testing.T) {
	assert.Equal(t, StatusInvalid, ObserverRefresh(0))
	assert.Equal(t, StatusInvalid, InputClose(0))
	assert.Equal(t, StatusInvalid, OutputClose(0))
	assert.Equal(t, StatusInvalid, OutputSend(0, []byte{0xF8}))
	assert.False(t, InputIsConnected(0))
	assert.False(t, OutputIsConnected(0))
}

func TestPortInfoRecord(t *testing.T) {
	handle := createObserver(t, nil, midiloopback.PortSpec{
		Name:         "Keys",
		Manufacturer: "Acme",
		Product:      "Keys MK2",
		Serial:       "SN42",
	})

	info, st := ObserverGetInput(handle, 0)
	require.Equal(t, StatusOK, st)
	assert.Equal(t, "Keys", cString(info.PortName[:]))
	assert.Equal(t, "Acme", cString(info.Manufacturer[:]))
	assert.Equal(t, "Keys MK2", cString(info.Product[:]))
	assert.Equal(t, "SN42", cString(info.Serial[:]))
	assert.True(t, info.IsInput)
	assert.True(t, info.IsVirtual)
	assert.NotZero(t, info.StableID)
	assert.NotZero(t, info.Transport&uint8(contracts.TransportLoopback))

	out, st := ObserverGetOutput(handle, 0)
	require.Equal(t, StatusOK, st)
	assert.False(t, out.IsInput)
	assert.Equal(t, info.StableID, out.StableID,
		"both directions of one port share the stable ID")

	_, st = ObserverGetInput(handle, 5)
	assert.Equal(t, StatusNotFound, st)
	_, st = ObserverGetInput(handle, -1)
	assert.Equal(t, StatusNotFound, st)
}

func TestPortInfoStableIDIsRawHash(t *testing.T) {
	// An anonymous port (no product, no serial) still crosses the boundary
	// with the FNV-1a hash of its identity tuple, never the session-local
	// platform port ID.
	handle := createObserver(t, nil, midiloopback.PortSpec{Name: "Anon"})

	info, st := ObserverGetInput(handle, 0)
	require.Equal(t, StatusOK, st)
	assert.Equal(t, uint64(0x4c906c5ada092619), info.StableID,
		"FNV-1a of \"Anon|||\"")
	assert.NotEqual(t, info.PortID, info.StableID)
}

func TestPortInfoStringTruncation(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	handle := createObserver(t, nil, midiloopback.PortSpec{Name: string(long)})

	info, st := ObserverGetInput(handle, 0)
	require.Equal(t, StatusOK, st)
	got := cString(info.PortName[:])
	assert.Len(t, got, 255, "truncated to capacity minus the NUL")
	assert.Zero(t, info.PortName[255])
}

func TestPortInfoLayoutIsFixedWidth(t *testing.T) {
	// The record crosses the boundary as raw bytes; the offsets are part of
	// the contract.
	var info PortInfo
	assert.Equal(t, uintptr(0), unsafe.Offsetof(info.StableID))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(info.PortID))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(info.ClientHandle))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(info.Index))
	assert.Equal(t, uintptr(28), unsafe.Offsetof(info.DisplayName))
	assert.Equal(t, uintptr(28+256), unsafe.Offsetof(info.PortName))
	assert.Equal(t, uintptr(28+2*256), unsafe.Offsetof(info.DeviceName))
	assert.Equal(t, uintptr(28+3*256), unsafe.Offsetof(info.Manufacturer))
	assert.Equal(t, uintptr(28+4*256), unsafe.Offsetof(info.Product))
	assert.Equal(t, uintptr(28+5*256), unsafe.Offsetof(info.Serial))
	assert.Equal(t, uintptr(28+5*256+128), unsafe.Offsetof(info.Transport))
	assert.Equal(t, uintptr(28+5*256+129), unsafe.Offsetof(info.IsInput))
	assert.Equal(t, uintptr(28+5*256+130), unsafe.Offsetof(info.IsVirtual))
}

func TestRoundTripOverBoundary(t *testing.T) {
	handle := createObserver(t, nil, midiloopback.PortSpec{Name: "Loop"})

	var (
		mu  sync.Mutex
		got [][]byte
	)
	inHandle, st := InputOpen(handle, 0, func(data []byte, _ int64) {
		mu.Lock()
		defer mu.Unlock()
		c := make([]byte, len(data))
		copy(c, data)
		got = append(got, c)
	}, contracts.DefaultInputFilters())
	require.Equal(t, StatusOK, st)
	require.NotZero(t, inHandle)
	assert.True(t, InputIsConnected(inHandle))

	outHandle, st := OutputOpen(handle, 0)
	require.Equal(t, StatusOK, st)
	require.NotZero(t, outHandle)
	assert.True(t, OutputIsConnected(outHandle))

	msg := []byte{0x90, 0x40, 0x64}
	require.Equal(t, StatusOK, OutputSend(outHandle, msg))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, msg, got[0])
	mu.Unlock()

	assert.Equal(t, StatusOK, InputClose(inHandle))
	assert.False(t, InputIsConnected(inHandle))
	assert.Equal(t, StatusOK, OutputClose(outHandle))
	assert.False(t, OutputIsConnected(outHandle))

	assert.Equal(t, StatusInvalid, InputClose(inHandle))
	assert.Equal(t, StatusInvalid, OutputSend(outHandle, msg))
}

func TestOpenReturnsZeroHandleOnFailure(t *testing.T) {
	handle := createObserver(t, nil, midiloopback.PortSpec{Name: "Solo"})

	inHandle, st := InputOpen(handle, 9, func([]byte, int64) {}, contracts.DefaultInputFilters())
	assert.Equal(t, StatusNotFound, st)
	assert.Zero(t, inHandle)

	// A nil callback is rejected below the boundary.
	inHandle, st = InputOpen(handle, 0, nil, contracts.DefaultInputFilters())
	assert.Equal(t, StatusInvalid, st)
	assert.Zero(t, inHandle)

	outHandle, st := OutputOpen(handle, 9)
	assert.Equal(t, StatusNotFound, st)
	assert.Zero(t, outHandle)

	outHandle, st = OutputOpen(12345, 0)
	assert.Equal(t, StatusInvalid, st)
	assert.Zero(t, outHandle)
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Package capi is the foreign-function boundary of the library. Objects are
// referenced through integer handles, port descriptions cross as fixed-width
// records, and every failure is reported as a status code. A cgo export shim
// can wrap these functions one to one; nothing here panics across the
// boundary.
package capi

import (
	"errors"
	"sync"

	"github.com/bandapps/libremidi/sdk/contracts"
	"github.com/bandapps/libremidi/sdk/identity"
	"github.com/bandapps/libremidi/sdk/midi"
)

// Status is the cross-boundary result code.
type Status int32

const (
	StatusOK         Status = 0
	StatusInvalid    Status = -1
	StatusNotFound   Status = -2
	StatusOpenFailed Status = -3
	StatusSendFailed Status = -4
	StatusInitFailed Status = -5
)

const version = "1.0.0"

// Version returns the library version string.
func Version() string {
	return version
}

// statusFromError maps the error taxonomy onto status codes.
func statusFromError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, contracts.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, contracts.ErrInvalidArgument):
		return StatusInvalid
	case errors.Is(err, contracts.ErrOpenFailed):
		return StatusOpenFailed
	case errors.Is(err, contracts.ErrSendFailed):
		return StatusSendFailed
	case errors.Is(err, contracts.ErrInitFailed):
		return StatusInitFailed
	default:
		return StatusInvalid
	}
}

// recoverTo converts a panic into a status code; nothing may propagate a
// panic across the boundary.
func recoverTo(st *Status) {
	if r := recover(); r != nil {
		*st = StatusInvalid
	}
}

// table is a mutex-guarded handle registry. Handle 0 is never issued, so 0
// doubles as the null handle.
type table[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[uint64]T)}
}

func (t *table[T]) put(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *table[T]) get(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	return v, ok
}

func (t *table[T]) remove(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return v, ok
}

var (
	observers = newTable[contracts.Observer]()
	inputs    = newTable[contracts.Input]()
	outputs   = newTable[contracts.Output]()
)

// PortInfo is the fixed-width port record crossing the boundary. Strings
// are NUL-terminated and truncated to fit.
type PortInfo struct {
	StableID     uint64
	PortID       uint64
	ClientHandle uint64
	Index        int32
	DisplayName  [256]byte
	PortName     [256]byte
	DeviceName   [256]byte
	Manufacturer [256]byte
	Product      [256]byte
	Serial       [128]byte
	Transport    uint8
	IsInput      bool
	IsVirtual    bool
}

func putString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
}

func fillPortInfo(p contracts.Port) PortInfo {
	// StableID carries the raw identity hash; consumers needing the
	// anonymous-port fallback derive it from PortID themselves.
	info := PortInfo{
		StableID:     identity.StableID(p),
		PortID:       p.PlatformPortID,
		ClientHandle: p.ClientHandle,
		Index:        p.Index,
		Transport:    uint8(p.Transport),
		IsInput:      p.Direction == contracts.DirectionInput,
		IsVirtual:    p.Virtual,
	}
	putString(info.DisplayName[:], p.DisplayName)
	putString(info.PortName[:], p.PortName)
	putString(info.DeviceName[:], p.DeviceName)
	putString(info.Manufacturer[:], p.Manufacturer)
	putString(info.Product[:], p.Product)
	putString(info.Serial[:], p.Serial)
	return info
}

// ObserverCreate constructs an Observer and returns its handle, 0 on
// failure. A non-nil hotplug callback enables device-change notification.
// Extra options are composed after the hotplug wiring.
func ObserverCreate(hotplug contracts.HotplugFunc, opts ...contracts.Option) (handle uint64, st Status) {
	defer recoverTo(&st)

	var all []contracts.Option
	if hotplug != nil {
		all = append(all, contracts.WithHotplug(hotplug))
	}
	all = append(all, opts...)

	obs, err := midi.NewObserver(all...)
	if err != nil {
		return 0, statusFromError(err)
	}
	return observers.put(obs), StatusOK
}

// ObserverDestroy disposes the Observer and invalidates its handle.
func ObserverDestroy(handle uint64) (st Status) {
	defer recoverTo(&st)
	obs, ok := observers.remove(handle)
	if !ok {
		return StatusInvalid
	}
	return statusFromError(obs.Dispose())
}

// ObserverRefresh re-enumerates the Observer's port set.
func ObserverRefresh(handle uint64) (st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(handle)
	if !ok {
		return StatusInvalid
	}
	return statusFromError(obs.Refresh())
}

// ObserverInputCount returns the number of input ports, or a negative
// status.
func ObserverInputCount(handle uint64) (count int32, st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(handle)
	if !ok {
		return -1, StatusInvalid
	}
	return int32(len(obs.InputPorts())), StatusOK
}

// ObserverOutputCount returns the number of output ports, or a negative
// status.
func ObserverOutputCount(handle uint64) (count int32, st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(handle)
	if !ok {
		return -1, StatusInvalid
	}
	return int32(len(obs.OutputPorts())), StatusOK
}

// ObserverGetInput fills the record for the input port at index.
func ObserverGetInput(handle uint64, index int32) (info PortInfo, st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(handle)
	if !ok {
		return PortInfo{}, StatusInvalid
	}
	ports := obs.InputPorts()
	if index < 0 || int(index) >= len(ports) {
		return PortInfo{}, StatusNotFound
	}
	return fillPortInfo(ports[index]), StatusOK
}

// ObserverGetOutput fills the record for the output port at index.
func ObserverGetOutput(handle uint64, index int32) (info PortInfo, st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(handle)
	if !ok {
		return PortInfo{}, StatusInvalid
	}
	ports := obs.OutputPorts()
	if index < 0 || int(index) >= len(ports) {
		return PortInfo{}, StatusNotFound
	}
	return fillPortInfo(ports[index]), StatusOK
}

// InputOpen opens the input port at index for receiving and returns its
// handle, 0 on failure.
func InputOpen(observerHandle uint64, index int32, onMessage contracts.MessageFunc, filters contracts.InputFilters) (handle uint64, st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(observerHandle)
	if !ok {
		return 0, StatusInvalid
	}
	ports := obs.InputPorts()
	if index < 0 || int(index) >= len(ports) {
		return 0, StatusNotFound
	}
	in, err := obs.OpenInput(ports[index], onMessage, filters)
	if err != nil {
		return 0, statusFromError(err)
	}
	return inputs.put(in), StatusOK
}

// InputClose closes the input connection and invalidates its handle.
func InputClose(handle uint64) (st Status) {
	defer recoverTo(&st)
	in, ok := inputs.remove(handle)
	if !ok {
		return StatusInvalid
	}
	return statusFromError(in.Close())
}

// InputIsConnected reports whether the input connection is still open.
// Unknown handles report false.
func InputIsConnected(handle uint64) bool {
	in, ok := inputs.get(handle)
	return ok && in.IsConnected()
}

// OutputOpen opens the output port at index for sending and returns its
// handle, 0 on failure.
func OutputOpen(observerHandle uint64, index int32) (handle uint64, st Status) {
	defer recoverTo(&st)
	obs, ok := observers.get(observerHandle)
	if !ok {
		return 0, StatusInvalid
	}
	ports := obs.OutputPorts()
	if index < 0 || int(index) >= len(ports) {
		return 0, StatusNotFound
	}
	out, err := obs.OpenOutput(ports[index])
	if err != nil {
		return 0, statusFromError(err)
	}
	return outputs.put(out), StatusOK
}

// OutputClose closes the output connection and invalidates its handle.
func OutputClose(handle uint64) (st Status) {
	defer recoverTo(&st)
	out, ok := outputs.remove(handle)
	if !ok {
		return StatusInvalid
	}
	return statusFromError(out.Close())
}

// OutputIsConnected reports whether the output connection is still open.
// Unknown handles report false.
func OutputIsConnected(handle uint64) bool {
	out, ok := outputs.get(handle)
	return ok && out.IsConnected()
}

// OutputSend transmits one MIDI message on the output connection.
func OutputSend(handle uint64, data []byte) (st Status) {
	defer recoverTo(&st)
	out, ok := outputs.get(handle)
	if !ok {
		return StatusInvalid
	}
	return statusFromError(out.Send(data))
}

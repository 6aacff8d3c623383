//go:build windows

// Package midiwindows implements the transport adapter on Windows via the
// WinMM multimedia API, with device identity enriched through the PnP
// configuration manager.
package midiwindows

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/bandapps/libremidi/internal/dispatch"
	"github.com/bandapps/libremidi/internal/sysex"
	"github.com/bandapps/libremidi/sdk/contracts"
)

// Callback flags for midiInOpen.
const (
	callbackFunction = 0x00030000 // The callback parameter is a function.
	midiIOStatus     = 0x00000020 // Deliver MIM_MOREDATA when the callback lags.
)

// MIDI input callback message types.
const (
	mimOpen      = 0x3C1
	mimClose     = 0x3C2
	mimData      = 0x3C3
	mimLongData  = 0x3C4
	mimError     = 0x3C5
	mimLongError = 0x3C6
	mimMoreData  = 0x3CC
)

// MIDIHDR flag bits.
const (
	mhdrDone     = 0x00000001
	mhdrPrepared = 0x00000002
)

const (
	sysexBufferSize  = 4096
	sysexBufferCount = 4
)

// midiInCaps mirrors MIDIINCAPSW.
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// midiOutCaps mirrors MIDIOUTCAPSW.
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// midiHdr mirrors MIDIHDR.
type midiHdr struct {
	lpData          uintptr
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

var (
	winmm                    = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs     = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps     = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen           = winmm.NewProc("midiInOpen")
	procMidiInStart          = winmm.NewProc("midiInStart")
	procMidiInStop           = winmm.NewProc("midiInStop")
	procMidiInReset          = winmm.NewProc("midiInReset")
	procMidiInClose          = winmm.NewProc("midiInClose")
	procMidiInMessage        = winmm.NewProc("midiInMessage")
	procMidiInPrepareHdr     = winmm.NewProc("midiInPrepareHeader")
	procMidiInUnprepareHdr   = winmm.NewProc("midiInUnprepareHeader")
	procMidiInAddBuffer      = winmm.NewProc("midiInAddBuffer")
	procMidiOutGetNumDevs    = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps    = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen          = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg      = winmm.NewProc("midiOutShortMsg")
	procMidiOutLongMsg       = winmm.NewProc("midiOutLongMsg")
	procMidiOutPrepareHdr    = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutUnprepareHdr  = winmm.NewProc("midiOutUnprepareHeader")
	procMidiOutReset         = winmm.NewProc("midiOutReset")
	procMidiOutClose         = winmm.NewProc("midiOutClose")
	procMidiOutMessage       = winmm.NewProc("midiOutMessage")
)

// Adapter is the WinMM transport adapter.
type Adapter struct {
	logger   contracts.Logger
	queueCap int

	mu           sync.Mutex
	notification *deviceNotification
}

// NewAdapter creates the WinMM adapter. WinMM needs no client handle; the
// adapter is ready immediately.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	options.Logger.Info("WinMM MIDI adapter created")
	return &Adapter{
		logger:   options.Logger,
		queueCap: options.QueueCapacity,
	}, nil
}

// Enumerate lists WinMM input and output devices, enriching identity through
// the device interface path and the PnP device tree.
func (a *Adapter) Enumerate() (inputs, outputs []contracts.Port, err error) {
	numIn, _, _ := procMidiInGetNumDevs.Call()
	for i := uintptr(0); i < numIn; i++ {
		var caps midiInCaps
		r, _, _ := procMidiInGetDevCaps.Call(i, uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r != 0 {
			a.logger.Warn("failed to query input device capabilities", contracts.Int("device", int(i)))
			continue
		}
		port := a.buildPort(windows.UTF16ToString(caps.szPname[:]), i, contracts.DirectionInput)
		inputs = append(inputs, port)
	}

	numOut, _, _ := procMidiOutGetNumDevs.Call()
	for i := uintptr(0); i < numOut; i++ {
		var caps midiOutCaps
		r, _, _ := procMidiOutGetDevCaps.Call(i, uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r != 0 {
			a.logger.Warn("failed to query output device capabilities", contracts.Int("device", int(i)))
			continue
		}
		port := a.buildPort(windows.UTF16ToString(caps.szPname[:]), i, contracts.DirectionOutput)
		outputs = append(outputs, port)
	}
	return inputs, outputs, nil
}

func (a *Adapter) buildPort(name string, deviceID uintptr, dir contracts.Direction) contracts.Port {
	p := contracts.Port{
		DisplayName:    name,
		PortName:       name,
		DeviceName:     name,
		PlatformPortID: uint64(deviceID),
		ClientHandle:   uint64(deviceID),
		Direction:      dir,
	}

	path := deviceInterfacePath(deviceID, dir == contracts.DirectionInput)
	if path != "" {
		info := deviceInfoFromInterfacePath(path)
		if info.deviceName != "" {
			p.DeviceName = info.deviceName
			p.Product = info.deviceName
		}
		p.Serial = info.serial
		p.Transport = info.transport
		p.PlatformPortID = fnv64(path)
	}
	if p.Transport == contracts.TransportUnknown {
		p.Transport = contracts.TransportHardware
	}
	p.Virtual = p.Transport&(contracts.TransportSoftware|contracts.TransportLoopback) != 0
	return p
}

// fnv64 hashes the device interface path into a session-stable port ID that
// survives enumeration reordering.
func fnv64(s string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// deviceInterfacePath asks the WinMM driver for the device interface path of
// a device ID. The device ID stands in for the handle; WinMM routes these
// driver messages by ID.
func deviceInterfacePath(deviceID uintptr, input bool) string {
	const (
		drvQueryDeviceInterfaceSize = 0x080C
		drvQueryDeviceInterface     = 0x080D
	)
	msgProc := procMidiOutMessage
	if input {
		msgProc = procMidiInMessage
	}

	var size uint32
	r, _, _ := msgProc.Call(deviceID, drvQueryDeviceInterfaceSize, uintptr(unsafe.Pointer(&size)), 0)
	if r != 0 || size < 2 {
		return ""
	}
	buf := make([]uint16, size/2+1)
	r, _, _ = msgProc.Call(deviceID, drvQueryDeviceInterface, uintptr(unsafe.Pointer(&buf[0])), uintptr(size))
	if r != 0 {
		return ""
	}
	return windows.UTF16ToString(buf)
}

// deviceIDByPort re-resolves a port to its current WinMM device ID by
// identity, not by any position captured at enumeration time.
func (a *Adapter) deviceIDByPort(port contracts.Port) (uintptr, bool) {
	inputs, outputs, err := a.Enumerate()
	if err != nil {
		return 0, false
	}
	candidates := inputs
	if port.Direction == contracts.DirectionOutput {
		candidates = outputs
	}
	return matchDeviceID(candidates, port)
}

// inputRegistry maps callback cookies to open input connections. A single
// process-wide callback avoids burning one NewCallback slot per open.
var (
	inputRegistry   sync.Map // uintptr -> *inputConn
	nextInputCookie atomic.Uintptr
	inputCbOnce     sync.Once
	inputCbPtr      uintptr
)

func inputCallbackPtr() uintptr {
	inputCbOnce.Do(func() {
		inputCbPtr = windows.NewCallback(midiInCallback)
	})
	return inputCbPtr
}

// midiInCallback runs on the WinMM driver thread. It must only copy bytes
// and hand off; anything heavier would stall the driver.
func midiInCallback(hMidiIn, wMsg, dwInstance, dwParam1, dwParam2 uintptr) uintptr {
	v, ok := inputRegistry.Load(dwInstance)
	if !ok {
		return 0
	}
	c := v.(*inputConn)

	switch wMsg {
	case mimData:
		status := byte(dwParam1 & 0xFF)
		n := shortMessageLen(status)
		msg := [3]byte{status, byte(dwParam1 >> 8), byte(dwParam1 >> 16)}
		data := msg[:n]
		if sysex.Allowed(data, c.filters) {
			c.pump.Submit(data, time.Now().UnixMicro())
		}
	case mimLongData:
		hdr := (*midiHdr)(unsafe.Pointer(dwParam1))
		if hdr.dwBytesRecorded > 0 && c.filters.ReceiveSysEx {
			data := unsafe.Slice((*byte)(unsafe.Pointer(hdr.lpData)), hdr.dwBytesRecorded)
			c.pump.Submit(data, time.Now().UnixMicro())
		}
		c.requeueBuffer(hdr)
	case mimError, mimLongError:
		c.logger.Warn("MIDI input driver error", contracts.Uint64("msg", uint64(wMsg)))
	case mimOpen, mimClose, mimMoreData:
		// Informational.
	}
	return 0
}

// OpenInput opens a WinMM input device, queues SysEx buffers when SysEx
// delivery is enabled, and starts reception.
func (a *Adapter) OpenInput(port contracts.Port, onMessage contracts.MessageFunc, filters contracts.InputFilters) (contracts.InputConnection, error) {
	deviceID, ok := a.deviceIDByPort(port)
	if !ok {
		return nil, fmt.Errorf("%w: input %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	c := &inputConn{
		logger:  a.logger,
		filters: filters,
		pump:    dispatch.NewPump(onMessage, a.queueCap, a.logger),
		cookie:  nextInputCookie.Add(1),
	}
	inputRegistry.Store(c.cookie, c)

	var handle uintptr
	r, _, callErr := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&handle)),
		deviceID,
		inputCallbackPtr(),
		c.cookie,
		callbackFunction|midiIOStatus,
	)
	if r != 0 {
		inputRegistry.Delete(c.cookie)
		c.pump.Close()
		return nil, fmt.Errorf("%w: midiInOpen device %d: %v", contracts.ErrOpenFailed, deviceID, callErr)
	}
	c.handle = handle

	if filters.ReceiveSysEx {
		if err := c.queueSysexBuffers(); err != nil {
			c.teardown()
			return nil, fmt.Errorf("%w: %v", contracts.ErrOpenFailed, err)
		}
	}

	if r, _, callErr := procMidiInStart.Call(handle); r != 0 {
		c.teardown()
		return nil, fmt.Errorf("%w: midiInStart: %v", contracts.ErrOpenFailed, callErr)
	}

	a.logger.Debug("WinMM input opened", contracts.String("port", port.PortName))
	return c, nil
}

type inputConn struct {
	logger  contracts.Logger
	filters contracts.InputFilters
	pump    *dispatch.Pump
	cookie  uintptr
	handle  uintptr

	closing atomic.Bool
	bufMu   sync.Mutex
	buffers []*midiHdr
	backing [][]byte
	once    sync.Once
}

func (c *inputConn) queueSysexBuffers() error {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	for i := 0; i < sysexBufferCount; i++ {
		backing := make([]byte, sysexBufferSize)
		hdr := &midiHdr{
			lpData:         uintptr(unsafe.Pointer(&backing[0])),
			dwBufferLength: sysexBufferSize,
		}
		if r, _, err := procMidiInPrepareHdr.Call(c.handle, uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr)); r != 0 {
			return fmt.Errorf("midiInPrepareHeader: %v", err)
		}
		if r, _, err := procMidiInAddBuffer.Call(c.handle, uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr)); r != 0 {
			return fmt.Errorf("midiInAddBuffer: %v", err)
		}
		c.buffers = append(c.buffers, hdr)
		c.backing = append(c.backing, backing)
	}
	return nil
}

// requeueBuffer hands a drained SysEx buffer back to the driver, unless the
// connection is tearing down (midiInReset is about to return them all).
func (c *inputConn) requeueBuffer(hdr *midiHdr) {
	if c.closing.Load() {
		return
	}
	hdr.dwBytesRecorded = 0
	procMidiInAddBuffer.Call(c.handle, uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
}

// teardown follows the disposal order: unregister the callback target, stop
// the device so the driver quits invoking it, then release the handle.
func (c *inputConn) teardown() {
	c.closing.Store(true)
	inputRegistry.Delete(c.cookie)

	procMidiInStop.Call(c.handle)
	procMidiInReset.Call(c.handle)

	c.bufMu.Lock()
	for _, hdr := range c.buffers {
		procMidiInUnprepareHdr.Call(c.handle, uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
	}
	c.buffers = nil
	c.backing = nil
	c.bufMu.Unlock()

	procMidiInClose.Call(c.handle)
	c.pump.Close()
}

func (c *inputConn) Close() error {
	c.once.Do(c.teardown)
	return nil
}

// OpenOutput opens a WinMM output device.
func (a *Adapter) OpenOutput(port contracts.Port) (contracts.OutputConnection, error) {
	deviceID, ok := a.deviceIDByPort(port)
	if !ok {
		return nil, fmt.Errorf("%w: output %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	var handle uintptr
	r, _, callErr := procMidiOutOpen.Call(uintptr(unsafe.Pointer(&handle)), deviceID, 0, 0, 0)
	if r != 0 {
		return nil, fmt.Errorf("%w: midiOutOpen device %d: %v", contracts.ErrOpenFailed, deviceID, callErr)
	}
	a.logger.Debug("WinMM output opened", contracts.String("port", port.PortName))
	return &outputConn{handle: handle}, nil
}

type outputConn struct {
	mu     sync.Mutex
	handle uintptr
}

// Send transmits one MIDI message: short messages through midiOutShortMsg,
// SysEx and anything longer through a prepared buffer. Either path delivers
// the whole message to the driver or fails.
func (c *outputConn) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(data) <= 3 && data[0] != sysex.StatusSysExStart {
		var dw uintptr
		for i, b := range data {
			dw |= uintptr(b) << (8 * i)
		}
		if r, _, err := procMidiOutShortMsg.Call(c.handle, dw); r != 0 {
			return fmt.Errorf("%w: midiOutShortMsg: %v", contracts.ErrSendFailed, err)
		}
		return nil
	}

	hdr := midiHdr{
		lpData:          uintptr(unsafe.Pointer(&data[0])),
		dwBufferLength:  uint32(len(data)),
		dwBytesRecorded: uint32(len(data)),
	}
	if r, _, err := procMidiOutPrepareHdr.Call(c.handle, uintptr(unsafe.Pointer(&hdr)), unsafe.Sizeof(hdr)); r != 0 {
		return fmt.Errorf("%w: midiOutPrepareHeader: %v", contracts.ErrSendFailed, err)
	}
	defer procMidiOutUnprepareHdr.Call(c.handle, uintptr(unsafe.Pointer(&hdr)), unsafe.Sizeof(hdr))

	if r, _, err := procMidiOutLongMsg.Call(c.handle, uintptr(unsafe.Pointer(&hdr)), unsafe.Sizeof(hdr)); r != 0 {
		return fmt.Errorf("%w: midiOutLongMsg: %v", contracts.ErrSendFailed, err)
	}

	// The driver owns the buffer until it flags completion.
	deadline := time.Now().Add(time.Second)
	for hdr.dwFlags&mhdrDone == 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: long message completion timed out", contracts.ErrSendFailed)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (c *outputConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == 0 {
		return nil
	}
	procMidiOutReset.Call(c.handle)
	procMidiOutClose.Call(c.handle)
	c.handle = 0
	return nil
}

// SetHotplugNotify registers or unregisters the PnP device-interface
// notification.
func (a *Adapter) SetHotplugNotify(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.notification != nil {
		a.notification.unregister()
		a.notification = nil
	}
	if fn == nil {
		return
	}

	n, err := registerDeviceNotification(a, fn)
	if err != nil {
		a.logger.Error("failed to register device notification", contracts.Err(err))
		return
	}
	a.notification = n
}

// Close unregisters the hotplug notification. Individual connections hold
// their own WinMM handles and are closed by their owners.
func (a *Adapter) Close() error {
	a.SetHotplugNotify(nil)
	return nil
}

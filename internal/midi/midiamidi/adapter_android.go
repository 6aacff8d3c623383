//go:build android && cgo

package midiamidi

/*
#include <amidi/AMidi.h>
#include <jni.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/bandapps/libremidi/internal/dispatch"
	"github.com/bandapps/libremidi/internal/midistream"
	"github.com/bandapps/libremidi/internal/sysex"
	"github.com/bandapps/libremidi/sdk/contracts"
)

const receivePollInterval = time.Millisecond

// Adapter is the Android AMidi transport adapter.
type Adapter struct {
	logger   contracts.Logger
	vm       *C.JavaVM
	provider DeviceProvider
	queueCap int
}

// NewAdapter returns the AMidi adapter. RegisterJavaVM and RegisterProvider
// must have run first.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	vm, provider, err := platformState()
	if err != nil {
		return nil, err
	}
	options.Logger.Info("AMidi adapter created")
	return &Adapter{
		logger:   options.Logger,
		vm:       vm,
		provider: provider,
		queueCap: options.QueueCapacity,
	}, nil
}

func deviceTransport(deviceType int32) (contracts.TransportType, bool) {
	switch deviceType {
	case deviceTypeUSB:
		return contracts.TransportHardware | contracts.TransportUSB, false
	case deviceTypeVirtual:
		return contracts.TransportSoftware, true
	case deviceTypeBluetooth:
		return contracts.TransportHardware | contracts.TransportBluetooth, false
	default:
		return contracts.TransportHardware, false
	}
}

// portID packs the device ID and port index into the platform port ID.
func portID(deviceID, index int32) uint64 {
	return uint64(uint32(deviceID))<<16 | uint64(uint32(index))&0xFFFF
}

func portAddress(id uint64) (deviceID, index int32) {
	return int32(id >> 16), int32(id & 0xFFFF)
}

func (a *Adapter) devicePort(d DeviceDescriptor, index int32, dir contracts.Direction) contracts.Port {
	transport, virtual := deviceTransport(d.Type)
	name := d.Name
	if name == "" {
		name = d.Product
	}
	return contracts.Port{
		DisplayName:    fmt.Sprintf("%s Port %d", name, index+1),
		PortName:       fmt.Sprintf("%s Port %d", name, index+1),
		DeviceName:     name,
		Manufacturer:   d.Manufacturer,
		Product:        d.Product,
		Serial:         d.Serial,
		PlatformPortID: portID(d.DeviceID, index),
		ClientHandle:   uint64(uint32(d.DeviceID)),
		Transport:      transport,
		Direction:      dir,
		Virtual:        virtual,
	}
}

// Enumerate lists the ports of every attached device. A device output port
// is a source this process receives from, so it enumerates as an input, and
// vice versa.
func (a *Adapter) Enumerate() (inputs, outputs []contracts.Port, err error) {
	devices, err := a.provider.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("listing MIDI devices: %w", err)
	}
	for _, d := range devices {
		for i := int32(0); i < d.OutputPortCount; i++ {
			inputs = append(inputs, a.devicePort(d, i, contracts.DirectionInput))
		}
		for i := int32(0); i < d.InputPortCount; i++ {
			outputs = append(outputs, a.devicePort(d, i, contracts.DirectionOutput))
		}
	}
	return inputs, outputs, nil
}

// resolveAddress maps a port identity onto the current device set.
func (a *Adapter) resolveAddress(port contracts.Port) (deviceID, index int32, ok bool) {
	inputs, outputs, err := a.Enumerate()
	if err != nil {
		return 0, 0, false
	}
	live := inputs
	if port.Direction == contracts.DirectionOutput {
		live = outputs
	}
	for _, c := range live {
		if c.IdentityKey() == port.IdentityKey() {
			deviceID, index = portAddress(c.PlatformPortID)
			return deviceID, index, true
		}
	}
	return 0, 0, false
}

// openNativeDevice opens the Java device and converts it for NDK use.
func (a *Adapter) openNativeDevice(deviceID int32) (*C.AMidiDevice, unsafe.Pointer, error) {
	handle, err := a.provider.OpenDevice(deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening device %d: %v", contracts.ErrOpenFailed, deviceID, err)
	}

	env, release, err := attachEnv(a.vm)
	if err != nil {
		a.provider.CloseDevice(handle)
		return nil, nil, err
	}
	defer release()

	var device *C.AMidiDevice
	if status := C.AMidiDevice_fromJava(env, C.jobject(handle), &device); status != C.AMEDIA_OK {
		a.provider.CloseDevice(handle)
		return nil, nil, fmt.Errorf("%w: AMidiDevice_fromJava: status %d", contracts.ErrOpenFailed, int(status))
	}
	return device, handle, nil
}

// OpenInput opens the device output port behind the given port identity and
// starts the receive goroutine.
func (a *Adapter) OpenInput(port contracts.Port, onMessage contracts.MessageFunc, filters contracts.InputFilters) (contracts.InputConnection, error) {
	deviceID, index, ok := a.resolveAddress(port)
	if !ok {
		return nil, fmt.Errorf("%w: input %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	device, handle, err := a.openNativeDevice(deviceID)
	if err != nil {
		return nil, err
	}

	var outPort *C.AMidiOutputPort
	if status := C.AMidiOutputPort_open(device, C.int32_t(index), &outPort); status != C.AMEDIA_OK {
		a.releaseDevice(device, handle)
		return nil, fmt.Errorf("%w: AMidiOutputPort_open: status %d", contracts.ErrOpenFailed, int(status))
	}

	pump := dispatch.NewPump(onMessage, a.queueCap, a.logger)
	c := &inputConn{
		adapter: a,
		device:  device,
		handle:  handle,
		port:    outPort,
		pump:    pump,
		filters: filters,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.receive()

	a.logger.Debug("AMidi input opened",
		contracts.String("port", port.PortName), contracts.Int("index", int(index)))
	return c, nil
}

type inputConn struct {
	adapter *Adapter
	device  *C.AMidiDevice
	handle  unsafe.Pointer
	port    *C.AMidiOutputPort
	pump    *dispatch.Pump
	filters contracts.InputFilters
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// receive polls the AMidi port. AMidi hands out raw stream fragments, so
// messages are reassembled before delivery.
func (c *inputConn) receive() {
	defer close(c.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var lastTimestamp int64
	parser := midistream.New(func(msg []byte) {
		if sysex.Allowed(msg, c.filters) {
			c.pump.Submit(msg, lastTimestamp)
		}
	})

	buf := make([]byte, 1024)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		var (
			opcode    C.int32_t
			numBytes  C.size_t
			timestamp C.int64_t
		)
		n := C.AMidiOutputPort_receive(c.port, &opcode,
			(*C.uint8_t)(unsafe.Pointer(&buf[0])), C.size_t(len(buf)),
			&numBytes, &timestamp)
		if n < 0 {
			return
		}
		if n == 0 || opcode != C.AMIDI_OPCODE_DATA || numBytes == 0 {
			time.Sleep(receivePollInterval)
			continue
		}

		// AMidi timestamps are nanoseconds.
		lastTimestamp = int64(timestamp) / 1000
		if lastTimestamp == 0 {
			lastTimestamp = time.Now().UnixMicro()
		}
		parser.Feed(buf[:numBytes])
	}
}

func (c *inputConn) Close() error {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		C.AMidiOutputPort_close(c.port)
		c.adapter.releaseDevice(c.device, c.handle)
		c.pump.Close()
	})
	return nil
}

// OpenOutput opens the device input port behind the given port identity.
func (a *Adapter) OpenOutput(port contracts.Port) (contracts.OutputConnection, error) {
	deviceID, index, ok := a.resolveAddress(port)
	if !ok {
		return nil, fmt.Errorf("%w: output %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	device, handle, err := a.openNativeDevice(deviceID)
	if err != nil {
		return nil, err
	}

	var inPort *C.AMidiInputPort
	if status := C.AMidiInputPort_open(device, C.int32_t(index), &inPort); status != C.AMEDIA_OK {
		a.releaseDevice(device, handle)
		return nil, fmt.Errorf("%w: AMidiInputPort_open: status %d", contracts.ErrOpenFailed, int(status))
	}

	a.logger.Debug("AMidi output opened",
		contracts.String("port", port.PortName), contracts.Int("index", int(index)))
	return &outputConn{adapter: a, device: device, handle: handle, port: inPort}, nil
}

type outputConn struct {
	adapter *Adapter
	device  *C.AMidiDevice
	handle  unsafe.Pointer
	mu      sync.Mutex
	port    *C.AMidiInputPort
}

// Send transmits the whole message or fails.
func (c *outputConn) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return fmt.Errorf("%w: output closed", contracts.ErrSendFailed)
	}

	n := C.AMidiInputPort_send(c.port, (*C.uint8_t)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
	if n < 0 {
		return fmt.Errorf("%w: AMidiInputPort_send: status %d", contracts.ErrSendFailed, int(n))
	}
	if int(n) != len(data) {
		return fmt.Errorf("%w: short send: %d of %d bytes", contracts.ErrSendFailed, int(n), len(data))
	}
	return nil
}

func (c *outputConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	C.AMidiInputPort_close(c.port)
	c.port = nil
	c.adapter.releaseDevice(c.device, c.handle)
	return nil
}

// releaseDevice tears down the NDK device and lets the Java side close its
// MidiDevice.
func (a *Adapter) releaseDevice(device *C.AMidiDevice, handle unsafe.Pointer) {
	C.AMidiDevice_release(device)
	a.provider.CloseDevice(handle)
}

// SetHotplugNotify forwards to the host's MidiManager DeviceCallback
// registration.
func (a *Adapter) SetHotplugNotify(fn func()) {
	a.provider.SetDeviceCallback(fn)
}

// Close unregisters the device callback. Open connections hold their own
// device references and are closed by their owners.
func (a *Adapter) Close() error {
	a.provider.SetDeviceCallback(nil)
	return nil
}

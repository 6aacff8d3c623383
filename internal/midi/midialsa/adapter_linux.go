//go:build linux && !android && cgo

// Package midialsa implements the transport adapter on Linux via the ALSA
// RawMidi interface.
package midialsa

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <errno.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/bandapps/libremidi/internal/dispatch"
	"github.com/bandapps/libremidi/internal/midistream"
	"github.com/bandapps/libremidi/internal/sysex"
	"github.com/bandapps/libremidi/sdk/contracts"
)

const readPollInterval = 5 * time.Millisecond

// Adapter is the ALSA RawMidi transport adapter.
type Adapter struct {
	logger   contracts.Logger
	queueCap int

	mu      sync.Mutex
	watcher *sndWatcher
}

// NewAdapter returns the ALSA adapter. RawMidi needs no client handle; the
// adapter is ready immediately.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	options.Logger.Info("ALSA RawMidi adapter created")
	return &Adapter{
		logger:   options.Logger,
		queueCap: options.QueueCapacity,
	}, nil
}

// subdeviceID packs the card, device, and subdevice numbers into the
// platform port ID. ALSA addresses are stable for the lifetime of the
// device connection.
func subdeviceID(card, device, sub int) uint64 {
	return uint64(card)<<32 | uint64(device)<<16 | uint64(sub)
}

func subdeviceAddress(id uint64) (card, device, sub int) {
	return int(id >> 32), int(id >> 16 & 0xFFFF), int(id & 0xFFFF)
}

// Enumerate walks the sound cards and lists every RawMidi subdevice in both
// directions.
func (a *Adapter) Enumerate() (inputs, outputs []contracts.Port, err error) {
	card := C.int(-1)
	for {
		if C.snd_card_next(&card) < 0 || card < 0 {
			break
		}

		hw := C.CString(fmt.Sprintf("hw:%d", int(card)))
		var ctl *C.snd_ctl_t
		if C.snd_ctl_open(&ctl, hw, 0) < 0 {
			C.free(unsafe.Pointer(hw))
			continue
		}

		var cardInfo *C.snd_ctl_card_info_t
		C.snd_ctl_card_info_malloc(&cardInfo)
		cardName := ""
		components := ""
		if C.snd_ctl_card_info(ctl, cardInfo) >= 0 {
			cardName = C.GoString(C.snd_ctl_card_info_get_name(cardInfo))
			components = C.GoString(C.snd_ctl_card_info_get_components(cardInfo))
		}

		transport := contracts.TransportHardware
		if strings.Contains(components, "USB") {
			transport |= contracts.TransportUSB
		}

		device := C.int(-1)
		for {
			if C.snd_ctl_rawmidi_next_device(ctl, &device) < 0 || device < 0 {
				break
			}
			inputs = append(inputs, a.devicePorts(ctl, int(card), int(device),
				cardName, transport, contracts.DirectionInput)...)
			outputs = append(outputs, a.devicePorts(ctl, int(card), int(device),
				cardName, transport, contracts.DirectionOutput)...)
		}

		C.snd_ctl_card_info_free(cardInfo)
		C.snd_ctl_close(ctl)
		C.free(unsafe.Pointer(hw))
	}
	return inputs, outputs, nil
}

func (a *Adapter) devicePorts(ctl *C.snd_ctl_t, card, device int, cardName string, transport contracts.TransportType, dir contracts.Direction) []contracts.Port {
	var info *C.snd_rawmidi_info_t
	C.snd_rawmidi_info_malloc(&info)
	defer C.snd_rawmidi_info_free(info)

	var stream C.snd_rawmidi_stream_t = C.SND_RAWMIDI_STREAM_INPUT
	if dir == contracts.DirectionOutput {
		stream = C.SND_RAWMIDI_STREAM_OUTPUT
	}
	C.snd_rawmidi_info_set_device(info, C.uint(device))
	C.snd_rawmidi_info_set_stream(info, stream)
	C.snd_rawmidi_info_set_subdevice(info, 0)
	if C.snd_ctl_rawmidi_info(ctl, info) < 0 {
		return nil
	}

	rawName := C.GoString(C.snd_rawmidi_info_get_name(info))
	subs := int(C.snd_rawmidi_info_get_subdevices_count(info))
	if subs < 1 {
		subs = 1
	}

	ports := make([]contracts.Port, 0, subs)
	for sub := 0; sub < subs; sub++ {
		C.snd_rawmidi_info_set_subdevice(info, C.uint(sub))
		if C.snd_ctl_rawmidi_info(ctl, info) < 0 {
			continue
		}
		portName := C.GoString(C.snd_rawmidi_info_get_subdevice_name(info))
		if portName == "" {
			portName = fmt.Sprintf("%s %d", rawName, sub)
		}
		ports = append(ports, contracts.Port{
			DisplayName:    fmt.Sprintf("%s: %s", cardName, portName),
			PortName:       portName,
			DeviceName:     cardName,
			Product:        rawName,
			PlatformPortID: subdeviceID(card, device, sub),
			ClientHandle:   uint64(card),
			Transport:      transport,
			Direction:      dir,
		})
	}
	return ports
}

// resolveAddress maps a port identity onto its current ALSA address.
func (a *Adapter) resolveAddress(port contracts.Port) (string, bool) {
	inputs, outputs, err := a.Enumerate()
	if err != nil {
		return "", false
	}
	live := inputs
	if port.Direction == contracts.DirectionOutput {
		live = outputs
	}
	for _, c := range live {
		if c.IdentityKey() == port.IdentityKey() {
			card, device, sub := subdeviceAddress(c.PlatformPortID)
			return fmt.Sprintf("hw:%d,%d,%d", card, device, sub), true
		}
	}
	return "", false
}

// OpenInput opens the RawMidi subdevice for reading and starts the reader
// goroutine. The raw stream is reassembled into messages before delivery.
func (a *Adapter) OpenInput(port contracts.Port, onMessage contracts.MessageFunc, filters contracts.InputFilters) (contracts.InputConnection, error) {
	addr, ok := a.resolveAddress(port)
	if !ok {
		return nil, fmt.Errorf("%w: input %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	caddr := C.CString(addr)
	defer C.free(unsafe.Pointer(caddr))

	var in *C.snd_rawmidi_t
	if rc := C.snd_rawmidi_open(&in, nil, caddr, C.SND_RAWMIDI_NONBLOCK); rc < 0 {
		return nil, fmt.Errorf("%w: snd_rawmidi_open %s: %s",
			contracts.ErrOpenFailed, addr, C.GoString(C.snd_strerror(rc)))
	}

	pump := dispatch.NewPump(onMessage, a.queueCap, a.logger)
	c := &inputConn{
		handle: in,
		pump:   pump,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.parser = midistream.New(func(msg []byte) {
		if sysex.Allowed(msg, filters) {
			pump.Submit(msg, time.Now().UnixMicro())
		}
	})
	go c.read()

	a.logger.Debug("ALSA input opened", contracts.String("address", addr))
	return c, nil
}

type inputConn struct {
	handle *C.snd_rawmidi_t
	pump   *dispatch.Pump
	parser *midistream.Parser
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// read polls the nonblocking descriptor. Nonblocking mode keeps Close from
// racing a thread parked inside a blocking snd_rawmidi_read.
func (c *inputConn) read() {
	defer close(c.done)
	var buf [256]byte
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		n := C.snd_rawmidi_read(c.handle, unsafe.Pointer(&buf[0]), C.size_t(len(buf)))
		if n > 0 {
			c.parser.Feed(buf[:n])
			continue
		}
		// -EAGAIN means no data; anything else is a dead descriptor.
		if n != -C.EAGAIN && n < 0 {
			return
		}
		time.Sleep(readPollInterval)
	}
}

func (c *inputConn) Close() error {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		C.snd_rawmidi_close(c.handle)
		c.pump.Close()
	})
	return nil
}

// OpenOutput opens the RawMidi subdevice for writing.
func (a *Adapter) OpenOutput(port contracts.Port) (contracts.OutputConnection, error) {
	addr, ok := a.resolveAddress(port)
	if !ok {
		return nil, fmt.Errorf("%w: output %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	caddr := C.CString(addr)
	defer C.free(unsafe.Pointer(caddr))

	var out *C.snd_rawmidi_t
	if rc := C.snd_rawmidi_open(nil, &out, caddr, 0); rc < 0 {
		return nil, fmt.Errorf("%w: snd_rawmidi_open %s: %s",
			contracts.ErrOpenFailed, addr, C.GoString(C.snd_strerror(rc)))
	}

	a.logger.Debug("ALSA output opened", contracts.String("address", addr))
	return &outputConn{handle: out}, nil
}

type outputConn struct {
	mu     sync.Mutex
	handle *C.snd_rawmidi_t
}

// Send writes the whole message and drains so it reaches the device before
// returning.
func (c *outputConn) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return fmt.Errorf("%w: output closed", contracts.ErrSendFailed)
	}

	n := C.snd_rawmidi_write(c.handle, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	if n < 0 {
		return fmt.Errorf("%w: snd_rawmidi_write: %s",
			contracts.ErrSendFailed, C.GoString(C.snd_strerror(C.int(n))))
	}
	if int(n) != len(data) {
		return fmt.Errorf("%w: short write: %d of %d bytes",
			contracts.ErrSendFailed, int(n), len(data))
	}
	C.snd_rawmidi_drain(c.handle)
	return nil
}

func (c *outputConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		C.snd_rawmidi_close(c.handle)
		c.handle = nil
	}
	return nil
}

// SetHotplugNotify starts or stops the /dev/snd watcher.
func (a *Adapter) SetHotplugNotify(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.watcher != nil {
		a.watcher.stop()
		a.watcher = nil
	}
	if fn == nil {
		return
	}

	w, err := newSndWatcher(a, fn, a.logger)
	if err != nil {
		a.logger.Error("failed to watch /dev/snd", contracts.Err(err))
		return
	}
	a.watcher = w
}

// Close stops the watcher. Open connections hold their own RawMidi handles
// and are closed by their owners.
func (a *Adapter) Close() error {
	a.SetHotplugNotify(nil)
	return nil
}

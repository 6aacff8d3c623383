// Package midiloopback implements an in-process loopback transport: every
// virtual port is simultaneously an input and an output, and bytes sent to
// the output side are delivered to every open input on the same port. It is
// compiled on all platforms and backs the tests and the explicit
// "loopback" transport selection.
package midiloopback

import (
	"fmt"
	"sync"
	"time"

	"github.com/bandapps/libremidi/internal/dispatch"
	"github.com/bandapps/libremidi/internal/sysex"
	"github.com/bandapps/libremidi/sdk/contracts"
)

// PortSpec describes one virtual loopback port.
type PortSpec struct {
	Name         string
	Manufacturer string
	Product      string
	Serial       string
}

// Adapter is the loopback transport. Ports are added and removed at runtime;
// both operations fire the hotplug notify signal, which makes the adapter a
// faithful stand-in for a native hotplug bridge.
type Adapter struct {
	logger   contracts.Logger
	queueCap int

	mu     sync.Mutex
	ports  map[string]*loopPort
	order  []string
	notify func()
	nextID uint64
	closed bool
}

type loopPort struct {
	spec  PortSpec
	inID  uint64
	outID uint64

	mu   sync.Mutex
	subs map[*inputConn]struct{}
}

// NewAdapter creates an empty loopback transport. queueCapacity bounds each
// input's hand-off queue; <= 0 selects the dispatch default.
func NewAdapter(logger contracts.Logger, queueCapacity int) *Adapter {
	return &Adapter{
		logger:   logger,
		queueCap: queueCapacity,
		ports:    make(map[string]*loopPort),
		nextID:   1,
	}
}

// AddPort creates a virtual port and announces the change.
func (a *Adapter) AddPort(spec PortSpec) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return contracts.ErrDisposed
	}
	if _, exists := a.ports[spec.Name]; exists {
		a.mu.Unlock()
		return fmt.Errorf("%w: port %q already exists", contracts.ErrInvalidArgument, spec.Name)
	}
	p := &loopPort{
		spec:  spec,
		inID:  a.nextID,
		outID: a.nextID + 1,
		subs:  make(map[*inputConn]struct{}),
	}
	a.nextID += 2
	a.ports[spec.Name] = p
	a.order = append(a.order, spec.Name)
	notify := a.notify
	a.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// RemovePort deletes a virtual port, closes its open inputs and announces
// the change.
func (a *Adapter) RemovePort(name string) error {
	a.mu.Lock()
	p, ok := a.ports[name]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: port %q", contracts.ErrNotFound, name)
	}
	delete(a.ports, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	notify := a.notify
	a.mu.Unlock()

	p.mu.Lock()
	subs := make([]*inputConn, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.subs = make(map[*inputConn]struct{})
	p.mu.Unlock()
	for _, s := range subs {
		s.pump.Close()
	}

	if notify != nil {
		notify()
	}
	return nil
}

func (p *loopPort) asPort(dir contracts.Direction) contracts.Port {
	id := p.inID
	if dir == contracts.DirectionOutput {
		id = p.outID
	}
	return contracts.Port{
		PlatformPortID: id,
		DisplayName:    p.spec.Name,
		PortName:       p.spec.Name,
		DeviceName:     "Loopback",
		Manufacturer:   p.spec.Manufacturer,
		Product:        p.spec.Product,
		Serial:         p.spec.Serial,
		Transport:      contracts.TransportSoftware | contracts.TransportLoopback,
		Direction:      dir,
		Virtual:        true,
	}
}

// Enumerate lists every virtual port on both directions, in creation order.
func (a *Adapter) Enumerate() (inputs, outputs []contracts.Port, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, nil, contracts.ErrDisposed
	}
	for _, name := range a.order {
		p := a.ports[name]
		inputs = append(inputs, p.asPort(contracts.DirectionInput))
		outputs = append(outputs, p.asPort(contracts.DirectionOutput))
	}
	return inputs, outputs, nil
}

// OpenInput subscribes a message callback to the named port.
func (a *Adapter) OpenInput(port contracts.Port, onMessage contracts.MessageFunc, filters contracts.InputFilters) (contracts.InputConnection, error) {
	a.mu.Lock()
	p, ok := a.ports[port.PortName]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: loopback port %q vanished", contracts.ErrOpenFailed, port.PortName)
	}

	conn := &inputConn{
		port:    p,
		filters: filters,
		pump:    dispatch.NewPump(onMessage, a.queueCap, a.logger),
	}
	p.mu.Lock()
	p.subs[conn] = struct{}{}
	p.mu.Unlock()
	return conn, nil
}

// OpenOutput opens the sending side of the named port.
func (a *Adapter) OpenOutput(port contracts.Port) (contracts.OutputConnection, error) {
	a.mu.Lock()
	_, ok := a.ports[port.PortName]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: loopback port %q vanished", contracts.ErrOpenFailed, port.PortName)
	}
	return &outputConn{adapter: a, name: port.PortName}, nil
}

// SetHotplugNotify installs or clears the device-change signal.
func (a *Adapter) SetHotplugNotify(fn func()) {
	a.mu.Lock()
	a.notify = fn
	a.mu.Unlock()
}

// Close tears the transport down. Open inputs stop delivering.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.notify = nil
	ports := make([]*loopPort, 0, len(a.ports))
	for _, p := range a.ports {
		ports = append(ports, p)
	}
	a.ports = make(map[string]*loopPort)
	a.order = nil
	a.mu.Unlock()

	for _, p := range ports {
		p.mu.Lock()
		subs := make([]*inputConn, 0, len(p.subs))
		for s := range p.subs {
			subs = append(subs, s)
		}
		p.subs = make(map[*inputConn]struct{})
		p.mu.Unlock()
		for _, s := range subs {
			s.pump.Close()
		}
	}
	return nil
}

type inputConn struct {
	port    *loopPort
	filters contracts.InputFilters
	pump    *dispatch.Pump
	once    sync.Once
}

func (c *inputConn) Close() error {
	c.once.Do(func() {
		c.port.mu.Lock()
		delete(c.port.subs, c)
		c.port.mu.Unlock()
		c.pump.Close()
	})
	return nil
}

type outputConn struct {
	adapter *Adapter
	name    string
}

// Send delivers the bytes to every open input on the same port. The whole
// message is delivered or the call fails; an empty message is a no-op.
func (c *outputConn) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	c.adapter.mu.Lock()
	p, ok := c.adapter.ports[c.name]
	c.adapter.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: loopback port %q vanished", contracts.ErrSendFailed, c.name)
	}

	ts := time.Now().UnixMicro()
	p.mu.Lock()
	subs := make([]*inputConn, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		if sysex.Allowed(data, s.filters) {
			s.pump.Submit(data, ts)
		}
	}
	return nil
}

func (c *outputConn) Close() error {
	return nil
}

// Package midi is the consumer entry point of the transport core: it builds
// Observers over the platform transport adapter and mediates port
// enumeration, connection opening, and hotplug delivery.
package midi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/bandapps/libremidi/internal/registry"
	"github.com/bandapps/libremidi/sdk/contracts"
)

// NewObserver creates an Observer with the specified options. The platform
// transport adapter is selected by the build target unless WithTransport
// overrides it. Construction either returns a fully initialized Observer or
// an error; never a partially initialized object.
func NewObserver(opts ...contracts.Option) (contracts.Observer, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	adapter, err := newAdapter(&options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrInitFailed, err)
	}

	return newObserver(&options, adapter)
}

// hotplugSlot is the process-wide hotplug registration. Several native
// notification channels are process-global singletons, so at most one
// hotplug-enabled Observer may exist per process; the slot makes that
// constraint explicit instead of letting a later registration silently
// supersede an earlier one.
var hotplugSlot struct {
	mu    sync.Mutex
	owner *observer
}

func acquireHotplugSlot(o *observer) bool {
	hotplugSlot.mu.Lock()
	defer hotplugSlot.mu.Unlock()
	if hotplugSlot.owner != nil {
		return false
	}
	hotplugSlot.owner = o
	return true
}

func releaseHotplugSlot(o *observer) {
	hotplugSlot.mu.Lock()
	defer hotplugSlot.mu.Unlock()
	if hotplugSlot.owner == o {
		hotplugSlot.owner = nil
	}
}

func ownsHotplugSlot(o *observer) bool {
	hotplugSlot.mu.Lock()
	defer hotplugSlot.mu.Unlock()
	return hotplugSlot.owner == o
}

// observer owns one transport adapter, the current port snapshot, and the
// optional hotplug wiring.
type observer struct {
	logger   contracts.Logger
	adapter  contracts.TransportAdapter
	hotplug  bool
	queueCap int

	mu        sync.Mutex
	snap      registry.Snapshot
	onHotplug contracts.HotplugFunc
	children  map[interface{ Close() error }]struct{}

	disposed atomic.Bool
}

func newObserver(options *contracts.ObserverOptions, adapter contracts.TransportAdapter) (contracts.Observer, error) {
	o := &observer{
		logger:    options.Logger,
		adapter:   adapter,
		hotplug:   options.Hotplug,
		queueCap:  options.QueueCapacity,
		onHotplug: options.OnHotplug,
		children:  make(map[interface{ Close() error }]struct{}),
	}

	if o.hotplug {
		if !acquireHotplugSlot(o) {
			_ = adapter.Close()
			return nil, fmt.Errorf(
				"%w: another hotplug-enabled observer is already registered in this process",
				contracts.ErrInitFailed)
		}
		adapter.SetHotplugNotify(o.onNativeChange)
	}

	if err := o.Refresh(); err != nil {
		if o.hotplug {
			adapter.SetHotplugNotify(nil)
			releaseHotplugSlot(o)
		}
		_ = adapter.Close()
		return nil, fmt.Errorf("%w: initial enumeration: %v", contracts.ErrInitFailed, err)
	}

	o.logger.Info("observer created",
		contracts.Bool("hotplug", o.hotplug),
		contracts.Int("inputs", len(o.snap.Inputs)),
		contracts.Int("outputs", len(o.snap.Outputs)))
	return o, nil
}

// InputPorts returns a copy of the current snapshot's input ports, or nil
// once the Observer is disposed.
func (o *observer) InputPorts() []contracts.Port {
	if o.disposed.Load() {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	ports := make([]contracts.Port, len(o.snap.Inputs))
	copy(ports, o.snap.Inputs)
	return ports
}

// OutputPorts returns a copy of the current snapshot's output ports, or nil
// once the Observer is disposed.
func (o *observer) OutputPorts() []contracts.Port {
	if o.disposed.Load() {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	ports := make([]contracts.Port, len(o.snap.Outputs))
	copy(ports, o.snap.Outputs)
	return ports
}

// Refresh re-enumerates both directions and replaces the snapshot wholesale.
func (o *observer) Refresh() error {
	if o.disposed.Load() {
		return contracts.ErrDisposed
	}
	inputs, outputs, err := o.adapter.Enumerate()
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.snap = registry.Build(inputs, outputs)
	o.mu.Unlock()
	return nil
}

// onNativeChange runs on the OS notification thread when the device set
// changed. It refreshes the snapshot, diffs against the previous one, and
// emits one event per appeared or vanished port. Events for an observer that
// no longer holds the registration slot are discarded: a notification can
// fire after teardown has begun but before the OS processed the unregister.
func (o *observer) onNativeChange() {
	if o.disposed.Load() || !ownsHotplugSlot(o) {
		return
	}

	inputs, outputs, err := o.adapter.Enumerate()
	if err != nil {
		o.logger.Warn("hotplug re-enumeration failed", contracts.Err(err))
		return
	}

	o.mu.Lock()
	prev := o.snap
	next := registry.Build(inputs, outputs)
	o.snap = next
	sink := o.onHotplug
	o.mu.Unlock()

	if o.disposed.Load() || sink == nil {
		return
	}
	for _, event := range registry.Events(prev, next) {
		o.logger.Debug("hotplug event", contracts.String("event", event.String()))
		sink(event)
	}
}

// resolve maps a caller-supplied Port value onto the adapter's live port
// set. The identity tuple is the unit of truth; a bare index captured from
// an older snapshot is never trusted. Anonymous ports (empty product and
// serial) fall back to the platform port ID.
func resolve(live []contracts.Port, want contracts.Port) (contracts.Port, bool) {
	key := want.IdentityKey()
	for _, c := range live {
		if c.IdentityKey() == key && c.PlatformPortID == want.PlatformPortID {
			return c, true
		}
	}
	for _, c := range live {
		if c.IdentityKey() == key {
			return c, true
		}
	}
	if want.Product == "" && want.Serial == "" {
		for _, c := range live {
			if c.PlatformPortID == want.PlatformPortID {
				return c, true
			}
		}
	}
	return contracts.Port{}, false
}

// OpenInput opens the given port for receiving.
func (o *observer) OpenInput(port contracts.Port, onMessage contracts.MessageFunc, filters contracts.InputFilters) (contracts.Input, error) {
	if o.disposed.Load() {
		return nil, contracts.ErrDisposed
	}
	if onMessage == nil {
		return nil, fmt.Errorf("%w: nil message callback", contracts.ErrInvalidArgument)
	}
	if port.Direction != contracts.DirectionInput {
		return nil, fmt.Errorf("%w: port %q is not an input", contracts.ErrInvalidArgument, port.PortName)
	}

	live, _, err := o.adapter.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrOpenFailed, err)
	}
	target, ok := resolve(live, port)
	if !ok {
		return nil, fmt.Errorf("%w: input %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	conn, err := o.adapter.OpenInput(target, onMessage, filters)
	if err != nil {
		return nil, err
	}

	in := &input{observer: o, port: port, conn: conn}
	o.adopt(in)
	o.logger.Info("input opened", contracts.String("port", port.PortName))
	return in, nil
}

// OpenOutput opens the given port for sending.
func (o *observer) OpenOutput(port contracts.Port) (contracts.Output, error) {
	if o.disposed.Load() {
		return nil, contracts.ErrDisposed
	}
	if port.Direction != contracts.DirectionOutput {
		return nil, fmt.Errorf("%w: port %q is not an output", contracts.ErrInvalidArgument, port.PortName)
	}

	_, live, err := o.adapter.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrOpenFailed, err)
	}
	target, ok := resolve(live, port)
	if !ok {
		return nil, fmt.Errorf("%w: output %q no longer present", contracts.ErrOpenFailed, port.PortName)
	}

	conn, err := o.adapter.OpenOutput(target)
	if err != nil {
		return nil, err
	}

	out := &output{observer: o, port: port, conn: conn}
	o.adopt(out)
	o.logger.Info("output opened", contracts.String("port", port.PortName))
	return out, nil
}

func (o *observer) adopt(child interface{ Close() error }) {
	o.mu.Lock()
	o.children[child] = struct{}{}
	o.mu.Unlock()
}

func (o *observer) forget(child interface{ Close() error }) {
	o.mu.Lock()
	delete(o.children, child)
	o.mu.Unlock()
}

// Dispose tears the Observer down in the mandatory order: mark disposed so
// new calls are rejected, drop the consumer event sink, unregister the
// native hotplug listener, close remaining connections, and release the
// native client last.
func (o *observer) Dispose() error {
	if o.disposed.Swap(true) {
		return contracts.ErrDisposed
	}

	o.mu.Lock()
	o.onHotplug = nil
	children := make([]interface{ Close() error }, 0, len(o.children))
	for c := range o.children {
		children = append(children, c)
	}
	o.children = make(map[interface{ Close() error }]struct{})
	o.mu.Unlock()

	if o.hotplug {
		o.adapter.SetHotplugNotify(nil)
		releaseHotplugSlot(o)
	}

	var err error
	for _, c := range children {
		err = multierr.Append(err, c.Close())
	}
	err = multierr.Append(err, o.adapter.Close())

	o.logger.Info("observer disposed")
	return err
}

// input binds one open receive connection to the Port value it was opened
// against. The disposed flag enforces single-close above the adapter, whose
// native close is not guaranteed idempotent.
type input struct {
	observer *observer
	port     contracts.Port
	conn     contracts.InputConnection
	disposed atomic.Bool
}

func (i *input) Port() contracts.Port { return i.port }

func (i *input) IsConnected() bool { return !i.disposed.Load() }

func (i *input) Close() error {
	if i.disposed.Swap(true) {
		return contracts.ErrDisposed
	}
	i.observer.forget(i)
	return i.conn.Close()
}

// output binds one open send connection to its Port value.
type output struct {
	observer *observer
	port     contracts.Port
	conn     contracts.OutputConnection
	disposed atomic.Bool
}

func (o *output) Port() contracts.Port { return o.port }

func (o *output) IsConnected() bool { return !o.disposed.Load() }

func (o *output) Send(data []byte) error {
	if o.disposed.Load() {
		return contracts.ErrDisposed
	}
	if len(data) == 0 {
		return nil
	}
	return o.conn.Send(data)
}

func (o *output) Close() error {
	if o.disposed.Swap(true) {
		return contracts.ErrDisposed
	}
	o.observer.forget(o)
	return o.conn.Close()
}

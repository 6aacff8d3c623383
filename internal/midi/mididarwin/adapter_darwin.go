//go:build darwin

// Package mididarwin implements the transport adapter on macOS via CoreMIDI.
package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/youpy/go-coremidi"

	"github.com/bandapps/libremidi/internal/dispatch"
	"github.com/bandapps/libremidi/internal/sysex"
	"github.com/bandapps/libremidi/sdk/contracts"
)

var (
	errCreateClient    = errors.New("error creating CoreMIDI client")
	errCreateInputPort = errors.New("error creating input port")
	errConnect         = errors.New("error connecting to MIDI source")
)

// hotplugPollInterval paces the device-set poller. The Go CoreMIDI binding
// exposes no MIDIClientCreateWithBlock notifications, so the bridge falls
// back to the generic poll-and-diff strategy.
const hotplugPollInterval = time.Second

// Adapter is the CoreMIDI transport adapter.
type Adapter struct {
	logger   contracts.Logger
	client   coremidi.Client
	queueCap int

	mu         sync.Mutex
	sessionIDs map[string]uint64
	nextID     uint64
	pollStop   chan struct{}
}

// NewAdapter creates the CoreMIDI client and returns the adapter.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	client, err := coremidi.NewClient(options.ClientName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCreateClient, err)
	}
	options.Logger.Info("CoreMIDI client created",
		contracts.String("name", options.ClientName))

	return &Adapter{
		logger:     options.Logger,
		client:     client,
		queueCap:   options.QueueCapacity,
		sessionIDs: make(map[string]uint64),
		nextID:     1,
	}, nil
}

// sessionID assigns a session-stable numeric ID per distinct identity key.
// CoreMIDI's kMIDIPropertyUniqueID is not surfaced by the binding, so the
// adapter keeps its own stable mapping for the lifetime of the client.
func (a *Adapter) sessionID(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.sessionIDs[key]; ok {
		return id
	}
	id := a.nextID
	a.nextID++
	a.sessionIDs[key] = id
	return id
}

func (a *Adapter) sourcePort(s coremidi.Source) contracts.Port {
	entity := s.Entity()
	return a.endpointPort(s.Name(), entity.Name(), entity.Manufacturer(), contracts.DirectionInput)
}

func (a *Adapter) destinationPort(d coremidi.Destination) contracts.Port {
	entity := d.Entity()
	return a.endpointPort(d.Name(), entity.Name(), entity.Manufacturer(), contracts.DirectionOutput)
}

func (a *Adapter) endpointPort(name, entityName, manufacturer string, dir contracts.Direction) contracts.Port {
	display := name
	if entityName != "" && entityName != name {
		display = entityName + " " + name
	}

	// Endpoints without an entity are virtual sources published by other
	// applications.
	transport := contracts.TransportHardware
	virtual := false
	if entityName == "" {
		transport = contracts.TransportSoftware
		virtual = true
	}

	p := contracts.Port{
		DisplayName:  display,
		PortName:     name,
		DeviceName:   entityName,
		Manufacturer: manufacturer,
		Transport:    transport,
		Direction:    dir,
		Virtual:      virtual,
	}
	p.PlatformPortID = a.sessionID(dir.String() + "|" + p.IdentityKey())
	return p
}

// Enumerate lists CoreMIDI sources and destinations.
func (a *Adapter) Enumerate() (inputs, outputs []contracts.Port, err error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}

	for _, s := range sources {
		inputs = append(inputs, a.sourcePort(s))
	}
	for _, d := range destinations {
		outputs = append(outputs, a.destinationPort(d))
	}
	return inputs, outputs, nil
}

// OpenInput creates a dedicated input port and connects it to the source
// matching the given port identity. Packets are filtered on the driver
// thread and handed off through a pump.
func (a *Adapter) OpenInput(port contracts.Port, onMessage contracts.MessageFunc, filters contracts.InputFilters) (contracts.InputConnection, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrOpenFailed, err)
	}

	var target *coremidi.Source
	for i := range sources {
		if a.sourcePort(sources[i]).IdentityKey() == port.IdentityKey() {
			target = &sources[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: source %q vanished", contracts.ErrOpenFailed, port.PortName)
	}

	pump := dispatch.NewPump(onMessage, a.queueCap, a.logger)
	inputPort, err := coremidi.NewInputPort(a.client, port.PortName, func(source coremidi.Source, packet coremidi.Packet) {
		if !sysex.Allowed(packet.Data, filters) {
			return
		}
		pump.Submit(packet.Data, time.Now().UnixMicro())
	})
	if err != nil {
		pump.Close()
		return nil, fmt.Errorf("%w: %v", errCreateInputPort, err)
	}

	conn, err := inputPort.Connect(*target)
	if err != nil {
		pump.Close()
		return nil, fmt.Errorf("%w: %v", errConnect, err)
	}

	a.logger.Debug("CoreMIDI source connected", contracts.String("port", port.PortName))
	return &inputConn{conn: conn, pump: pump}, nil
}

// OpenOutput binds an output port to the destination matching the given
// port identity.
func (a *Adapter) OpenOutput(port contracts.Port) (contracts.OutputConnection, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrOpenFailed, err)
	}

	var target *coremidi.Destination
	for i := range destinations {
		if a.destinationPort(destinations[i]).IdentityKey() == port.IdentityKey() {
			target = &destinations[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: destination %q vanished", contracts.ErrOpenFailed, port.PortName)
	}

	outputPort, err := coremidi.NewOutputPort(a.client, port.PortName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrOpenFailed, err)
	}

	return &outputConn{port: outputPort, dest: *target}, nil
}

// SetHotplugNotify starts or stops the device-set poller.
func (a *Adapter) SetHotplugNotify(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pollStop != nil {
		close(a.pollStop)
		a.pollStop = nil
	}
	if fn == nil {
		return
	}

	stop := make(chan struct{})
	a.pollStop = stop
	go a.poll(stop, fn)
}

// poll compares endpoint counts and identities on a fixed interval and
// signals the observer on any change. The observer performs the full
// re-enumeration and diff.
func (a *Adapter) poll(stop chan struct{}, fn func()) {
	ticker := time.NewTicker(hotplugPollInterval)
	defer ticker.Stop()

	last := a.fingerprint()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			current := a.fingerprint()
			if current != last {
				last = current
				fn()
			}
		}
	}
}

func (a *Adapter) fingerprint() string {
	inputs, outputs, err := a.Enumerate()
	if err != nil {
		return ""
	}
	var fp string
	for _, p := range inputs {
		fp += "i:" + p.IdentityKey() + "\n"
	}
	for _, p := range outputs {
		fp += "o:" + p.IdentityKey() + "\n"
	}
	return fp
}

// Close stops the poller. The CoreMIDI client itself is released with the
// process; the binding exposes no explicit dispose.
func (a *Adapter) Close() error {
	a.SetHotplugNotify(nil)
	return nil
}

type inputConn struct {
	conn coremidi.PortConnection
	pump *dispatch.Pump
	once sync.Once
}

func (c *inputConn) Close() error {
	c.once.Do(func() {
		c.conn.Disconnect()
		c.pump.Close()
	})
	return nil
}

type outputConn struct {
	port coremidi.OutputPort
	dest coremidi.Destination
}

// Send transmits the bytes as one CoreMIDI packet.
func (c *outputConn) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	packet := coremidi.NewPacket(data, 0)
	if err := packet.Send(&c.port, &c.dest); err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrSendFailed, err)
	}
	return nil
}

func (c *outputConn) Close() error {
	return nil
}

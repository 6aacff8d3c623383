package contracts

// Observer is the root object of the transport core. It owns one platform
// transport adapter, the current port snapshot, and (optionally) the hotplug
// bridge. An Observer and the connections it created must be disposed by the
// caller; connections must not outlive their Observer.
type Observer interface {
	// InputPorts returns the input ports of the current snapshot, or nil
	// once the Observer is disposed. The returned slice is a copy; indices
	// are valid until the next Refresh.
	InputPorts() []Port

	// OutputPorts returns the output ports of the current snapshot, or nil
	// once the Observer is disposed.
	OutputPorts() []Port

	// Refresh re-enumerates both directions atomically, replacing the
	// snapshot wholesale. Indices handed out before Refresh are invalidated.
	// May block on native enumeration (IPC to a system MIDI service).
	Refresh() error

	// OpenInput opens the given port for receiving. The Port value, not its
	// bare index, is resolved against the live port set, so a concurrent
	// refresh cannot silently redirect the open to a different device.
	// onMessage is invoked once per message, in driver delivery order, on a
	// goroutine owned by the connection. Fails with ErrInvalidArgument if
	// the port is not an input.
	OpenInput(port Port, onMessage MessageFunc, filters InputFilters) (Input, error)

	// OpenOutput opens the given port for sending. Fails with
	// ErrInvalidArgument if the port is not an output.
	OpenOutput(port Port) (Output, error)

	// Dispose tears the Observer down: the hotplug listener is unregistered
	// first, then native resources are released. One-way; every later call
	// on the Observer fails with ErrDisposed.
	Dispose() error
}

// Input is an open connection receiving MIDI data from one port.
type Input interface {
	// Port returns the Port this connection was opened against.
	Port() Port

	// IsConnected reports whether the connection is live (not yet closed).
	IsConnected() bool

	// Close releases the connection. After Close returns, the message
	// callback is never invoked again, even for natively in-flight data.
	// Close is one-way; a second Close fails with ErrDisposed.
	Close() error
}

// Output is an open connection sending MIDI data to one port.
type Output interface {
	Port() Port
	IsConnected() bool

	// Send transmits the bytes as one atomic MIDI message: the whole
	// sequence reaches the driver or the call fails with ErrSendFailed.
	// An empty slice is a no-op, not an error.
	Send(data []byte) error

	Close() error
}

// TransportAdapter is the per-OS capability set behind the Observer. Exactly
// one real implementation is compiled into a given binary (plus the portable
// loopback transport); the Observer code stays platform-agnostic.
type TransportAdapter interface {
	// Enumerate returns fresh input and output port lists in one call.
	// Ordering is platform-defined but stable within the returned slices.
	// Indices are not assigned here; the registry assigns them per snapshot.
	Enumerate() (inputs, outputs []Port, err error)

	// OpenInput opens a native input connection for the port, delivering
	// messages through onMessage. Filter suppression happens before the
	// cross-thread hand-off where the native API allows it.
	OpenInput(port Port, onMessage MessageFunc, filters InputFilters) (InputConnection, error)

	// OpenOutput opens a native output connection for the port.
	OpenOutput(port Port) (OutputConnection, error)

	// SetHotplugNotify installs fn as the "device set changed" signal, or
	// removes the native listener when fn is nil. The adapter does not
	// interpret the change; the Observer refreshes and diffs.
	SetHotplugNotify(fn func())

	// Close releases the adapter's native client. Open connections must be
	// closed first.
	Close() error
}

// InputConnection is the adapter-level half of an open input.
type InputConnection interface {
	Close() error
}

// OutputConnection is the adapter-level half of an open output.
type OutputConnection interface {
	Send(data []byte) error
	Close() error
}

package contracts

// TransportType is a bitmask describing the connection medium of a MIDI port.
// A port may carry several bits (a USB device is also hardware); Classify
// reduces the mask to the single most specific class for display purposes.
type TransportType uint8

const (
	TransportUnknown   TransportType = 0
	TransportSoftware  TransportType = 2
	TransportLoopback  TransportType = 4
	TransportHardware  TransportType = 8
	TransportUSB       TransportType = 16
	TransportBluetooth TransportType = 32
	TransportPCI       TransportType = 64
	TransportNetwork   TransportType = 128
)

// classifyOrder lists transport bits from most to least specific.
var classifyOrder = [...]TransportType{
	TransportNetwork,
	TransportPCI,
	TransportBluetooth,
	TransportUSB,
	TransportHardware,
	TransportLoopback,
	TransportSoftware,
}

// Classify returns the highest-priority single transport bit set in the mask,
// or TransportUnknown when no bit is set.
func (t TransportType) Classify() TransportType {
	for _, c := range classifyOrder {
		if t&c != 0 {
			return c
		}
	}
	return TransportUnknown
}

// String returns a display name for the classified transport.
func (t TransportType) String() string {
	switch t.Classify() {
	case TransportNetwork:
		return "network"
	case TransportPCI:
		return "pci"
	case TransportBluetooth:
		return "bluetooth"
	case TransportUSB:
		return "usb"
	case TransportHardware:
		return "hardware"
	case TransportLoopback:
		return "loopback"
	case TransportSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Direction indicates whether a port receives or emits MIDI data from the
// point of view of this process.
type Direction uint8

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionInput {
		return "input"
	}
	return "output"
}

// Port describes one addressable MIDI endpoint as seen at enumeration time.
// A Port is a snapshot value: Index is only meaningful against the snapshot
// it was read from and is invalidated by the next refresh. The descriptive
// fields (PortName, Manufacturer, Product, Serial) form the port's
// cross-platform identity; see IdentityKey.
type Port struct {
	Index          int32  // Position in the current enumeration. Not stable across refreshes.
	PlatformPortID uint64 // OS-native port identifier, stable within a session on most platforms.
	ClientHandle   uint64 // Handle of the owning native API client, if any.

	DisplayName  string // Full human-readable name (e.g. "IAC Driver Bus 1").
	PortName     string // Port name (e.g. "Bus 1").
	DeviceName   string // Device or model name (e.g. "IAC Driver").
	Manufacturer string
	Product      string
	Serial       string // Often empty; hardware serial number when the OS exposes one.

	Transport TransportType
	Direction Direction
	Virtual   bool // True for software/loopback ports with no hardware behind them.
}

// IdentityKey returns the descriptive identity tuple of the port as a single
// string. Two ports with the same key are considered the same logical device
// for hotplug diffing and stable-ID derivation, regardless of their index or
// session handles.
func (p Port) IdentityKey() string {
	return p.PortName + "|" + p.Manufacturer + "|" + p.Product + "|" + p.Serial
}

// HotplugEvent tags a device arrival or departure, split by direction.
// The numeric values cross the foreign-function boundary and must not change.
type HotplugEvent int32

const (
	InputAdded HotplugEvent = iota
	InputRemoved
	OutputAdded
	OutputRemoved
)

func (e HotplugEvent) String() string {
	switch e {
	case InputAdded:
		return "input added"
	case InputRemoved:
		return "input removed"
	case OutputAdded:
		return "output added"
	case OutputRemoved:
		return "output removed"
	default:
		return "unknown event"
	}
}

// MessageFunc is invoked once per received MIDI message. The data slice is
// owned by the callee; the timestamp is in microseconds.
type MessageFunc func(data []byte, timestampMicros int64)

// HotplugFunc is invoked once per detected device change.
type HotplugFunc func(event HotplugEvent)

// InputFilters selects which message classes an input delivers. Suppressed
// classes are dropped before the cross-thread hand-off wherever the native
// API allows it.
type InputFilters struct {
	ReceiveSysEx   bool // System-exclusive messages (status 0xF0).
	ReceiveTiming  bool // MIDI clock (status 0xF8).
	ReceiveSensing bool // Active sensing (status 0xFE).
}

// DefaultInputFilters returns the default filter set: SysEx delivered,
// clock and active sensing suppressed.
func DefaultInputFilters() InputFilters {
	return InputFilters{ReceiveSysEx: true}
}

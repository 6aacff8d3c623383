package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/bandapps/libremidi/internal/midi/midialsa"
	"github.com/bandapps/libremidi/internal/midi/midiamidi"
	"github.com/bandapps/libremidi/internal/midi/mididarwin"
	"github.com/bandapps/libremidi/internal/midi/midiwindows"
	"github.com/bandapps/libremidi/sdk/contracts"
)

// ErrUnsupportedOS is returned when no transport adapter exists for the
// current operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// adapterInitializers maps OS names to the corresponding transport adapter
// initializer. Only the adapter for the compiling platform is functional;
// the others are build-tag dummies that fail initialization.
var adapterInitializers = map[string]func(*contracts.ObserverOptions) (contracts.TransportAdapter, error){
	"darwin":  mididarwin.NewAdapter,
	"windows": midiwindows.NewAdapter,
	"linux":   midialsa.NewAdapter,
	"android": midiamidi.NewAdapter,
}

// newAdapter selects the transport adapter for the current platform, or
// returns the explicitly configured transport when one is set.
func newAdapter(opts *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	if opts.Transport != nil {
		return opts.Transport, nil
	}
	if initializer, exists := adapterInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}

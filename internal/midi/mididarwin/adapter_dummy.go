//go:build !darwin

package mididarwin

import (
	"fmt"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// NewAdapter fails on non-macOS systems; the factory only selects this
// package when building for darwin.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	return nil, fmt.Errorf("%w: CoreMIDI is not available on this platform", contracts.ErrInitFailed)
}

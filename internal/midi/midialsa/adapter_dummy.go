//go:build !linux || android || !cgo

// Package midialsa implements the transport adapter on Linux via the ALSA
// RawMidi interface.
package midialsa

import (
	"fmt"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// NewAdapter fails when ALSA is unavailable; the factory only selects this
// package when building for desktop Linux, and RawMidi access needs cgo.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	return nil, fmt.Errorf("%w: ALSA RawMidi is not available in this build", contracts.ErrInitFailed)
}

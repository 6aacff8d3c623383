//go:build !android || !cgo

// Package midiamidi implements the transport adapter on Android. Device
// discovery runs through the host application's MidiManager plumbing; port
// I/O goes through the NDK AMidi API.
package midiamidi

import (
	"fmt"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// NewAdapter fails off Android; the factory only selects this package when
// building for android.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	return nil, fmt.Errorf("%w: AMidi is not available in this build", contracts.ErrInitFailed)
}

//go:build !windows

// Package midiwindows implements the transport adapter on Windows via the
// WinMM multimedia API, with device identity enriched through the PnP
// configuration manager.
package midiwindows

import (
	"fmt"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// NewAdapter fails on non-Windows systems; the factory only selects this
// package when building for windows.
func NewAdapter(options *contracts.ObserverOptions) (contracts.TransportAdapter, error) {
	return nil, fmt.Errorf("%w: WinMM is not available on this platform", contracts.ErrInitFailed)
}

// Package identity derives stable, platform-independent identifiers for MIDI
// ports from their descriptive attributes.
package identity

import (
	"github.com/bandapps/libremidi/sdk/contracts"
)

// FNV-1a 64-bit parameters. The hash is part of the cross-platform identity
// contract: the same port identity tuple must produce the same ID on every
// platform and across process restarts.
const (
	fnvOffsetBasis uint64 = 14695981039346656037
	fnvPrime       uint64 = 1099511628211
)

// hash64 computes FNV-1a over s.
func hash64(s string) uint64 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

// StableID returns the hash-derived identifier of the port. It depends only
// on the descriptive tuple (port name, manufacturer, product, serial); the
// session-local Index and ClientHandle are never consulted. Ports with
// identical tuples yield identical IDs.
func StableID(p contracts.Port) uint64 {
	return hash64(p.IdentityKey())
}

// EffectiveID returns the identifier to use for deduplication. When both
// Product and Serial are empty the descriptive tuple cannot disambiguate
// same-named ports, so the OS-native session-local ID is trusted instead.
func EffectiveID(p contracts.Port) uint64 {
	if p.Product == "" && p.Serial == "" {
		return p.PlatformPortID
	}
	return StableID(p)
}

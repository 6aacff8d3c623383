// Package registry holds the canonical port snapshot and computes hotplug
// diffs between snapshots.
package registry

import (
	"github.com/bandapps/libremidi/sdk/contracts"
)

// Snapshot is one atomic enumeration result: the ordered input and output
// port lists with indices assigned. Snapshots are replaced wholesale on
// refresh, never mutated, so a consumer holding a previously returned
// snapshot is unaffected by concurrent refreshes.
type Snapshot struct {
	Inputs  []contracts.Port
	Outputs []contracts.Port
}

// Build assigns indices to freshly enumerated port lists and wraps them in a
// snapshot. The adapter's enumeration order is preserved.
func Build(inputs, outputs []contracts.Port) Snapshot {
	for i := range inputs {
		inputs[i].Index = int32(i)
		inputs[i].Direction = contracts.DirectionInput
	}
	for i := range outputs {
		outputs[i].Index = int32(i)
		outputs[i].Direction = contracts.DirectionOutput
	}
	return Snapshot{Inputs: inputs, Outputs: outputs}
}

// Diff computes the set difference between two port lists, keyed on the
// descriptive identity tuple. Indices are deliberately not part of the key:
// they shift whenever a device earlier in the enumeration order vanishes.
func Diff(prev, next []contracts.Port) (added, removed []contracts.Port) {
	prevKeys := make(map[string]struct{}, len(prev))
	for _, p := range prev {
		prevKeys[p.IdentityKey()] = struct{}{}
	}
	nextKeys := make(map[string]struct{}, len(next))
	for _, p := range next {
		nextKeys[p.IdentityKey()] = struct{}{}
	}

	for _, p := range next {
		if _, ok := prevKeys[p.IdentityKey()]; !ok {
			added = append(added, p)
		}
	}
	for _, p := range prev {
		if _, ok := nextKeys[p.IdentityKey()]; !ok {
			removed = append(removed, p)
		}
	}
	return added, removed
}

// Events derives the hotplug event sequence for a snapshot transition: one
// event per appeared or vanished port, tagged by direction. When both diffs
// are empty the native layer still signalled a change (some OSes only report
// "setup changed"), so adds are conservatively re-announced on both
// directions; consumers diffing on effective IDs deduplicate false positives.
func Events(prev, next Snapshot) []contracts.HotplugEvent {
	var events []contracts.HotplugEvent

	inAdded, inRemoved := Diff(prev.Inputs, next.Inputs)
	outAdded, outRemoved := Diff(prev.Outputs, next.Outputs)

	for range inAdded {
		events = append(events, contracts.InputAdded)
	}
	for range inRemoved {
		events = append(events, contracts.InputRemoved)
	}
	for range outAdded {
		events = append(events, contracts.OutputAdded)
	}
	for range outRemoved {
		events = append(events, contracts.OutputRemoved)
	}

	if len(events) == 0 {
		events = append(events, contracts.InputAdded, contracts.OutputAdded)
	}
	return events
}

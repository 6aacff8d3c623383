package midiwindows

import (
	"strings"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// matchDeviceID finds the candidate matching the wanted port identity and
// returns its WinMM device ID. The ID comes from the port's ClientHandle,
// never from the slice position: enumeration skips devices whose
// capabilities query failed, so positions and device IDs can diverge.
func matchDeviceID(candidates []contracts.Port, want contracts.Port) (uintptr, bool) {
	for _, c := range candidates {
		if c.IdentityKey() == want.IdentityKey() && c.PlatformPortID == want.PlatformPortID {
			return uintptr(c.ClientHandle), true
		}
	}
	for _, c := range candidates {
		if c.IdentityKey() == want.IdentityKey() {
			return uintptr(c.ClientHandle), true
		}
	}
	return 0, false
}

// pnpInstanceID converts a device interface path into the PnP device
// instance ID it embeds: strip the \\?\ prefix, cut the interface class GUID
// suffix, and restore the path separators.
func pnpInstanceID(interfacePath string) string {
	s := strings.TrimPrefix(interfacePath, `\\?\`)
	if i := strings.Index(s, `#{`); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "#")
	return strings.ReplaceAll(s, "#", `\`)
}

// usbSerialFromInstanceID extracts the serial number segment of a USB device
// instance ID. Instance-path-generated segments contain '&' and are not
// serial numbers.
func usbSerialFromInstanceID(instanceID string) string {
	i := strings.LastIndexByte(instanceID, '\\')
	if i < 0 {
		return ""
	}
	seg := instanceID[i+1:]
	if strings.ContainsRune(seg, '&') {
		return ""
	}
	return seg
}

// shortMessageLen returns the byte length of a short MIDI message for its
// status byte.
func shortMessageLen(status byte) int {
	if status >= 0xF0 {
		switch status {
		case 0xF1, 0xF3:
			return 2
		case 0xF2:
			return 3
		default:
			return 1
		}
	}
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 2
	default:
		return 3
	}
}

//go:build windows

package midiwindows

import (
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// Configuration manager return codes.
const (
	crSuccess     = 0
	crBufferSmall = 26
)

const devpropTypeString = 0x12

// maxAncestorDepth caps the device tree walk; a MIDI function device sits at
// most a few nodes below its bus device.
const maxAncestorDepth = 10

var (
	cfgmgr32                    = windows.NewLazySystemDLL("cfgmgr32.dll")
	procCMLocateDevNode         = cfgmgr32.NewProc("CM_Locate_DevNodeW")
	procCMGetParent             = cfgmgr32.NewProc("CM_Get_Parent")
	procCMGetDeviceID           = cfgmgr32.NewProc("CM_Get_Device_IDW")
	procCMGetDevNodeProperty    = cfgmgr32.NewProc("CM_Get_DevNode_PropertyW")
	procCMRegisterNotification  = cfgmgr32.NewProc("CM_Register_Notification")
	procCMUnregisterNotifcation = cfgmgr32.NewProc("CM_Unregister_Notification")
)

// devPropKey mirrors DEVPROPKEY.
type devPropKey struct {
	fmtid windows.GUID
	pid   uint32
}

var (
	// DEVPKEY_Device_BusReportedDeviceDesc
	devpkeyBusReportedDeviceDesc = devPropKey{
		fmtid: windows.GUID{Data1: 0x540b947e, Data2: 0x8b40, Data3: 0x45bc,
			Data4: [8]byte{0xa8, 0xa2, 0x6a, 0x0b, 0x89, 0x4c, 0xbd, 0xa2}},
		pid: 4,
	}
	// DEVPKEY_Device_FriendlyName
	devpkeyFriendlyName = devPropKey{
		fmtid: windows.GUID{Data1: 0xa45c254e, Data2: 0xdf1c, Data3: 0x4efd,
			Data4: [8]byte{0x80, 0x20, 0x67, 0xd1, 0x46, 0xa8, 0x50, 0xe0}},
		pid: 14,
	}
)

type deviceInfo struct {
	deviceName string
	serial     string
	transport  contracts.TransportType
}

// deviceInfoFromInterfacePath resolves a device interface path to the
// identity of the physical device behind it by walking the PnP device tree
// toward the bus device.
func deviceInfoFromInterfacePath(interfacePath string) deviceInfo {
	instanceID := pnpInstanceID(interfacePath)
	if instanceID == "" {
		return deviceInfo{}
	}

	if strings.Contains(strings.ToUpper(instanceID), "MICROSOFTGSWAVETABLESYNTH") {
		return deviceInfo{
			deviceName: "Microsoft GS Wavetable Synth",
			transport:  contracts.TransportSoftware,
		}
	}

	node, ok := locateDevNode(instanceID)
	if !ok {
		return deviceInfo{}
	}

	for depth := 0; depth < maxAncestorDepth; depth++ {
		id := devNodeID(node)
		upper := strings.ToUpper(id)

		// The USB bus device is the first USB\VID_ ancestor that is not an
		// interface of a composite device.
		if strings.HasPrefix(upper, `USB\VID_`) && !strings.Contains(upper, "&MI_") {
			name := devNodeStringProperty(node, &devpkeyBusReportedDeviceDesc)
			if name == "" {
				name = devNodeStringProperty(node, &devpkeyFriendlyName)
			}
			return deviceInfo{
				deviceName: name,
				serial:     usbSerialFromInstanceID(id),
				transport:  contracts.TransportHardware | contracts.TransportUSB,
			}
		}

		if strings.HasPrefix(upper, `BTHENUM\`) || strings.HasPrefix(upper, `BTH\`) {
			return deviceInfo{
				deviceName: devNodeStringProperty(node, &devpkeyFriendlyName),
				transport:  contracts.TransportHardware | contracts.TransportBluetooth,
			}
		}

		parent, ok := parentDevNode(node)
		if !ok {
			break
		}
		node = parent
	}
	return deviceInfo{}
}

func locateDevNode(instanceID string) (uint32, bool) {
	id, err := windows.UTF16PtrFromString(instanceID)
	if err != nil {
		return 0, false
	}
	var node uint32
	r, _, _ := procCMLocateDevNode.Call(
		uintptr(unsafe.Pointer(&node)),
		uintptr(unsafe.Pointer(id)),
		0,
	)
	return node, r == crSuccess
}

func parentDevNode(node uint32) (uint32, bool) {
	var parent uint32
	r, _, _ := procCMGetParent.Call(uintptr(unsafe.Pointer(&parent)), uintptr(node), 0)
	return parent, r == crSuccess
}

func devNodeID(node uint32) string {
	var buf [512]uint16
	r, _, _ := procCMGetDeviceID.Call(
		uintptr(node),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0,
	)
	if r != crSuccess {
		return ""
	}
	return windows.UTF16ToString(buf[:])
}

func devNodeStringProperty(node uint32, key *devPropKey) string {
	var (
		propType uint32
		size     uint32
	)
	r, _, _ := procCMGetDevNodeProperty.Call(
		uintptr(node),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&propType)),
		0,
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if r != crBufferSmall || propType != devpropTypeString || size < 2 {
		return ""
	}
	buf := make([]uint16, size/2+1)
	r, _, _ = procCMGetDevNodeProperty.Call(
		uintptr(node),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&propType)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if r != crSuccess {
		return ""
	}
	return windows.UTF16ToString(buf)
}

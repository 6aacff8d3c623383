//go:build windows

package midiwindows

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// CM_NOTIFY_FILTER flags and types.
const (
	cmNotifyFilterFlagAllInterfaceClasses = 0x00000002
	cmNotifyFilterTypeDeviceInterface     = 0
)

// CM_NOTIFY_ACTION values for device interface notifications.
const (
	cmNotifyActionInterfaceArrival = 0
	cmNotifyActionInterfaceRemoval = 1
)

// cmNotifyFilter mirrors CM_NOTIFY_FILTER. The union member is sized by its
// largest variant, the 200-character instance ID.
type cmNotifyFilter struct {
	cbSize     uint32
	flags      uint32
	filterType uint32
	reserved   uint32
	u          [400]byte
}

// notifyRegistry maps registration cookies to notification targets. Like the
// input callback, a single process-wide NewCallback serves all
// registrations.
var (
	notifyRegistry   sync.Map // uintptr -> *deviceNotification
	nextNotifyCookie uintptr
	notifyCookieMu   sync.Mutex
	notifyCbOnce     sync.Once
	notifyCbPtr      uintptr
)

func notifyCallbackPtr() uintptr {
	notifyCbOnce.Do(func() {
		notifyCbPtr = windows.NewCallback(deviceNotifyCallback)
	})
	return notifyCbPtr
}

// deviceNotification is one live CM_Register_Notification registration.
type deviceNotification struct {
	adapter *Adapter
	fn      func()
	cookie  uintptr
	handle  uintptr

	mu          sync.Mutex
	fingerprint string
}

// deviceNotifyCallback runs on a configuration manager thread for every
// device interface arrival or removal in the system. The registration spans
// all interface classes, so changes are screened against the MIDI device set
// before the observer is signaled.
func deviceNotifyCallback(hNotify, context, action, eventData, eventDataSize uintptr) uintptr {
	if action != cmNotifyActionInterfaceArrival && action != cmNotifyActionInterfaceRemoval {
		return 0
	}
	v, ok := notifyRegistry.Load(context)
	if !ok {
		return 0
	}
	n := v.(*deviceNotification)
	go n.screen()
	return 0
}

// screen re-fingerprints the MIDI device set and forwards the notification
// only when it actually changed. Unrelated PnP traffic is dropped here.
func (n *deviceNotification) screen() {
	current := midiFingerprint(n.adapter)

	n.mu.Lock()
	changed := current != n.fingerprint
	n.fingerprint = current
	n.mu.Unlock()

	if changed {
		n.fn()
	}
}

func midiFingerprint(a *Adapter) string {
	inputs, outputs, err := a.Enumerate()
	if err != nil {
		return ""
	}
	var fp string
	for _, p := range inputs {
		fp += "i:" + p.IdentityKey() + "\n"
	}
	for _, p := range outputs {
		fp += "o:" + p.IdentityKey() + "\n"
	}
	return fp
}

func registerDeviceNotification(a *Adapter, fn func()) (*deviceNotification, error) {
	notifyCookieMu.Lock()
	nextNotifyCookie++
	cookie := nextNotifyCookie
	notifyCookieMu.Unlock()

	n := &deviceNotification{
		adapter:     a,
		fn:          fn,
		cookie:      cookie,
		fingerprint: midiFingerprint(a),
	}
	notifyRegistry.Store(cookie, n)

	filter := cmNotifyFilter{
		flags:      cmNotifyFilterFlagAllInterfaceClasses,
		filterType: cmNotifyFilterTypeDeviceInterface,
	}
	filter.cbSize = uint32(unsafe.Sizeof(filter))

	r, _, _ := procCMRegisterNotification.Call(
		uintptr(unsafe.Pointer(&filter)),
		cookie,
		notifyCallbackPtr(),
		uintptr(unsafe.Pointer(&n.handle)),
	)
	if r != crSuccess {
		notifyRegistry.Delete(cookie)
		return nil, fmt.Errorf("CM_Register_Notification failed with CONFIGRET %d", r)
	}
	return n, nil
}

// unregister tears the registration down: the cookie goes first so a
// late-firing callback finds nothing to signal.
func (n *deviceNotification) unregister() {
	notifyRegistry.Delete(n.cookie)
	if n.handle != 0 {
		procCMUnregisterNotifcation.Call(n.handle)
		n.handle = 0
	}
}

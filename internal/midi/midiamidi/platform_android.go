//go:build android && cgo

// Package midiamidi implements the transport adapter on Android. Device
// discovery runs through the host application's MidiManager plumbing; port
// I/O goes through the NDK AMidi API.
package midiamidi

/*
#cgo LDFLAGS: -lamidi

#include <jni.h>

static JNIEnv* lm_attach(JavaVM* vm, int* attached) {
	JNIEnv* env = NULL;
	*attached = 0;
	if ((*vm)->GetEnv(vm, (void**)&env, JNI_VERSION_1_6) == JNI_OK) {
		return env;
	}
	if ((*vm)->AttachCurrentThread(vm, &env, NULL) == JNI_OK) {
		*attached = 1;
		return env;
	}
	return NULL;
}

static void lm_detach(JavaVM* vm) {
	(*vm)->DetachCurrentThread(vm);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// MidiDeviceInfo type constants.
const (
	deviceTypeUSB       = 1
	deviceTypeVirtual   = 2
	deviceTypeBluetooth = 3
)

// DeviceDescriptor mirrors one android.media.MidiDeviceInfo as reported by
// the host application. The string fields carry the MidiDeviceInfo property
// bundle values.
type DeviceDescriptor struct {
	DeviceID     int32
	Name         string
	Manufacturer string
	Product      string
	Serial       string
	Type         int32

	// InputPortCount counts ports the device receives on (send targets);
	// OutputPortCount counts ports the device transmits on (receive
	// sources).
	InputPortCount  int32
	OutputPortCount int32
}

// DeviceProvider is the host application's MidiManager bridge. AMidi can
// only convert an already-open android.media.MidiDevice, and opening one
// requires a Java-side listener, so discovery and opening stay on the Java
// side.
type DeviceProvider interface {
	// Devices lists the currently attached MIDI devices.
	Devices() ([]DeviceDescriptor, error)

	// OpenDevice opens the device and returns a JNI global reference to the
	// android.media.MidiDevice.
	OpenDevice(deviceID int32) (unsafe.Pointer, error)

	// CloseDevice closes the device and releases the global reference.
	CloseDevice(handle unsafe.Pointer)

	// SetDeviceCallback registers fn with MidiManager's DeviceCallback, or
	// unregisters when fn is nil.
	SetDeviceCallback(fn func())
}

var platform struct {
	mu       sync.Mutex
	vm       *C.JavaVM
	provider DeviceProvider
}

// RegisterJavaVM hands the process JavaVM to the adapter. Call once from
// JNI_OnLoad or equivalent before creating an Observer.
func RegisterJavaVM(vm unsafe.Pointer) {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	platform.vm = (*C.JavaVM)(vm)
}

// RegisterProvider hands the MidiManager bridge to the adapter. Call before
// creating an Observer.
func RegisterProvider(p DeviceProvider) {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	platform.provider = p
}

func platformState() (*C.JavaVM, DeviceProvider, error) {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	if platform.vm == nil {
		return nil, nil, fmt.Errorf("%w: no JavaVM registered", contracts.ErrInitFailed)
	}
	if platform.provider == nil {
		return nil, nil, fmt.Errorf("%w: no device provider registered", contracts.ErrInitFailed)
	}
	return platform.vm, platform.provider, nil
}

// attachEnv attaches the calling thread to the VM when needed. The returned
// release function must run on the same thread.
func attachEnv(vm *C.JavaVM) (*C.JNIEnv, func(), error) {
	var attached C.int
	env := C.lm_attach(vm, &attached)
	if env == nil {
		return nil, nil, fmt.Errorf("%w: failed to attach thread to JavaVM", contracts.ErrOpenFailed)
	}
	release := func() {
		if attached != 0 {
			C.lm_detach(vm)
		}
	}
	return env, release, nil
}

//go:build darwin

package sensor

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// HID usage page and usage of the SPU accelerometer.
const (
	pageVendor = 0xFF00
	usageAccel = 3

	reportBufSize    = 4096
	reportIntervalUS = 1000
)

// CoreFoundation type ids.
const (
	cfStringEncodingUTF8 = 0x08000100
	cfNumberSInt32Type   = 3
	cfNumberSInt64Type   = 4
)

var (
	ioServiceMatching              func(name *byte) uintptr
	ioServiceGetMatchingServices   func(mainPort uint32, matching uintptr, existing *uint32) int32
	ioIteratorNext                 func(iterator uint32) uint32
	ioObjectRelease                func(object uint32) int32
	ioRegistryEntryCreateCFProp    func(entry uint32, key uintptr, allocator uintptr, options uint32) uintptr
	ioRegistryEntrySetCFProp       func(entry uint32, key uintptr, value uintptr) int32
	ioHIDDeviceCreate              func(allocator uintptr, service uint32) uintptr
	ioHIDDeviceOpen                func(device uintptr, options int32) int32
	ioHIDDeviceRegisterInputReport func(device uintptr, report uintptr, reportLen int, callback uintptr, context uintptr)
	ioHIDDeviceScheduleWithRL      func(device uintptr, runLoop uintptr, mode uintptr)

	cfStringCreateWithCString func(alloc uintptr, cStr *byte, encoding uint32) uintptr
	cfNumberCreate            func(alloc uintptr, theType int32, valuePtr uintptr) uintptr
	cfNumberGetValue          func(number uintptr, theType int32, valuePtr uintptr) bool
	cfRunLoopGetCurrent       func() uintptr
	cfRunLoopRunInMode        func(mode uintptr, seconds float64, returnAfterSourceHandled bool) int32

	kCFAllocatorDefault   uintptr
	kCFRunLoopDefaultMode uintptr
)

var (
	frameworksOnce sync.Once
	frameworksErr  error
)

// loadFrameworks resolves the IOKit and CoreFoundation symbols once.
func loadFrameworks() error {
	frameworksOnce.Do(func() {
		iokit, err := purego.Dlopen("/System/Library/Frameworks/IOKit.framework/IOKit", purego.RTLD_LAZY)
		if err != nil {
			frameworksErr = fmt.Errorf("dlopen IOKit: %w", err)
			return
		}
		cf, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_LAZY)
		if err != nil {
			frameworksErr = fmt.Errorf("dlopen CoreFoundation: %w", err)
			return
		}

		purego.RegisterLibFunc(&ioServiceMatching, iokit, "IOServiceMatching")
		purego.RegisterLibFunc(&ioServiceGetMatchingServices, iokit, "IOServiceGetMatchingServices")
		purego.RegisterLibFunc(&ioIteratorNext, iokit, "IOIteratorNext")
		purego.RegisterLibFunc(&ioObjectRelease, iokit, "IOObjectRelease")
		purego.RegisterLibFunc(&ioRegistryEntryCreateCFProp, iokit, "IORegistryEntryCreateCFProperty")
		purego.RegisterLibFunc(&ioRegistryEntrySetCFProp, iokit, "IORegistryEntrySetCFProperty")
		purego.RegisterLibFunc(&ioHIDDeviceCreate, iokit, "IOHIDDeviceCreate")
		purego.RegisterLibFunc(&ioHIDDeviceOpen, iokit, "IOHIDDeviceOpen")
		purego.RegisterLibFunc(&ioHIDDeviceRegisterInputReport, iokit, "IOHIDDeviceRegisterInputReportCallback")
		purego.RegisterLibFunc(&ioHIDDeviceScheduleWithRL, iokit, "IOHIDDeviceScheduleWithRunLoop")

		purego.RegisterLibFunc(&cfStringCreateWithCString, cf, "CFStringCreateWithCString")
		purego.RegisterLibFunc(&cfNumberCreate, cf, "CFNumberCreate")
		purego.RegisterLibFunc(&cfNumberGetValue, cf, "CFNumberGetValue")
		purego.RegisterLibFunc(&cfRunLoopGetCurrent, cf, "CFRunLoopGetCurrent")
		purego.RegisterLibFunc(&cfRunLoopRunInMode, cf, "CFRunLoopRunInMode")

		kCFAllocatorDefault = derefSymbol(cf, "kCFAllocatorDefault")
		kCFRunLoopDefaultMode = derefSymbol(cf, "kCFRunLoopDefaultMode")
	})
	return frameworksErr
}

// derefSymbol reads the pointer stored in an exported global variable.
//
//go:nosplit
func derefSymbol(lib uintptr, name string) uintptr {
	sym, _ := purego.Dlsym(lib, name)
	if sym == 0 {
		return 0
	}
	return **(**uintptr)(unsafe.Pointer(&sym))
}

func cfStr(s string) uintptr {
	return cfStringCreateWithCString(0, cStr(s), cfStringEncodingUTF8)
}

func cfNum32(v int32) uintptr {
	return cfNumberCreate(0, cfNumberSInt32Type, uintptr(unsafe.Pointer(&v)))
}

func cStr(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// propInt reads an integer IORegistry property.
func propInt(service uint32, key string) (int64, bool) {
	ref := ioRegistryEntryCreateCFProp(service, cfStr(key), 0, 0)
	if ref == 0 {
		return 0, false
	}
	var val int64
	if !cfNumberGetValue(ref, cfNumberSInt64Type, uintptr(unsafe.Pointer(&val))) {
		return 0, false
	}
	return val, true
}

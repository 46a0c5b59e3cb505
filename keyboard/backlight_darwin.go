//go:build darwin

// Package keyboard drives the Apple Silicon MacBook keyboard backlight via the
// private CoreBrightness.framework (KeyboardBrightnessClient).
package keyboard

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	objcGetClass     func(name *byte) uintptr
	objcSelRegName   func(name *byte) uintptr
	objcMsgSend      func(receiver uintptr, sel uintptr, args ...uintptr) uintptr
	objcMsgSendFloat func(receiver uintptr, sel uintptr, args ...uintptr) float32

	selAlloc, selInit, selLoad uintptr
	selSetBrightnessFade       uintptr
	selBrightnessForKB         uintptr
	selEnableAutoBrightness    uintptr
	selSuspendIdleDimming      uintptr

	runtimeOnce sync.Once
	runtimeErr  error
)

func loadRuntime() error {
	runtimeOnce.Do(func() {
		lib, err := purego.Dlopen("/usr/lib/libobjc.A.dylib", purego.RTLD_LAZY)
		if err != nil {
			runtimeErr = fmt.Errorf("dlopen libobjc: %w", err)
			return
		}
		purego.RegisterLibFunc(&objcGetClass, lib, "objc_getClass")
		purego.RegisterLibFunc(&objcSelRegName, lib, "sel_registerName")
		purego.RegisterLibFunc(&objcMsgSend, lib, "objc_msgSend")
		// Float returns come back through objc_msgSend on arm64.
		purego.RegisterLibFunc(&objcMsgSendFloat, lib, "objc_msgSend")

		selAlloc = sel("alloc")
		selInit = sel("init")
		selLoad = sel("load")
		selSetBrightnessFade = sel("setBrightness:fadeSpeed:commit:forKeyboard:")
		selBrightnessForKB = sel("brightnessForKeyboard:")
		selEnableAutoBrightness = sel("enableAutoBrightness:forKeyboard:")
		selSuspendIdleDimming = sel("suspendIdleDimming:forKeyboard:")
	})
	return runtimeErr
}

func cstr(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

func sel(name string) uintptr { return objcSelRegName(cstr(name)) }
func cls(name string) uintptr { return objcGetClass(cstr(name)) }

func nsString(s string) uintptr {
	return objcMsgSend(cls("NSString"), sel("stringWithUTF8String:"), uintptr(unsafe.Pointer(cstr(s))))
}

func boolArg(v bool) uintptr {
	if v {
		return 1
	}
	return 0
}

// Backlight controls one keyboard's backlight.
type Backlight struct {
	client uintptr
	id     uintptr
}

// Open loads CoreBrightness and returns a Backlight for keyboard id (1 is the
// built-in keyboard).
func Open(id uint64) (*Backlight, error) {
	if err := loadRuntime(); err != nil {
		return nil, err
	}

	bundleCls := cls("NSBundle")
	if bundleCls == 0 {
		return nil, fmt.Errorf("NSBundle class not found")
	}
	bundle := objcMsgSend(bundleCls, sel("bundleWithPath:"),
		nsString("/System/Library/PrivateFrameworks/CoreBrightness.framework"))
	if bundle == 0 {
		return nil, fmt.Errorf("loading CoreBrightness.framework bundle")
	}
	objcMsgSend(bundle, selLoad)

	clientCls := cls("KeyboardBrightnessClient")
	if clientCls == 0 {
		return nil, fmt.Errorf("KeyboardBrightnessClient class not found")
	}
	client := objcMsgSend(objcMsgSend(clientCls, selAlloc), selInit)
	if client == 0 {
		return nil, fmt.Errorf("creating KeyboardBrightnessClient")
	}

	return &Backlight{client: client, id: uintptr(id)}, nil
}

// Level returns the current brightness (0.0-1.0).
func (b *Backlight) Level() float32 {
	return objcMsgSendFloat(b.client, selBrightnessForKB, b.id)
}

// SetLevel sets the brightness (0.0-1.0), fading over fade.
func (b *Backlight) SetLevel(level float32, fade time.Duration) {
	bits := uintptr(*(*uint32)(unsafe.Pointer(&level)))
	objcMsgSend(b.client, selSetBrightnessFade, bits, uintptr(fade.Milliseconds()), 1, b.id)
}

// Hold disables auto brightness and idle dimming while true, so a manual
// level sticks.
func (b *Backlight) Hold(on bool) {
	objcMsgSend(b.client, selEnableAutoBrightness, boolArg(!on), b.id)
	objcMsgSend(b.client, selSuspendIdleDimming, boolArg(on), b.id)
}

// Flash raises the backlight to peak for on, then restores the previous level.
func (b *Backlight) Flash(ctx context.Context, peak float32, on time.Duration) error {
	prev := b.Level()
	b.Hold(true)
	defer b.Hold(false)
	defer b.SetLevel(prev, 80*time.Millisecond)

	b.SetLevel(peak, 20*time.Millisecond)
	t := time.NewTimer(on)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

//go:build darwin

package sensor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/taigrr/shakedetect/shm"
)

// ErrNoAccelerometer is returned when no SPU accelerometer is present.
var ErrNoAccelerometer = errors.New("no SPU accelerometer found")

// Config holds the sensor worker settings.
type Config struct {
	Ring       *shm.RingBuffer
	Decimation int
	Restarts   uint32
}

// worker is the state reached from the HID callback. Only one worker runs
// per process.
type worker struct {
	ring *shm.RingBuffer
	dec  Decimator
}

var (
	active      *worker
	callbackPtr uintptr
	callbackMu  sync.Mutex

	// Report buffers handed to IOKit must outlive the run loop.
	gcRoots [][]byte
)

func accelCallback(_ uintptr, _ int32, _ uintptr, _ int32, _ uint32, report *byte, length int) {
	w := active
	if w == nil || length != IMUReportLen {
		return
	}
	if !w.dec.Keep() {
		return
	}
	x, y, z, ok := ParseIMUReport(unsafe.Slice(report, length))
	if !ok {
		return
	}
	w.ring.WriteSample(time.Now().UnixNano(), x, y, z)
}

// Run registers the accelerometer callback and runs the CFRunLoop until ctx
// is cancelled. It must be called from the main goroutine.
func Run(ctx context.Context, cfg Config) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cfg.Ring == nil {
		return errors.New("sensor: nil ring")
	}
	if err := loadFrameworks(); err != nil {
		return err
	}

	callbackMu.Lock()
	if callbackPtr == 0 {
		callbackPtr = purego.NewCallback(accelCallback)
	}
	callbackMu.Unlock()

	dec := cfg.Decimation
	if dec <= 0 {
		dec = DefaultDecimation
	}
	active = &worker{ring: cfg.Ring, dec: Decimator{N: dec}}
	defer func() { active = nil }()

	cfg.Ring.SetRestarts(cfg.Restarts)

	if err := wakeSPUDrivers(); err != nil {
		return fmt.Errorf("waking SPU drivers: %w", err)
	}
	n, err := registerAccel()
	if err != nil {
		return fmt.Errorf("registering HID devices: %w", err)
	}
	if n == 0 {
		return ErrNoAccelerometer
	}

	for ctx.Err() == nil {
		cfRunLoopRunInMode(kCFRunLoopDefaultMode, 0.25, false)
	}
	return nil
}

// wakeSPUDrivers enables reporting on every AppleSPUHIDDriver.
func wakeSPUDrivers() error {
	var it uint32
	if kr := ioServiceGetMatchingServices(0, ioServiceMatching(cStr("AppleSPUHIDDriver")), &it); kr != 0 {
		return fmt.Errorf("IOServiceGetMatchingServices returned %d", kr)
	}

	for svc := ioIteratorNext(it); svc != 0; svc = ioIteratorNext(it) {
		ioRegistryEntrySetCFProp(svc, cfStr("SensorPropertyReportingState"), cfNum32(1))
		ioRegistryEntrySetCFProp(svc, cfStr("SensorPropertyPowerState"), cfNum32(1))
		ioRegistryEntrySetCFProp(svc, cfStr("ReportInterval"), cfNum32(reportIntervalUS))
		ioObjectRelease(svc)
	}
	return nil
}

// registerAccel hooks the accelerometer devices and returns how many were
// opened.
func registerAccel() (int, error) {
	var it uint32
	if kr := ioServiceGetMatchingServices(0, ioServiceMatching(cStr("AppleSPUHIDDevice")), &it); kr != 0 {
		return 0, fmt.Errorf("IOServiceGetMatchingServices returned %d", kr)
	}

	opened := 0
	for svc := ioIteratorNext(it); svc != 0; svc = ioIteratorNext(it) {
		page, _ := propInt(svc, "PrimaryUsagePage")
		usage, _ := propInt(svc, "PrimaryUsage")
		if page == pageVendor && usage == usageAccel {
			if openDevice(svc) {
				opened++
			}
		}
		ioObjectRelease(svc)
	}
	return opened, nil
}

func openDevice(svc uint32) bool {
	hid := ioHIDDeviceCreate(kCFAllocatorDefault, svc)
	if hid == 0 || ioHIDDeviceOpen(hid, 0) != 0 {
		return false
	}
	buf := make([]byte, reportBufSize)
	gcRoots = append(gcRoots, buf)

	ioHIDDeviceRegisterInputReport(hid, uintptr(unsafe.Pointer(&buf[0])), reportBufSize, callbackPtr, 0)
	ioHIDDeviceScheduleWithRL(hid, cfRunLoopGetCurrent(), kCFRunLoopDefaultMode)
	return true
}

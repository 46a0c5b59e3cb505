// Package sensor reads the accelerometer of Apple Silicon MacBooks via IOKit
// HID (AppleSPUHIDDevice, Bosch BMI286 IMU) and publishes timestamped samples
// to the shm ring.
package sensor

import "encoding/binary"

// BMI286 report format.
const (
	IMUReportLen  = 22 // accel report length in bytes
	IMUDataOffset = 6  // XYZ payload start offset

	// DefaultDecimation keeps 1 in 8 reports (~100 Hz at the 1 kHz driver rate).
	DefaultDecimation = 8
)

// ParseIMUReport extracts the Q16 XYZ values from a BMI286 IMU report. Short
// reports yield zeros and ok=false.
func ParseIMUReport(data []byte) (x, y, z int32, ok bool) {
	if len(data) < IMUDataOffset+12 {
		return 0, 0, 0, false
	}
	off := IMUDataOffset
	x = int32(binary.LittleEndian.Uint32(data[off:]))
	y = int32(binary.LittleEndian.Uint32(data[off+4:]))
	z = int32(binary.LittleEndian.Uint32(data[off+8:]))
	return x, y, z, true
}

// Decimator passes one of every N calls.
type Decimator struct {
	N     int
	count int
}

// Keep reports whether the current report should be kept.
func (d *Decimator) Keep() bool {
	if d.N <= 1 {
		return true
	}
	d.count++
	if d.count < d.N {
		return false
	}
	d.count = 0
	return true
}

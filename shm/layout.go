// Package shm provides the POSIX shared memory ring that carries timestamped
// accelerometer samples from sensord to its readers.
//
// Layout (little endian):
//
//	[0..3]   write_idx u32
//	[4..11]  total     u64
//	[12..15] restarts  u32
//	then RingCap entries of {timestamp_ns i64, x i32, y i32, z i32}
//
// Axis values are Q16 fixed point as delivered by the IMU.
package shm

import "encoding/binary"

// Ring constants.
const (
	RingCap   = 8000
	RingEntry = 20 // i64 timestamp + 3x i32
	SHMHeader = 16
	SHMSize   = SHMHeader + RingCap*RingEntry

	AccelScale = 65536.0 // Q16 raw -> g

	NameAccel = "shake_accel_shm"
)

// Sample is a scaled 3-axis reading with its capture time.
type Sample struct {
	TimestampNs int64
	X, Y, Z     float64
}

// RingBuffer is a shared memory ring buffer of timestamped IMU samples.
type RingBuffer struct {
	buf  []byte
	name string
	fd   int
}

// Wrap attaches a RingBuffer to buf, which must be at least SHMSize bytes.
// It returns nil if buf is too small.
func Wrap(buf []byte) *RingBuffer {
	if len(buf) < SHMSize {
		return nil
	}
	return &RingBuffer{buf: buf[:SHMSize], fd: -1}
}

// WriteSample appends one raw sample.
func (r *RingBuffer) WriteSample(tsNs int64, x, y, z int32) {
	idx := binary.LittleEndian.Uint32(r.buf[0:4])
	off := SHMHeader + int(idx)*RingEntry

	binary.LittleEndian.PutUint64(r.buf[off:], uint64(tsNs))
	binary.LittleEndian.PutUint32(r.buf[off+8:], uint32(x))
	binary.LittleEndian.PutUint32(r.buf[off+12:], uint32(y))
	binary.LittleEndian.PutUint32(r.buf[off+16:], uint32(z))

	binary.LittleEndian.PutUint32(r.buf[0:4], (idx+1)%RingCap)
	total := binary.LittleEndian.Uint64(r.buf[4:12])
	binary.LittleEndian.PutUint64(r.buf[4:12], total+1)
}

// Total returns the number of samples ever written.
func (r *RingBuffer) Total() uint64 {
	return binary.LittleEndian.Uint64(r.buf[4:12])
}

// SetRestarts writes the restart counter in the header.
func (r *RingBuffer) SetRestarts(count uint32) {
	binary.LittleEndian.PutUint32(r.buf[12:16], count)
}

// Restarts returns the restart counter.
func (r *RingBuffer) Restarts() uint32 {
	return binary.LittleEndian.Uint32(r.buf[12:16])
}

// ReadNew appends the samples written since lastTotal to dst, scaling the
// axes by 1/scale. If more than RingCap samples are pending only the newest
// RingCap are returned. It returns the extended slice and the new total.
func (r *RingBuffer) ReadNew(dst []Sample, lastTotal uint64, scale float64) ([]Sample, uint64) {
	total := r.Total()
	if total <= lastTotal {
		return dst, total
	}
	n := total - lastTotal
	if n > RingCap {
		n = RingCap
	}

	idx := uint64(binary.LittleEndian.Uint32(r.buf[0:4]))
	start := (idx + RingCap - n) % RingCap

	for i := range n {
		off := SHMHeader + int((start+i)%RingCap)*RingEntry
		ts := int64(binary.LittleEndian.Uint64(r.buf[off:]))
		x := int32(binary.LittleEndian.Uint32(r.buf[off+8:]))
		y := int32(binary.LittleEndian.Uint32(r.buf[off+12:]))
		z := int32(binary.LittleEndian.Uint32(r.buf[off+16:]))
		dst = append(dst, Sample{
			TimestampNs: ts,
			X:           float64(x) / scale,
			Y:           float64(y) / scale,
			Z:           float64(z) / scale,
		})
	}

	return dst, total
}

package sensor

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIMUReport(t *testing.T) {
	data := make([]byte, IMUReportLen)
	binary.LittleEndian.PutUint32(data[IMUDataOffset:], uint32(65536))
	binary.LittleEndian.PutUint32(data[IMUDataOffset+4:], 0xFFFF0000) // -65536
	binary.LittleEndian.PutUint32(data[IMUDataOffset+8:], uint32(12))

	x, y, z, ok := ParseIMUReport(data)
	assert.True(t, ok)
	assert.Equal(t, int32(65536), x)
	assert.Equal(t, int32(-65536), y)
	assert.Equal(t, int32(12), z)
}

func TestParseIMUReportShort(t *testing.T) {
	x, y, z, ok := ParseIMUReport(make([]byte, IMUDataOffset+11))
	assert.False(t, ok)
	assert.Zero(t, x)
	assert.Zero(t, y)
	assert.Zero(t, z)
}

func TestDecimator(t *testing.T) {
	d := Decimator{N: 3}
	var kept []bool
	for range 7 {
		kept = append(kept, d.Keep())
	}
	assert.Equal(t, []bool{false, false, true, false, false, true, false}, kept)

	all := Decimator{N: 1}
	assert.True(t, all.Keep())
	assert.True(t, all.Keep())
}

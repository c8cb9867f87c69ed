package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeakLevel(t *testing.T) {
	assert.Zero(t, PeakLevel(nil))
	assert.Zero(t, PeakLevel([]int16{0, 0, 0}))
	assert.InDelta(t, 0.5, PeakLevel([]int16{100, -16384, 2000}), 1e-6)
	assert.Equal(t, float32(1), PeakLevel([]int16{math.MinInt16}))
	assert.InDelta(t, 32767.0/32768.0, PeakLevel([]int16{math.MaxInt16, -5}), 1e-6)
}

func TestPeakLevelIsPerFrame(t *testing.T) {
	loud := PeakLevel([]int16{30000})
	quiet := PeakLevel([]int16{300})
	assert.Greater(t, loud, quiet)
	assert.InDelta(t, 300.0/32768.0, quiet, 1e-6)
}

func TestAppendFrameLittleEndian(t *testing.T) {
	got := AppendFrame([]byte{0xAA}, []int16{1, -1, 0x1234})
	assert.Equal(t, []byte{0xAA, 0x01, 0x00, 0xFF, 0xFF, 0x34, 0x12}, got)
}

func TestBytesPerSecond(t *testing.T) {
	assert.Equal(t, 32000, BytesPerSecond)
}

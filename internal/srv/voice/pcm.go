package voice

import (
	"encoding/binary"
	"math"
)

const (
	channels  = 2
	frameRate = 48000
	frameSize = 960
	maxBytes  = (frameSize * 2) * 2
)

// decodeFrame reads little-endian s16 samples from src into dst.
func decodeFrame(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2]))
	}
}

// applyVolume scales samples in place, volume in [0,1].
func applyVolume(samples []int16, volume float64) {
	if volume >= 1 {
		return
	}
	if volume <= 0 {
		clear(samples)
		return
	}
	for i, sample := range samples {
		v := math.Round(float64(sample) * volume)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		samples[i] = int16(v)
	}
}

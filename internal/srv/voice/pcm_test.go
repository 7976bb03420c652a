package voice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFrame(t *testing.T) {
	want := []int16{0, 1, -1, 32767, -32768, 1234}
	raw := make([]byte, len(want)*2)
	for i, v := range want {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}

	got := make([]int16, len(want))
	decodeFrame(got, raw)

	assert.Equal(t, want, got)
}

func TestApplyVolume(t *testing.T) {
	samples := []int16{1000, -1000, 32767, -32768}
	applyVolume(samples, 0.5)
	assert.Equal(t, []int16{500, -500, 16384, -16384}, samples)

	samples = []int16{1000, -1000}
	applyVolume(samples, 1)
	assert.Equal(t, []int16{1000, -1000}, samples)

	applyVolume(samples, 0)
	assert.Equal(t, []int16{0, 0}, samples)
}

func TestFfmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://cdn.example.com/a.webm", false)
	assert.Equal(t, []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", "https://cdn.example.com/a.webm",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "warning",
		"pipe:1",
	}, args)

	args = ffmpegArgs("pipe:0", true)
	assert.Equal(t, "-i", args[0])
	assert.Equal(t, "pipe:0", args[1])
	assert.NotContains(t, args, "-reconnect")
}

func TestDestination(t *testing.T) {
	d := NewDestination("g1", "c1", "Lounge", true)
	assert.Equal(t, "g1", d.GuildId())
	assert.Equal(t, "c1", d.ChannelId())
	assert.Equal(t, "Lounge", d.Name())
	assert.True(t, d.Joinable())
}

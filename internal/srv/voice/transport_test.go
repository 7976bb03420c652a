package voice

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor    = 3 * time.Second
	tick       = 5 * time.Millisecond
	frameBytes = frameSize * channels * 2
	testFrames = 5
)

// stubFfmpeg writes a shell script standing in for ffmpeg. It picks its
// behaviour from the input locator and otherwise emits testFrames of silence.
func stubFfmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a posix shell")
	}
	script := fmt.Sprintf(`#!/bin/sh
case "$*" in
*hold*) exec sleep 10 ;;
*empty*) exit 0 ;;
*broken*) echo "invalid data found" >&2; exit 1 ;;
esac
head -c %d /dev/zero
`, testFrames*frameBytes)
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestTransport(t *testing.T, inputs ...InputProvider) (*Transport, *discordgo.VoiceConnection) {
	t.Helper()
	vc := &discordgo.VoiceConnection{Ready: true, OpusSend: make(chan []byte, 64)}
	return &Transport{vc: vc, factory: NewFactory(nil, stubFfmpeg(t), inputs...)}, vc
}

func testTrack(locator string) player.Track {
	return player.Track{Title: locator, StreamURL: locator}
}

type completions struct {
	mu   sync.Mutex
	errs []error
}

func (c *completions) onComplete(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *completions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// wait returns the first completion, then checks that no other one follows.
func (c *completions) wait(t *testing.T) error {
	t.Helper()
	require.Eventually(t, func() bool { return c.count() > 0 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.errs, 1)
	return c.errs[0]
}

func TestTransportPlaysToCompletion(t *testing.T) {
	transport, vc := newTestTransport(t)
	var done completions

	require.NoError(t, transport.Play(testTrack("https://cdn.test/song"), 1, done.onComplete))

	assert.NoError(t, done.wait(t))
	assert.Len(t, vc.OpusSend, testFrames)
	assert.False(t, transport.IsPlaying())
	assert.False(t, transport.IsPaused())
}

func TestTransportNoAudioDecoded(t *testing.T) {
	transport, vc := newTestTransport(t)

	var empty completions
	require.NoError(t, transport.Play(testTrack("https://cdn.test/empty"), 1, empty.onComplete))
	err := empty.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio decoded")

	var broken completions
	require.NoError(t, transport.Play(testTrack("https://cdn.test/broken"), 1, broken.onComplete))
	err = broken.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio decoded")
	assert.Contains(t, err.Error(), "invalid data found")

	assert.Empty(t, vc.OpusSend)
}

func TestTransportStopWhilePaused(t *testing.T) {
	transport, _ := newTestTransport(t)
	var done completions

	require.NoError(t, transport.Play(testTrack("https://cdn.test/hold"), 1, done.onComplete))
	assert.True(t, transport.IsPlaying())

	transport.Pause()
	assert.True(t, transport.IsPaused())
	assert.False(t, transport.IsPlaying())

	transport.Stop()
	assert.False(t, transport.IsPlaying())
	assert.False(t, transport.IsPaused())

	assert.NoError(t, done.wait(t))
}

func TestTransportPlayReplacesLiveStream(t *testing.T) {
	transport, vc := newTestTransport(t)
	var first, second completions

	require.NoError(t, transport.Play(testTrack("https://cdn.test/hold"), 1, first.onComplete))
	require.NoError(t, transport.Play(testTrack("https://cdn.test/next"), 1, second.onComplete))

	assert.NoError(t, first.wait(t))
	assert.NoError(t, second.wait(t))
	assert.Len(t, vc.OpusSend, testFrames)
	assert.False(t, transport.IsPlaying())
}

func TestTransportPlayNotReady(t *testing.T) {
	transport, vc := newTestTransport(t)
	vc.Ready = false
	var done completions

	err := transport.Play(testTrack("https://cdn.test/song"), 1, done.onComplete)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, transport.IsConnected())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, done.count())
}

type closeRecorder struct {
	io.Reader
	closed *atomic.Bool
}

func (c *closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}

// libraryInput serves "lib:" locators, optionally waiting for release first.
type libraryInput struct {
	release chan struct{}
	err     error
	opened  atomic.Int32
	closed  atomic.Bool
}

func (l *libraryInput) Scheme() string { return "lib" }

func (l *libraryInput) Open(locator string) (io.ReadCloser, error) {
	l.opened.Add(1)
	if l.release != nil {
		<-l.release
	}
	if l.err != nil {
		return nil, l.err
	}
	return &closeRecorder{Reader: strings.NewReader("content"), closed: &l.closed}, nil
}

func TestTransportPipesProvidedInput(t *testing.T) {
	input := &libraryInput{}
	transport, vc := newTestTransport(t, input)
	var done completions

	require.NoError(t, transport.Play(testTrack("lib:42"), 1, done.onComplete))

	assert.NoError(t, done.wait(t))
	assert.Equal(t, int32(1), input.opened.Load())
	assert.True(t, input.closed.Load())
	assert.Len(t, vc.OpusSend, testFrames)
}

func TestTransportSlowInputDoesNotBlockPlay(t *testing.T) {
	input := &libraryInput{release: make(chan struct{})}
	transport, _ := newTestTransport(t, input)
	var done completions

	start := time.Now()
	require.NoError(t, transport.Play(testTrack("lib:42"), 1, done.onComplete))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	require.Eventually(t, func() bool { return input.opened.Load() == 1 }, waitFor, tick)
	assert.True(t, transport.IsPlaying())

	transport.Stop()
	assert.False(t, transport.IsPlaying())
	close(input.release)

	assert.NoError(t, done.wait(t))
	assert.True(t, input.closed.Load())
}

func TestTransportInputFailureReportedOnCompletion(t *testing.T) {
	input := &libraryInput{err: errors.New("library unreachable")}
	transport, vc := newTestTransport(t, input)
	var done completions

	require.NoError(t, transport.Play(testTrack("lib:42"), 1, done.onComplete))

	err := done.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library unreachable")
	assert.Empty(t, vc.OpusSend)
}

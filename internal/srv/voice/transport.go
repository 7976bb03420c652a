package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/sirupsen/logrus"
	"layeh.com/gopus"
)

const (
	sendTimeout  = 5 * time.Second
	pausePolling = 100 * time.Millisecond
	waitDelay    = 5 * time.Second
)

var ErrNotReady = errors.New("voice connection not ready")

// InputProvider opens tracks whose locator ffmpeg cannot fetch by itself. The
// returned content is piped to ffmpeg's stdin.
type InputProvider interface {
	Scheme() string
	Open(locator string) (io.ReadCloser, error)
}

// Factory opens discord voice connections.
type Factory struct {
	session    *discordgo.Session
	ffmpegPath string
	inputs     map[string]InputProvider
}

func NewFactory(session *discordgo.Session, ffmpegPath string, inputs ...InputProvider) *Factory {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	factory := &Factory{
		session:    session,
		ffmpegPath: ffmpegPath,
		inputs:     make(map[string]InputProvider),
	}
	for _, input := range inputs {
		factory.inputs[input.Scheme()] = input
	}
	return factory
}

func (f *Factory) Connect(ctx context.Context, destination player.VoiceDestination) (player.Transport, error) {
	if !destination.Joinable() {
		return nil, player.ErrNotVoiceChannel
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := f.session.ChannelVoiceJoin(destination.GuildId(), destination.ChannelId(), false, true)
	if err != nil {
		return nil, fmt.Errorf("voice join %s: %w", destination.Name(), err)
	}
	logrus.Debugf("Voice connection ready in guild %s, channel %s", destination.GuildId(), destination.ChannelId())
	return &Transport{vc: vc, factory: f}, nil
}

// Transport streams tracks to one voice connection through ffmpeg and opus.
type Transport struct {
	lock    sync.Mutex
	vc      *discordgo.VoiceConnection
	factory *Factory
	stream  *stream
}

type stream struct {
	track  player.Track
	stderr bytes.Buffer
	volume atomic.Uint64
	paused atomic.Bool

	// set once by start, on the stream goroutine
	lock  sync.Mutex
	cmd   *exec.Cmd
	input io.Closer
	pcm   io.Reader

	stopped     atomic.Bool
	stopOnce    sync.Once
	stopChannel chan struct{}
}

func newStream(track player.Track, volume float64) *stream {
	s := &stream{track: track, stopChannel: make(chan struct{})}
	s.setVolume(volume)
	return s
}

func (s *stream) setVolume(volume float64) {
	s.volume.Store(math.Float64bits(volume))
}

func (s *stream) currentVolume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// stop ends the stream without waiting for its goroutine. A stream still opening
// its input gives up as soon as start returns.
func (s *stream) stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopChannel)
		s.lock.Lock()
		cmd := s.cmd
		s.lock.Unlock()
		kill(cmd)
	})
}

// wait releases the input and reaps ffmpeg. Stream goroutine only.
func (s *stream) wait() error {
	if s.input != nil {
		s.input.Close()
	}
	if s.cmd == nil {
		return nil
	}
	return s.cmd.Wait()
}

func kill(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logrus.Debugf("Kill ffmpeg: %v", err)
	}
}

func (t *Transport) Move(ctx context.Context, destination player.VoiceDestination) error {
	if !destination.Joinable() {
		return player.ErrNotVoiceChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.vc.ChangeChannel(destination.ChannelId(), false, true)
}

func (t *Transport) Disconnect() error {
	t.Stop()
	return t.vc.Disconnect()
}

// Play only swaps streams: opening the input and starting ffmpeg happen on the
// stream goroutine, and their failures come back through onComplete.
func (t *Transport) Play(track player.Track, volume float64, onComplete func(err error)) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.ready() {
		return ErrNotReady
	}
	if t.stream != nil {
		t.stream.stop()
	}

	s := newStream(track, volume)
	t.stream = s

	go t.run(s, onComplete)
	return nil
}

func (t *Transport) run(s *stream, onComplete func(err error)) {
	err := t.factory.start(s)
	if err == nil && !s.stopped.Load() {
		err = t.pump(s)
	}
	s.stop()
	waitErr := s.wait()

	t.lock.Lock()
	if t.stream == s {
		t.stream = nil
	}
	t.lock.Unlock()

	if s.stopped.Load() && err == nil {
		logrus.Debugf("Stream %q stopped", s.track.Title)
	} else if err != nil {
		if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
			err = fmt.Errorf("%w (ffmpeg: %s)", err, detail)
		} else if waitErr != nil {
			err = fmt.Errorf("%w (ffmpeg: %v)", err, waitErr)
		}
	}
	onComplete(err)
}

// pump reads pcm frames and sends them as opus until the input ends or the stream is stopped.
func (t *Transport) pump(s *stream) error {
	encoder, err := gopus.NewEncoder(frameRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	if err := t.vc.Speaking(true); err != nil {
		logrus.Debugf("Speaking(true): %v", err)
	}
	defer func() {
		t.lock.Lock()
		replaced := t.stream != s
		t.lock.Unlock()
		// a replacing stream already owns the speaking flag
		if replaced {
			return
		}
		if err := t.vc.Speaking(false); err != nil {
			logrus.Debugf("Speaking(false): %v", err)
		}
	}()

	pcmBuf := make([]byte, frameSize*channels*2)
	samples := make([]int16, frameSize*channels)
	frames := 0
	for {
		for s.paused.Load() {
			select {
			case <-s.stopChannel:
				return nil
			case <-time.After(pausePolling):
			}
		}

		_, err := io.ReadFull(s.pcm, pcmBuf)
		if s.stopped.Load() {
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if frames == 0 {
				return errors.New("no audio decoded")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		decodeFrame(samples, pcmBuf)
		applyVolume(samples, s.currentVolume())
		opus, err := encoder.Encode(samples, frameSize, maxBytes)
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		if !t.ready() {
			return ErrNotReady
		}
		select {
		case t.vc.OpusSend <- opus:
			frames++
		case <-s.stopChannel:
			return nil
		case <-time.After(sendTimeout):
			return errors.New("voice connection stalled")
		}
	}
}

func (t *Transport) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.stream != nil {
		t.stream.stop()
	}
}

func (t *Transport) Pause() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.stream != nil {
		t.stream.paused.Store(true)
	}
}

func (t *Transport) Resume() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.stream != nil {
		t.stream.paused.Store(false)
	}
}

func (t *Transport) SetVolume(volume float64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.stream != nil {
		t.stream.setVolume(volume)
	}
}

func (t *Transport) IsConnected() bool {
	return t.ready()
}

func (t *Transport) IsPlaying() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stream != nil && !t.stream.stopped.Load() && !t.stream.paused.Load()
}

func (t *Transport) IsPaused() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stream != nil && !t.stream.stopped.Load() && t.stream.paused.Load()
}

func (t *Transport) ready() bool {
	t.vc.RLock()
	defer t.vc.RUnlock()
	return t.vc.Ready && t.vc.OpusSend != nil
}

// start opens the track input and launches ffmpeg for s. Locators with a
// registered scheme are piped in. A stream stopped meanwhile is left unstarted.
func (f *Factory) start(s *stream) error {
	var input io.ReadCloser
	source := s.track.StreamURL
	if scheme, _, found := strings.Cut(s.track.StreamURL, ":"); found {
		if provider, ok := f.inputs[scheme]; ok {
			var err error
			input, err = provider.Open(s.track.StreamURL)
			if err != nil {
				return fmt.Errorf("open %s: %w", s.track.StreamURL, err)
			}
			source = "pipe:0"
		}
	}
	closeInput := func() {
		if input != nil {
			input.Close()
		}
	}
	if s.stopped.Load() {
		closeInput()
		return nil
	}

	cmd := exec.Command(f.ffmpegPath, ffmpegArgs(source, input != nil)...)
	cmd.Stderr = &s.stderr
	cmd.WaitDelay = waitDelay
	if input != nil {
		cmd.Stdin = input
	}
	pcm, err := cmd.StdoutPipe()
	if err != nil {
		closeInput()
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		closeInput()
		return fmt.Errorf("command start error: %w", err)
	}

	s.lock.Lock()
	s.cmd = cmd
	if input != nil {
		s.input = input
	}
	s.pcm = pcm
	stopped := s.stopped.Load()
	s.lock.Unlock()
	if stopped {
		kill(cmd)
	}
	logrus.Debugf("ffmpeg started for %q", s.track.Title)
	return nil
}

func ffmpegArgs(source string, piped bool) []string {
	args := []string{}
	if !piped {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-i", source,
		"-f", "s16le",
		"-ar", strconv.Itoa(frameRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

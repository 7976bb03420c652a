package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDestination struct {
	guildId   string
	channelId string
	joinable  bool
}

func voiceChannel(guildId, channelId string) *fakeDestination {
	return &fakeDestination{guildId: guildId, channelId: channelId, joinable: true}
}

func (d *fakeDestination) GuildId() string   { return d.guildId }
func (d *fakeDestination) ChannelId() string { return d.channelId }
func (d *fakeDestination) Name() string      { return "#" + d.channelId }
func (d *fakeDestination) Joinable() bool    { return d.joinable }

type fakeResolver struct {
	mu      sync.Mutex
	failing map[string]error
	calls   int
}

func (r *fakeResolver) Resolve(ctx context.Context, query string) (Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.failing[query]; ok {
		return Track{}, err
	}
	return Track{Title: query, StreamURL: "stream://" + query, WebpageURL: "https://example.com/" + query, Source: "fake"}, nil
}

func (r *fakeResolver) fail(query string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing == nil {
		r.failing = make(map[string]error)
	}
	r.failing[query] = err
}

type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	err        error
}

func (f *fakeFactory) Connect(ctx context.Context, destination VoiceDestination) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTransport{connected: true, channelId: destination.ChannelId()}
	f.transports = append(f.transports, t)
	return t, nil
}

// stoppingFactory stops the scheduler while a connection is being set up.
type stoppingFactory struct {
	*fakeFactory
	stop func()
}

func (f *stoppingFactory) Connect(ctx context.Context, destination VoiceDestination) (Transport, error) {
	transport, err := f.fakeFactory.Connect(ctx, destination)
	if err == nil {
		transport.(*fakeTransport).disconnectErr = errors.New("gateway gone")
	}
	f.stop()
	return transport, err
}

func (f *fakeFactory) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}

// fakeTransport plays nothing: tests end streams with finish, from their own goroutine.
type fakeTransport struct {
	mu            sync.Mutex
	channelId     string
	connected     bool
	playing       bool
	paused        bool
	volume        float64
	plays         []Track
	onComplete    func(error)
	playErr       error
	moves         []string
	disconnects   int
	disconnectErr error
}

func (f *fakeTransport) Move(ctx context.Context, destination VoiceDestination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelId = destination.ChannelId()
	f.moves = append(f.moves, destination.ChannelId())
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
	return f.disconnectErr
}

func (f *fakeTransport) Play(track Track, volume float64, onComplete func(err error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	if !f.connected {
		return errors.New("not connected")
	}
	if previous := f.onComplete; previous != nil {
		go previous(nil)
	}
	f.plays = append(f.plays, track)
	f.playing = true
	f.paused = false
	f.volume = volume
	f.onComplete = onComplete
	return nil
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	cb := f.onComplete
	f.onComplete = nil
	f.playing = false
	f.paused = false
	f.mu.Unlock()
	if cb != nil {
		go cb(nil)
	}
}

// finish ends the current stream as the transport goroutine would.
func (f *fakeTransport) finish(err error) {
	f.mu.Lock()
	cb := f.onComplete
	f.onComplete = nil
	f.playing = false
	f.paused = false
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *fakeTransport) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playing {
		f.playing = false
		f.paused = true
	}
}

func (f *fakeTransport) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		f.paused = false
		f.playing = true
	}
}

func (f *fakeTransport) SetVolume(volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeTransport) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeTransport) playTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	titles := make([]string, 0, len(f.plays))
	for _, t := range f.plays {
		titles = append(titles, t.Title)
	}
	return titles
}

func (f *fakeTransport) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

func (f *fakeTransport) currentVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

type fakeReply struct {
	mu       sync.Mutex
	messages []string
}

func (r *fakeReply) Send(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *fakeReply) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type fakeVolumes struct {
	mu      sync.Mutex
	volumes map[string]int64
}

func (v *fakeVolumes) GuildVolume(guildId string) (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	vol, ok := v.volumes[guildId]
	return vol, ok
}

func (v *fakeVolumes) SetGuildVolume(guildId string, volume int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.volumes == nil {
		v.volumes = make(map[string]int64)
	}
	v.volumes[guildId] = volume
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) count(evType EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == evType {
			n++
		}
	}
	return n
}

type rig struct {
	ctrl     *Controller
	factory  *fakeFactory
	resolver *fakeResolver
	volumes  *fakeVolumes
	reply    *fakeReply
	events   *eventRecorder
}

func newRig(t *testing.T, configure ...func(cfg *ControllerConfig)) *rig {
	t.Helper()
	r := &rig{
		factory:  &fakeFactory{},
		resolver: &fakeResolver{},
		volumes:  &fakeVolumes{},
		reply:    &fakeReply{},
		events:   &eventRecorder{},
	}
	cfg := ControllerConfig{
		Pool:          NewResolvePool(r.resolver, 2, nil),
		Transports:    r.factory,
		Volumes:       r.volumes,
		Notifier:      r.events.notify,
		DefaultVolume: 50,
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	r.ctrl = NewController(cfg)
	r.ctrl.Start()
	t.Cleanup(r.ctrl.Close)
	return r
}

func (r *rig) enqueue(t *testing.T, guildId, query string) EnqueueResult {
	t.Helper()
	res, err := r.ctrl.Enqueue(context.Background(), EnqueueRequest{
		GuildId:     guildId,
		Query:       query,
		RequestedBy: "tester",
		Destination: voiceChannel(guildId, "music"),
		Reply:       r.reply,
	})
	if err != nil {
		t.Fatalf("enqueue %q: %v", query, err)
	}
	return res
}

func (r *rig) nowPlaying(guildId string) string {
	current, err := r.ctrl.NowPlaying(context.Background(), guildId)
	if err != nil || current == nil {
		return ""
	}
	return current.Title
}

func (r *rig) queueTitles(guildId string) []string {
	tracks, err := r.ctrl.ListQueue(context.Background(), guildId)
	if err != nil {
		return nil
	}
	titles := make([]string, 0, len(tracks))
	for _, t := range tracks {
		titles = append(titles, t.Title)
	}
	return titles
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

package player

import "context"

// Resolver turns a search query or URL into a Track. Implementations must be
// safe to call concurrently.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Track, error)
}

// VoiceDestination is a place a transport may connect to. Joinable is decided once,
// when the destination is built, so text channels never reach the transport.
type VoiceDestination interface {
	GuildId() string
	ChannelId() string
	Name() string
	Joinable() bool
}

type TransportFactory interface {
	Connect(ctx context.Context, destination VoiceDestination) (Transport, error)
}

// Transport is one live outbound audio connection. Play is called on the scheduler
// and must not wait on I/O: it replaces any stream still winding down and hands
// the new one to the transport's own goroutine. onComplete is then called exactly
// once from that goroutine, when the stream ends or is stopped or fails, failing
// to open included. When Play returns an error onComplete is never called. Stop
// must not block on the stream goroutine.
type Transport interface {
	Move(ctx context.Context, destination VoiceDestination) error
	Disconnect() error
	Play(track Track, volume float64, onComplete func(err error)) error
	Stop()
	Pause()
	Resume()
	SetVolume(volume float64)
	IsConnected() bool
	IsPlaying() bool
	IsPaused() bool
}

// ReplySink receives asynchronous status text. Delivery failures are the sink's problem.
type ReplySink interface {
	Send(text string)
}

// VolumeStore remembers each guild's preferred volume between sessions.
type VolumeStore interface {
	GuildVolume(guildId string) (int64, bool)
	SetGuildVolume(guildId string, volume int64)
}

// Notifier receives player events (track started, queue finished, transport lost).
type Notifier func(ev Event)

type EventType int

const (
	EventTrackStarted EventType = iota
	EventIdle
	EventDisconnected
)

type Event struct {
	Type    EventType
	GuildId string
	Track   Track
}

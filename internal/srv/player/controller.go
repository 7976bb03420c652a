package player

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type ControllerConfig struct {
	Scheduler  *Scheduler
	Registry   *Registry
	Pool       *ResolvePool
	Transports TransportFactory

	Volumes       VolumeStore // optional
	Notifier      Notifier    // optional, called on the scheduler goroutine
	DefaultVolume int64       // percent, used when Volumes knows nothing of a guild
	PreviewSize   int         // queued tracks listed by Status
	Shuffle       func(n int, swap func(i, j int))
}

// Controller is the public face of the player. Its methods may be called from any
// goroutine; state changes all happen on the Scheduler.
type Controller struct {
	scheduler   *Scheduler
	registry    *Registry
	pool        *ResolvePool
	transports  TransportFactory
	volumes     VolumeStore
	notifier    Notifier
	previewSize int
	shuffle     func(n int, swap func(i, j int))
}

func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		scheduler:   cfg.Scheduler,
		registry:    cfg.Registry,
		pool:        cfg.Pool,
		transports:  cfg.Transports,
		volumes:     cfg.Volumes,
		notifier:    cfg.Notifier,
		previewSize: cfg.PreviewSize,
		shuffle:     cfg.Shuffle,
	}
	if c.scheduler == nil {
		c.scheduler = NewScheduler()
	}
	defaultVolume := cfg.DefaultVolume
	if defaultVolume <= 0 || defaultVolume > 100 {
		defaultVolume = 100
	}
	if c.registry == nil {
		c.registry = NewRegistry(func(guildId string) float64 {
			if c.volumes != nil {
				if v, ok := c.volumes.GuildVolume(guildId); ok && v >= 0 && v <= 100 {
					return float64(v) / 100
				}
			}
			return float64(defaultVolume) / 100
		})
	}
	if c.previewSize <= 0 {
		c.previewSize = 10
	}
	return c
}

func (c *Controller) Start() {
	c.scheduler.Start()
	if c.pool != nil {
		c.pool.Start()
	}
}

// Close halts the resolver pool and the scheduler. Call Shutdown first to release transports.
func (c *Controller) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
	c.scheduler.Stop()
}

// EnqueueRequest describes one play request. Destination is where the caller
// currently is; it is only used when the session is not connected yet.
type EnqueueRequest struct {
	GuildId     string
	Query       string
	RequestedBy string
	Destination VoiceDestination
	Reply       ReplySink
}

func (c *Controller) Join(ctx context.Context, guildId string, destination VoiceDestination, reply ReplySink) (JoinResult, error) {
	if destination == nil {
		return JoinResult{}, ErrNoVoiceChannel
	}
	if !destination.Joinable() {
		return JoinResult{}, ErrNotVoiceChannel
	}
	s, err := c.holdLock(ctx, guildId, true)
	if err != nil {
		return JoinResult{}, err
	}
	defer c.releaseLock(s)
	return c.connect(ctx, s, destination, reply)
}

func (c *Controller) Leave(ctx context.Context, guildId string) (LeaveResult, error) {
	s, err := c.holdLock(ctx, guildId, false)
	if err != nil {
		return LeaveResult{}, err
	}
	if s == nil {
		return LeaveResult{}, nil
	}
	defer c.releaseLock(s)

	var transport Transport
	var wasConnected bool
	err = c.commit(func() {
		transport = s.transport
		wasConnected = s.connected()
		s.transport = nil
		s.current = nil
		s.queue.Clear()
		s.loopMode = LoopOff
		s.skipRequested = false
		s.playSeq++
		c.registry.Remove(guildId)
		c.emit(Event{Type: EventDisconnected, GuildId: guildId})
	})
	if err != nil {
		return LeaveResult{}, err
	}
	if transport != nil {
		transport.Stop()
		if err := transport.Disconnect(); err != nil {
			logrus.WithField("guild", guildId).Warnf("Unable to disconnect cleanly: %v", err)
		}
	}
	logrus.WithField("guild", guildId).Infof("Left voice")
	return LeaveResult{WasConnected: wasConnected}, nil
}

func (c *Controller) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return EnqueueResult{}, &ValidationError{Status: "nothing to play, give a search query or a URL"}
	}

	track, err := c.pool.Resolve(ctx, query)
	if err != nil {
		var resolutionErr *ResolutionError
		switch {
		case errors.As(err, &resolutionErr), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrPoolClosed):
			return EnqueueResult{}, err
		default:
			return EnqueueResult{}, &ResolutionError{Query: query, Err: err}
		}
	}
	if track.RequestedBy == "" {
		track.RequestedBy = req.RequestedBy
	}

	if err := c.ensureConnected(ctx, req); err != nil {
		return EnqueueResult{}, err
	}

	var result EnqueueResult
	err = c.locked(ctx, req.GuildId, true, nil, func(s *SessionState) error {
		if req.Reply != nil {
			s.reply = req.Reply
		}
		before := s.queue.Size()
		s.queue.PushBack(track)
		result.Track = track
		if s.current == nil {
			c.playNext(s, false)
			if popped := before + 1 - s.queue.Size(); popped > before {
				if s.current == nil {
					return &StateError{Status: "unable to start playback"}
				}
				result.Position = 0
				return nil
			}
		}
		result.Position = s.queue.Size()
		return nil
	})
	if err != nil {
		return EnqueueResult{}, err
	}
	logrus.WithField("guild", req.GuildId).Debugf("Enqueued %q at position %d", track.Title, result.Position)
	return result, nil
}

// Skip stops the current stream. The advance itself is left to the completion bridge.
func (c *Controller) Skip(ctx context.Context, guildId string) (SkipResult, error) {
	var result SkipResult
	err := c.locked(ctx, guildId, false, ErrNothingPlaying, func(s *SessionState) error {
		if s.current == nil {
			return ErrNothingPlaying
		}
		result.Skipped = *s.current
		s.skipRequested = true
		if s.transportBusy() {
			s.transport.Stop()
			return nil
		}
		// the transport already lost the stream: nobody else will advance
		c.advance(s, false)
		return nil
	})
	return result, err
}

// Stop clears the queue and ends the current track without advancing.
func (c *Controller) Stop(ctx context.Context, guildId string) (StopResult, error) {
	var result StopResult
	err := c.locked(ctx, guildId, false, ErrNotConnected, func(s *SessionState) error {
		result.Cleared = s.queue.Clear()
		result.WasPlaying = s.current != nil
		s.current = nil
		s.skipRequested = false
		s.playSeq++
		if s.transport != nil {
			s.transport.Stop()
		}
		c.emit(Event{Type: EventIdle, GuildId: guildId})
		return nil
	})
	return result, err
}

func (c *Controller) Pause(ctx context.Context, guildId string) (PauseResult, error) {
	err := c.inspect(ctx, guildId, ErrNothingPlaying, func(s *SessionState) error {
		switch {
		case s.transport == nil || s.current == nil:
			return ErrNothingPlaying
		case s.transport.IsPaused():
			return ErrAlreadyPaused
		case !s.transport.IsPlaying():
			return ErrNothingPlaying
		}
		s.transport.Pause()
		return nil
	})
	return PauseResult{Paused: true}, err
}

func (c *Controller) Resume(ctx context.Context, guildId string) (PauseResult, error) {
	err := c.inspect(ctx, guildId, ErrNotPaused, func(s *SessionState) error {
		if s.transport == nil || !s.transport.IsPaused() {
			return ErrNotPaused
		}
		s.transport.Resume()
		return nil
	})
	return PauseResult{Paused: false}, err
}

// SetLoop takes effect on the next advance.
func (c *Controller) SetLoop(ctx context.Context, guildId string, mode LoopMode) (LoopResult, error) {
	err := c.inspect(ctx, guildId, ErrNotConnected, func(s *SessionState) error {
		s.loopMode = mode
		return nil
	})
	return LoopResult{Mode: mode}, err
}

// SetVolume applies percent to the live stream, if any, and remembers it for the guild.
func (c *Controller) SetVolume(ctx context.Context, guildId string, percent int64) (VolumeResult, error) {
	if percent < 0 || percent > 100 {
		return VolumeResult{}, ErrInvalidVolume
	}
	result := VolumeResult{Percent: percent}
	err := c.inspect(ctx, guildId, nil, func(s *SessionState) error {
		s.volume = float64(percent) / 100
		if s.transportBusy() {
			s.transport.SetVolume(s.volume)
			result.Live = true
		}
		return nil
	})
	if err != nil {
		return VolumeResult{}, err
	}
	if c.volumes != nil {
		c.volumes.SetGuildVolume(guildId, percent)
	}
	return result, nil
}

func (c *Controller) RemoveAt(ctx context.Context, guildId string, position int) (RemoveResult, error) {
	result := RemoveResult{Position: position}
	err := c.locked(ctx, guildId, false, ErrInvalidPosition, func(s *SessionState) error {
		removed, err := s.queue.RemoveAt(position)
		if err != nil {
			return err
		}
		result.Removed = removed
		return nil
	})
	return result, err
}

// Shuffle reorders the upcoming tracks, never the current one.
func (c *Controller) Shuffle(ctx context.Context, guildId string) (ShuffleResult, error) {
	var result ShuffleResult
	err := c.locked(ctx, guildId, false, nil, func(s *SessionState) error {
		result.Count = s.queue.Size()
		if result.Count >= 2 {
			s.queue.Shuffle(c.shuffle)
		}
		return nil
	})
	return result, err
}

// ClearQueue drops the upcoming tracks and lets the current one finish.
func (c *Controller) ClearQueue(ctx context.Context, guildId string) (ClearResult, error) {
	var result ClearResult
	err := c.locked(ctx, guildId, false, nil, func(s *SessionState) error {
		result.Cleared = s.queue.Clear()
		return nil
	})
	return result, err
}

func (c *Controller) NowPlaying(ctx context.Context, guildId string) (*Track, error) {
	var current *Track
	err := c.inspect(ctx, guildId, nil, func(s *SessionState) error {
		if s.current != nil {
			t := *s.current
			current = &t
		}
		return nil
	})
	return current, err
}

func (c *Controller) ListQueue(ctx context.Context, guildId string) ([]Track, error) {
	tracks := []Track{}
	err := c.inspect(ctx, guildId, nil, func(s *SessionState) error {
		tracks = s.queue.All()
		return nil
	})
	return tracks, err
}

func (c *Controller) Status(ctx context.Context, guildId string) (Status, error) {
	status := Status{GuildId: guildId, Upcoming: []Track{}}
	err := c.scheduler.Do(ctx, func() {
		s, ok := c.registry.Get(guildId)
		if !ok {
			status.Volume = int64(c.registry.defaultVolume(guildId)*100 + 0.5)
			return
		}
		status.Connected = s.connected()
		if s.boundVoiceChannel != nil {
			status.Channel = s.boundVoiceChannel.Name()
		}
		if s.current != nil {
			t := *s.current
			status.Current = &t
		}
		status.Paused = s.transport != nil && s.transport.IsPaused()
		status.Upcoming = s.queue.Peek(c.previewSize)
		status.Remaining = s.queue.Size() - len(status.Upcoming)
		status.LoopMode = s.loopMode
		status.Volume = int64(s.volume*100 + 0.5)
	})
	if err != nil {
		return Status{}, err
	}
	return status, nil
}

// Sessions lists the guild ids with a live session.
func (c *Controller) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.scheduler.Do(ctx, func() {
		ids = c.registry.Ids()
	})
	return ids, err
}

// HandleTransportLost is called when the platform reports the bot out of voice.
// The transport is dropped and the current track forgotten; queue, loop and
// volume survive so the next join or play picks up where it left off.
func (c *Controller) HandleTransportLost(guildId string) {
	c.scheduler.Post(func() {
		s, ok := c.registry.Get(guildId)
		if !ok {
			return
		}
		s.mutationLock.acquire(func() {
			defer s.mutationLock.release()
			if s.removed || s.transport == nil {
				return
			}
			transport := s.transport
			s.transport = nil
			s.current = nil
			s.skipRequested = false
			s.playSeq++
			logrus.WithField("guild", guildId).Warnf("Voice connection lost")
			c.emit(Event{Type: EventDisconnected, GuildId: guildId})
			go func() {
				transport.Stop()
				if err := transport.Disconnect(); err != nil {
					logrus.WithField("guild", guildId).Debugf("Disconnect after loss: %v", err)
				}
			}()
		})
	})
}

// Shutdown leaves every session.
func (c *Controller) Shutdown(ctx context.Context) error {
	ids, err := c.Sessions(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, guildId := range ids {
		if _, err := c.Leave(ctx, guildId); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) ensureConnected(ctx context.Context, req EnqueueRequest) error {
	s, err := c.holdLock(ctx, req.GuildId, true)
	if err != nil {
		return err
	}
	defer c.releaseLock(s)

	var connected bool
	var bound VoiceDestination
	if err := c.commit(func() {
		connected = s.connected()
		bound = s.boundVoiceChannel
	}); err != nil {
		return err
	}
	if connected {
		return nil
	}
	destination := req.Destination
	if destination == nil {
		destination = bound
	}
	if destination == nil {
		return ErrNotConnected
	}
	if !destination.Joinable() {
		return ErrNotVoiceChannel
	}
	_, err = c.connect(ctx, s, destination, req.Reply)
	return err
}

// connect runs off the scheduler with s's mutation lock held.
func (c *Controller) connect(ctx context.Context, s *SessionState, destination VoiceDestination, reply ReplySink) (JoinResult, error) {
	result := JoinResult{Channel: destination.Name()}
	log := logrus.WithField("guild", s.guildId)

	var transport Transport
	var bound VoiceDestination
	if err := c.commit(func() {
		transport = s.transport
		bound = s.boundVoiceChannel
		if reply != nil {
			s.reply = reply
		}
	}); err != nil {
		return JoinResult{}, err
	}

	if transport != nil && transport.IsConnected() {
		if bound != nil && bound.ChannelId() == destination.ChannelId() {
			result.AlreadyConnected = true
			return result, nil
		}
		if err := transport.Move(ctx, destination); err != nil {
			return JoinResult{}, &ConnectionError{Status: "unable to move to " + destination.Name(), Err: err}
		}
		if err := c.commit(func() { s.boundVoiceChannel = destination }); err != nil {
			return JoinResult{}, err
		}
		log.Infof("Moved to %s", destination.Name())
		result.Moved = true
		return result, nil
	}

	if transport != nil {
		// stale handle from a connection that died on its own
		if err := transport.Disconnect(); err != nil {
			log.Debugf("Discard stale transport: %v", err)
		}
	}

	transport, err := c.transports.Connect(ctx, destination)
	if err != nil {
		return JoinResult{}, &ConnectionError{Status: "unable to join " + destination.Name(), Err: err}
	}
	if err := c.commit(func() {
		s.transport = transport
		s.boundVoiceChannel = destination
		s.current = nil
		s.playSeq++
	}); err != nil {
		if disconnectErr := transport.Disconnect(); disconnectErr != nil {
			log.Warnf("Unable to disconnect cleanly: %v", disconnectErr)
		}
		return JoinResult{}, err
	}
	log.Infof("Joined %s", destination.Name())
	return result, nil
}

// commit runs fn on the scheduler regardless of the caller's context: it is used
// for short state writes that must not be half applied.
func (c *Controller) commit(fn func()) error {
	return c.scheduler.Do(context.Background(), fn)
}

// inspect runs fn on the scheduler without the mutation lock. When the session does
// not exist, missing is returned (nil means silently succeed).
func (c *Controller) inspect(ctx context.Context, guildId string, missing error, fn func(s *SessionState) error) error {
	var result error
	err := c.scheduler.Do(ctx, func() {
		s, ok := c.registry.Get(guildId)
		if !ok {
			result = missing
			return
		}
		result = fn(s)
	})
	if err != nil {
		return err
	}
	return result
}

// claim settles the race between a lock grant on the scheduler and a caller
// whose context ends first: exactly one of grant and abandon succeeds.
type claim struct {
	state atomic.Int32
}

const (
	claimPending int32 = iota
	claimGranted
	claimAbandoned
)

func (c *claim) grant() bool   { return c.state.CompareAndSwap(claimPending, claimGranted) }
func (c *claim) abandon() bool { return c.state.CompareAndSwap(claimPending, claimAbandoned) }

// locked runs fn on the scheduler while holding the session's mutation lock.
// When ctx ends before the lock is granted fn never runs. Once granted, the
// caller waits for fn's outcome whatever happens to ctx.
func (c *Controller) locked(ctx context.Context, guildId string, create bool, missing error, fn func(s *SessionState) error) error {
	result := make(chan error, 1)
	var cl claim
	var attempt func()
	attempt = func() {
		s, ok := c.lookup(guildId, create)
		if !ok {
			result <- missing
			return
		}
		s.mutationLock.acquire(func() {
			if s.removed {
				s.mutationLock.release()
				attempt()
				return
			}
			if ctx.Err() != nil || !cl.grant() {
				s.mutationLock.release()
				result <- ctx.Err()
				return
			}
			result <- c.runLocked(s, fn)
		})
	}
	if !c.scheduler.Post(attempt) {
		return ErrSchedulerStopped
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if cl.abandon() {
			return ctx.Err()
		}
		select {
		case err := <-result:
			return err
		case <-c.scheduler.Done():
			return c.lateResult(result)
		}
	case <-c.scheduler.Done():
		return c.lateResult(result)
	}
}

// lateResult picks up an outcome delivered just before the scheduler exited.
func (c *Controller) lateResult(result chan error) error {
	select {
	case err := <-result:
		return err
	default:
		return ErrSchedulerStopped
	}
}

// runLocked calls fn and hands the mutation lock on, even when fn panics.
func (c *Controller) runLocked(s *SessionState, fn func(s *SessionState) error) (err error) {
	defer s.mutationLock.release()
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithField("guild", s.guildId).Errorf("recovered from panic in session operation: [%v] - stack trace : \n [%s]", rec, debug.Stack())
			err = fmt.Errorf("session operation failed: %v", rec)
		}
	}()
	return fn(s)
}

// holdLock takes the session's mutation lock for the calling goroutine, which must
// hand it back with releaseLock. A nil session with a nil error means the session
// does not exist and create was false.
func (c *Controller) holdLock(ctx context.Context, guildId string, create bool) (*SessionState, error) {
	granted := make(chan *SessionState, 1)
	var cl claim
	var attempt func()
	attempt = func() {
		s, ok := c.lookup(guildId, create)
		if !ok {
			granted <- nil
			return
		}
		s.mutationLock.acquire(func() {
			if s.removed {
				s.mutationLock.release()
				attempt()
				return
			}
			if ctx.Err() != nil || !cl.grant() {
				s.mutationLock.release()
				return
			}
			granted <- s
		})
	}
	if !c.scheduler.Post(attempt) {
		return nil, ErrSchedulerStopped
	}
	select {
	case s := <-granted:
		return s, nil
	case <-ctx.Done():
		if cl.abandon() {
			return nil, ctx.Err()
		}
		// granted concurrently: nothing was done with the lock yet
		c.releaseLock(<-granted)
		return nil, ctx.Err()
	case <-c.scheduler.Done():
		return nil, ErrSchedulerStopped
	}
}

func (c *Controller) releaseLock(s *SessionState) {
	if s == nil {
		return
	}
	c.scheduler.Post(func() { s.mutationLock.release() })
}

func (c *Controller) lookup(guildId string, create bool) (*SessionState, bool) {
	if create {
		return c.registry.GetOrCreate(guildId), true
	}
	return c.registry.Get(guildId)
}

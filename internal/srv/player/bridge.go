package player

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// completion returns the callback handed to Transport.Play. It runs on the
// transport's goroutine and only posts onto the scheduler; a second call is dropped.
func (c *Controller) completion(guildId string, seq uint64, track Track) func(err error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			if !c.scheduler.Post(func() { c.onComplete(guildId, seq, track, err) }) {
				logrus.Debugf("Scheduler stopped, drop completion of %q in guild %s", track.Title, guildId)
			}
		})
	}
}

// onComplete is the advance entry point of the scheduler. Signals from a play
// call that has since been superseded (skip restarted, stop, leave, lost transport)
// are ignored.
func (c *Controller) onComplete(guildId string, seq uint64, track Track, err error) {
	s, ok := c.registry.Get(guildId)
	if !ok || s.playSeq != seq {
		logrus.Debugf("Ignore stale completion of %q in guild %s", track.Title, guildId)
		return
	}

	failed := err != nil
	if failed {
		var playbackErr *PlaybackError
		if !errors.As(err, &playbackErr) {
			playbackErr = &PlaybackError{GuildId: guildId, Track: track, Err: err}
		}
		logrus.WithField("guild", guildId).Warnf("%v", playbackErr)
		s.send("Error while playing " + track.String() + ", skipping")
	}

	s.mutationLock.acquire(func() {
		defer s.mutationLock.release()
		if s.removed || s.playSeq != seq {
			return
		}
		c.advance(s, failed)
	})
}

// advance moves the session to its next track. The mutation lock must be held.
func (c *Controller) advance(s *SessionState, failed bool) {
	skipped := s.skipRequested
	s.skipRequested = false
	previous := s.current
	s.current = nil

	if previous != nil && s.loopMode == LoopTrack && !skipped && !failed {
		if err := c.startTrack(s, *previous, false); err == nil {
			return
		}
	}
	if previous != nil && s.loopMode == LoopQueue {
		s.queue.PushBack(*previous)
	}
	c.playNext(s, true)
}

// playNext pops tracks until one starts or the queue runs dry. Tracks the transport
// refuses outright are dropped; a dead transport leaves the queue intact.
func (c *Controller) playNext(s *SessionState, announce bool) {
	for s.connected() {
		track, ok := s.queue.PopFront()
		if !ok {
			break
		}
		if err := c.startTrack(s, track, announce); err == nil {
			return
		}
	}
	s.current = nil
	s.playSeq++
	c.emit(Event{Type: EventIdle, GuildId: s.guildId})
}

// startTrack hands track to the transport. On success it becomes current.
func (c *Controller) startTrack(s *SessionState, track Track, announce bool) error {
	s.playSeq++
	if s.transport == nil {
		return ErrNotConnected
	}
	err := s.transport.Play(track, s.volume, c.completion(s.guildId, s.playSeq, track))
	if err != nil {
		logrus.WithField("guild", s.guildId).Warnf("%v", &PlaybackError{GuildId: s.guildId, Track: track, Err: err})
		s.current = nil
		return err
	}
	s.current = &track
	logrus.WithField("guild", s.guildId).Infof("Now playing %s", track.Title)
	if announce {
		s.send("Now playing: " + track.String())
	}
	c.emit(Event{Type: EventTrackStarted, GuildId: s.guildId, Track: track})
	return nil
}

func (c *Controller) emit(ev Event) {
	if c.notifier != nil {
		c.notifier(ev)
	}
}

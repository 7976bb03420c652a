package player

import "sort"

// SessionState is the per-guild aggregate. All fields are owned by the scheduler goroutine.
type SessionState struct {
	guildId string

	queue             Queue
	transport         Transport
	boundVoiceChannel VoiceDestination
	reply             ReplySink
	current           *Track
	loopMode          LoopMode
	volume            float64

	mutationLock mutationLock

	// playSeq identifies the latest Play (or Stop/Leave) so that completion
	// signals from an older stream can be recognised and dropped.
	playSeq       uint64
	skipRequested bool
	removed       bool
}

func newSessionState(guildId string, volume float64) *SessionState {
	return &SessionState{guildId: guildId, volume: volume}
}

func (s *SessionState) connected() bool {
	return s.transport != nil && s.transport.IsConnected()
}

// transportBusy reports a stream in flight, paused or not.
func (s *SessionState) transportBusy() bool {
	return s.transport != nil && (s.transport.IsPlaying() || s.transport.IsPaused())
}

func (s *SessionState) send(text string) {
	if s.reply == nil {
		return
	}
	reply := s.reply
	go reply.Send(text)
}

// mutationLock serialises advance transitions of one session. It lives on the
// scheduler: a holder is either a scheduler task or an operation goroutine that
// needs the session stable across transport I/O. Waiters are queued closures, so
// the scheduler never blocks on it.
type mutationLock struct {
	held    bool
	waiters []func()
}

// acquire runs granted immediately if the lock is free, otherwise once it is
// released. The grantee owns the lock until it calls release.
func (l *mutationLock) acquire(granted func()) {
	if !l.held {
		l.held = true
		granted()
		return
	}
	l.waiters = append(l.waiters, granted)
}

// release hands the lock to the next waiter, if any.
func (l *mutationLock) release() {
	if len(l.waiters) == 0 {
		l.held = false
		return
	}
	next := l.waiters[0]
	l.waiters[0] = nil
	l.waiters = l.waiters[1:]
	next()
}

// Registry maps guild ids to their SessionState. Scheduler goroutine only.
type Registry struct {
	sessions      map[string]*SessionState
	defaultVolume func(guildId string) float64
}

func NewRegistry(defaultVolume func(guildId string) float64) *Registry {
	if defaultVolume == nil {
		defaultVolume = func(string) float64 { return 1 }
	}
	return &Registry{
		sessions:      make(map[string]*SessionState),
		defaultVolume: defaultVolume,
	}
}

func (r *Registry) GetOrCreate(guildId string) *SessionState {
	s, ok := r.sessions[guildId]
	if !ok {
		s = newSessionState(guildId, r.defaultVolume(guildId))
		r.sessions[guildId] = s
	}
	return s
}

func (r *Registry) Get(guildId string) (*SessionState, bool) {
	s, ok := r.sessions[guildId]
	return s, ok
}

func (r *Registry) Remove(guildId string) {
	if s, ok := r.sessions[guildId]; ok {
		s.removed = true
		delete(r.sessions, guildId)
	}
}

func (r *Registry) Ids() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	return len(r.sessions)
}

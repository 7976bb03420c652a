package player

import (
	"fmt"
	"strings"
)

// Every Controller operation returns one of these on success. Message is the
// short text the command layer shows as is.

type JoinResult struct {
	Channel          string
	Moved            bool
	AlreadyConnected bool
}

func (r JoinResult) Message() string {
	switch {
	case r.AlreadyConnected:
		return "already connected to " + r.Channel
	case r.Moved:
		return "moved to " + r.Channel
	default:
		return "joined " + r.Channel
	}
}

type LeaveResult struct {
	WasConnected bool
}

func (r LeaveResult) Message() string {
	if !r.WasConnected {
		return "not connected"
	}
	return "disconnected"
}

type EnqueueResult struct {
	Track Track
	// Position is the 1-based queue position, 0 when the track started right away.
	Position int
}

func (r EnqueueResult) Message() string {
	if r.Position == 0 {
		return "now playing: " + r.Track.String()
	}
	return fmt.Sprintf("added to queue at position %d: %s", r.Position, r.Track.String())
}

type SkipResult struct {
	Skipped Track
}

func (r SkipResult) Message() string {
	return "skipped " + r.Skipped.String()
}

type StopResult struct {
	Cleared    int
	WasPlaying bool
}

func (r StopResult) Message() string {
	return "stopped playback and cleared the queue"
}

type PauseResult struct {
	Paused bool
}

func (r PauseResult) Message() string {
	if r.Paused {
		return "paused"
	}
	return "resumed"
}

type LoopResult struct {
	Mode LoopMode
}

func (r LoopResult) Message() string {
	return "loop mode set to " + r.Mode.String()
}

type VolumeResult struct {
	Percent int64
	Live    bool
}

func (r VolumeResult) Message() string {
	return fmt.Sprintf("volume set to %d%%", r.Percent)
}

type RemoveResult struct {
	Position int
	Removed  Track
}

func (r RemoveResult) Message() string {
	return "removed " + r.Removed.String()
}

type ShuffleResult struct {
	Count int
}

func (r ShuffleResult) Message() string {
	if r.Count < 2 {
		return "not enough tracks in queue to shuffle"
	}
	return "queue shuffled"
}

type ClearResult struct {
	Cleared int
}

func (r ClearResult) Message() string {
	return "queue cleared"
}

// Status is a consistent snapshot of one session.
type Status struct {
	GuildId   string
	Channel   string
	Connected bool
	Current   *Track
	Paused    bool
	Upcoming  []Track
	Remaining int // queued tracks beyond Upcoming
	LoopMode  LoopMode
	Volume    int64
}

func (s Status) QueueSize() int {
	return len(s.Upcoming) + s.Remaining
}

func (s Status) Message() string {
	var sb strings.Builder
	if s.Current == nil {
		sb.WriteString("Nothing is playing\n")
	} else {
		if s.Paused {
			sb.WriteString("Paused: ")
		} else {
			sb.WriteString("Now playing: ")
		}
		sb.WriteString(s.Current.String())
		sb.WriteString("\n")
	}
	if len(s.Upcoming) == 0 {
		sb.WriteString("Queue is empty\n")
	} else {
		sb.WriteString("Up next:\n")
		for i, t := range s.Upcoming {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t.String())
		}
		if s.Remaining > 0 {
			fmt.Fprintf(&sb, "... and %d more\n", s.Remaining)
		}
	}
	fmt.Fprintf(&sb, "Loop: %s | Volume: %d%%", s.LoopMode, s.Volume)
	if s.Connected && s.Channel != "" {
		fmt.Fprintf(&sb, " | Channel: %s", s.Channel)
	}
	return sb.String()
}

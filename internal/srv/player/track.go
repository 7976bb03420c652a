package player

import (
	"fmt"
	"strings"
	"time"
)

// Track is a resolved, playable item. Tracks are handled by value and never modified once built.
type Track struct {
	Title       string
	StreamURL   string // opaque locator, understood by the transport
	WebpageURL  string // what users see
	Duration    time.Duration
	RequestedBy string
	Source      string
	PreviewOnly bool
}

func (t Track) String() string {
	var sb strings.Builder
	sb.WriteString("**")
	sb.WriteString(t.Title)
	sb.WriteString("**")
	if t.Duration > 0 {
		sb.WriteString(" [")
		sb.WriteString(FormatDuration(t.Duration))
		sb.WriteString("]")
	}
	if t.PreviewOnly {
		sb.WriteString(" (preview)")
	}
	if t.RequestedBy != "" {
		sb.WriteString(" - Added by ")
		sb.WriteString(t.RequestedBy)
	}
	return sb.String()
}

// FormatDuration renders m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "Track"
	case LoopQueue:
		return "Queue"
	default:
		return "Off"
	}
}

// ParseLoopMode accepts the same aliases the chat commands always did.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "disable":
		return LoopOff, nil
	case "track", "song", "one":
		return LoopTrack, nil
	case "queue", "all":
		return LoopQueue, nil
	}
	return LoopOff, &ValidationError{Status: "invalid loop mode, use: off, track, or queue"}
}

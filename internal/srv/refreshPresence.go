package srv

import (
	"fmt"
	"time"

	"github.com/jypelle/vekidj/internal/srv/event"
	"github.com/sirupsen/logrus"
)

const presenceRefreshDelay = 2 * time.Second

// schedulePresenceRefresh batches bursts of player events into one gateway update.
func (s *ServerApp) schedulePresenceRefresh() {
	if s.presenceTimer != nil {
		s.presenceTimer.Reset(presenceRefreshDelay)
		return
	}
	s.presenceTimer = time.AfterFunc(presenceRefreshDelay, func() {
		s.internalEventChannel <- event.InternalEvent{Data: event.InternalEventPresenceRefreshData{}}
	})
}

func (s *ServerApp) refreshPresence() {
	s.presenceTimer = nil
	text := presenceText(s.playing)
	if text == s.currentPresence {
		return
	}
	logrus.Debugf("Presence: %q", text)
	s.currentPresence = text
	s.discordDevice.UpdatePresence(text)
}

func presenceText(playing map[string]string) string {
	switch len(playing) {
	case 0:
		return ""
	case 1:
		for _, title := range playing {
			return title
		}
	}
	return fmt.Sprintf("music in %d servers", len(playing))
}

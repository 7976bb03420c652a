package srv

import (
	"context"
	"time"

	"github.com/jypelle/vekidj/internal/srv/event"
	"github.com/sirupsen/logrus"
)

func (s *ServerApp) eventLoop() {
	for loop := true; loop; {
		select {
		case ev := <-s.internalEventChannel:
			switch ev.Data.(type) {
			case event.InternalEventPresenceRefreshData:
				s.refreshPresence()
			}
		case ev := <-s.playerEventChannel:
			switch data := ev.Data.(type) {
			case event.PlayerEventTrackStartedData:
				logrus.WithField("guild", data.GuildId).Infof("Playing %s", data.Track.Title)
				s.playing[data.GuildId] = data.Track.Title
				s.schedulePresenceRefresh()
			case event.PlayerEventIdleData:
				logrus.WithField("guild", data.GuildId).Debugf("Queue finished")
				delete(s.playing, data.GuildId)
				s.schedulePresenceRefresh()
			case event.PlayerEventDisconnectedData:
				delete(s.playing, data.GuildId)
				s.schedulePresenceRefresh()
			}
		case ev := <-s.discordDevice.EventChannel():
			switch data := ev.Data.(type) {
			case event.DiscordEventReadyData:
				logrus.Infof("Connected to discord as %s, %d guild(s)", data.UserName, data.GuildCount)
				s.currentPresence = "-"
				s.schedulePresenceRefresh()
			case event.DiscordEventVoiceLostData:
				s.controller.HandleTransportLost(data.GuildId)
			case event.DiscordEventGuildRemovedData:
				guildId := data.GuildId
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if _, err := s.controller.Leave(ctx, guildId); err != nil {
						logrus.WithField("guild", guildId).Warnf("Unable to leave removed guild: %v", err)
					}
				}()
			}
		case <-s.eventLoopAskDone:
			loop = false
		}
	}
	if s.presenceTimer != nil {
		s.presenceTimer.Stop()
	}
	s.eventLoopDone <- true
}

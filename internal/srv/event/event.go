package event

import "github.com/jypelle/vekidj/internal/srv/player"

// Internal
type InternalEvent struct {
	Data interface{}
}

type InternalEventPresenceRefreshData struct{}

// Player
type PlayerEvent struct {
	Data interface{}
}

type PlayerEventTrackStartedData struct {
	GuildId string
	Track   player.Track
}

type PlayerEventIdleData struct {
	GuildId string
}

type PlayerEventDisconnectedData struct {
	GuildId string
}

// FromPlayer converts a player notification to the event the server loop consumes.
func FromPlayer(ev player.Event) PlayerEvent {
	switch ev.Type {
	case player.EventTrackStarted:
		return PlayerEvent{Data: PlayerEventTrackStartedData{GuildId: ev.GuildId, Track: ev.Track}}
	case player.EventIdle:
		return PlayerEvent{Data: PlayerEventIdleData{GuildId: ev.GuildId}}
	default:
		return PlayerEvent{Data: PlayerEventDisconnectedData{GuildId: ev.GuildId}}
	}
}

// Discord
type DiscordEvent struct {
	Data interface{}
}

type DiscordEventReadyData struct {
	UserName   string
	GuildCount int
}

// DiscordEventVoiceLostData is sent when the bot is no longer in a voice channel
// of the guild without having asked to leave.
type DiscordEventVoiceLostData struct {
	GuildId string
}

type DiscordEventGuildRemovedData struct {
	GuildId string
}

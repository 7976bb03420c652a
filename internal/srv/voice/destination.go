package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jypelle/vekidj/internal/srv/player"
)

// Destination is a guild channel. Only voice and stage channels are joinable.
type Destination struct {
	guildId   string
	channelId string
	name      string
	joinable  bool
}

func NewDestination(guildId, channelId, name string, joinable bool) *Destination {
	return &Destination{guildId: guildId, channelId: channelId, name: name, joinable: joinable}
}

func destinationFromChannel(channel *discordgo.Channel) *Destination {
	joinable := channel.Type == discordgo.ChannelTypeGuildVoice || channel.Type == discordgo.ChannelTypeGuildStageVoice
	return NewDestination(channel.GuildID, channel.ID, channel.Name, joinable)
}

func (d *Destination) GuildId() string   { return d.guildId }
func (d *Destination) ChannelId() string { return d.channelId }
func (d *Destination) Name() string      { return d.name }
func (d *Destination) Joinable() bool    { return d.joinable }

// Locator finds channels through the gateway state cache, falling back to REST.
type Locator struct {
	session *discordgo.Session
}

func NewLocator(session *discordgo.Session) *Locator {
	return &Locator{session: session}
}

// Channel returns the destination for channelId, joinable or not.
func (l *Locator) Channel(guildId, channelId string) (player.VoiceDestination, error) {
	channel, err := l.session.State.Channel(channelId)
	if err != nil {
		channel, err = l.session.Channel(channelId)
		if err != nil {
			return nil, &player.ConnectionError{Status: "unknown channel", Err: fmt.Errorf("channel %s: %w", channelId, err)}
		}
	}
	if channel.GuildID != guildId {
		return nil, &player.ConnectionError{Status: "that channel is not in this server", Err: fmt.Errorf("channel %s belongs to guild %s", channelId, channel.GuildID)}
	}
	return destinationFromChannel(channel), nil
}

// UserChannel returns the voice channel userId currently sits in.
func (l *Locator) UserChannel(guildId, userId string) (player.VoiceDestination, error) {
	guild, err := l.session.State.Guild(guildId)
	if err != nil {
		return nil, &player.ConnectionError{Status: "unknown server", Err: fmt.Errorf("guild %s: %w", guildId, err)}
	}
	for _, voiceState := range guild.VoiceStates {
		if voiceState.UserID == userId && voiceState.ChannelID != "" {
			return l.Channel(guildId, voiceState.ChannelID)
		}
	}
	return nil, player.ErrNoVoiceChannel
}

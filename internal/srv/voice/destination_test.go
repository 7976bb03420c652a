package voice

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "g1",
		Channels: []*discordgo.Channel{
			{ID: "vc1", GuildID: "g1", Name: "Lounge", Type: discordgo.ChannelTypeGuildVoice},
			{ID: "stage", GuildID: "g1", Name: "Stage", Type: discordgo.ChannelTypeGuildStageVoice},
			{ID: "txt", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "u1", ChannelID: "vc1"},
			{GuildID: "g1", UserID: "u2", ChannelID: ""},
		},
	}))
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID:       "g2",
		Channels: []*discordgo.Channel{{ID: "vc2", GuildID: "g2", Name: "Elsewhere", Type: discordgo.ChannelTypeGuildVoice}},
	}))
	return NewLocator(&discordgo.Session{State: state})
}

func TestLocatorChannel(t *testing.T) {
	locator := newTestLocator(t)

	d, err := locator.Channel("g1", "vc1")
	require.NoError(t, err)
	assert.Equal(t, "Lounge", d.Name())
	assert.True(t, d.Joinable())

	d, err = locator.Channel("g1", "stage")
	require.NoError(t, err)
	assert.True(t, d.Joinable())

	d, err = locator.Channel("g1", "txt")
	require.NoError(t, err)
	assert.False(t, d.Joinable())
}

func TestLocatorChannelFromAnotherGuild(t *testing.T) {
	locator := newTestLocator(t)

	_, err := locator.Channel("g1", "vc2")
	var connErr *player.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "that channel is not in this server", player.Message(err))
}

func TestLocatorUserChannel(t *testing.T) {
	locator := newTestLocator(t)

	d, err := locator.UserChannel("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "vc1", d.ChannelId())

	_, err = locator.UserChannel("g1", "u2")
	assert.ErrorIs(t, err, player.ErrNoVoiceChannel)

	_, err = locator.UserChannel("g1", "nobody")
	assert.ErrorIs(t, err, player.ErrNoVoiceChannel)

	_, err = locator.UserChannel("g9", "u1")
	var connErr *player.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "unknown server", player.Message(err))
	assert.ErrorIs(t, err, discordgo.ErrStateNotFound)
}

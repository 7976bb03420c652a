package device

import (
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/jypelle/vekidj/internal/srv/event"
	"github.com/sirupsen/logrus"
)

const maxMessageLength = 2000

// Discord owns the gateway session. It turns prefixed text messages into
// controller calls and reports voice and guild changes to the server event loop.
type Discord struct {
	session  *discordgo.Session
	commands *Commands

	lock         sync.RWMutex
	sendEvent    bool
	eventChannel chan event.DiscordEvent
}

func NewDiscord(session *discordgo.Session, commands *Commands) *Discord {
	return &Discord{
		session:      session,
		commands:     commands,
		sendEvent:    true,
		eventChannel: make(chan event.DiscordEvent),
	}
}

func (d *Discord) Start() error {
	logrus.Infof("Start discord device")

	d.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	d.session.AddHandler(d.onReady)
	d.session.AddHandler(d.onMessageCreate)
	d.session.AddHandler(d.onVoiceStateUpdate)
	d.session.AddHandler(d.onGuildDelete)

	return d.session.Open()
}

func (d *Discord) StopSendingEvent() {
	logrus.Infof("Stop sending events for discord device")
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sendEvent = false
}

func (d *Discord) Stop() {
	logrus.Infof("Stop discord device")
	if err := d.session.Close(); err != nil {
		logrus.Warnf("Unable to close discord session: %v", err)
	}
}

func (d *Discord) EventChannel() chan event.DiscordEvent {
	return d.eventChannel
}

// UpdatePresence shows text as the bot's "Listening to" activity, or clears it.
func (d *Discord) UpdatePresence(text string) {
	var err error
	if text == "" {
		err = d.session.UpdateGameStatus(0, "")
	} else {
		err = d.session.UpdateListeningStatus(text)
	}
	if err != nil {
		logrus.Debugf("Unable to update presence: %v", err)
	}
}

func (d *Discord) emit(ev event.DiscordEvent) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if d.sendEvent {
		go func() { d.eventChannel <- ev }()
	}
}

func (d *Discord) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logrus.Infof("Logged in as %s#%s", r.User.Username, r.User.Discriminator)
	d.emit(event.DiscordEvent{Data: event.DiscordEventReadyData{UserName: r.User.Username, GuildCount: len(r.Guilds)}})
}

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	authorName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		authorName = m.Member.Nick
	}
	d.commands.Handle(CommandContext{
		GuildId:    m.GuildID,
		AuthorId:   m.Author.ID,
		AuthorName: authorName,
		Reply:      &channelReply{session: s, channelId: m.ChannelID},
	}, m.Content)
}

// onVoiceStateUpdate watches the bot's own voice state. An empty channel means
// the bot was kicked, moved out or the connection dropped.
func (d *Discord) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	if v.ChannelID == "" {
		logrus.WithField("guild", v.GuildID).Debugf("Bot voice state cleared")
		d.emit(event.DiscordEvent{Data: event.DiscordEventVoiceLostData{GuildId: v.GuildID}})
	}
}

func (d *Discord) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	logrus.WithField("guild", g.ID).Infof("Removed from guild")
	d.emit(event.DiscordEvent{Data: event.DiscordEventGuildRemovedData{GuildId: g.ID}})
}

// channelReply posts status text to the text channel a command came from.
type channelReply struct {
	session   *discordgo.Session
	channelId string
}

func (r *channelReply) Send(text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if _, err := r.session.ChannelMessageSend(r.channelId, chunk); err != nil {
			logrus.Debugf("Unable to send message to %s: %v", r.channelId, err)
			return
		}
	}
}

// splitMessage cuts text on line boundaries so that every chunk fits in limit.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		if current.Len()+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

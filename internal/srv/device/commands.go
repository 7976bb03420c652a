package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/sirupsen/logrus"
)

const commandTimeout = 60 * time.Second

// CommandContext describes who sent a chat command and where to answer.
type CommandContext struct {
	GuildId    string
	AuthorId   string
	AuthorName string
	Reply      player.ReplySink
}

type commandFunc func(ctx context.Context, cc CommandContext, args string) (string, error)

type command struct {
	names []string
	usage string
	run   commandFunc
}

// Commands maps prefixed chat messages to controller operations.
type Commands struct {
	prefix     string
	controller Controller
	locator    ChannelLocator
	commands   []command
	byName     map[string]*command
}

func NewCommands(prefix string, controller Controller, locator ChannelLocator) *Commands {
	c := &Commands{
		prefix:     prefix,
		controller: controller,
		locator:    locator,
		byName:     make(map[string]*command),
	}
	c.commands = []command{
		{names: []string{"play", "p"}, usage: "play <url or search>", run: c.play},
		{names: []string{"join", "summon"}, usage: "join", run: c.join},
		{names: []string{"leave", "disconnect", "dc"}, usage: "leave", run: c.leave},
		{names: []string{"skip", "s", "next"}, usage: "skip", run: c.skip},
		{names: []string{"stop"}, usage: "stop", run: c.stop},
		{names: []string{"pause"}, usage: "pause", run: c.pause},
		{names: []string{"resume", "unpause"}, usage: "resume", run: c.resume},
		{names: []string{"queue", "q", "status"}, usage: "queue", run: c.queue},
		{names: []string{"nowplaying", "np"}, usage: "nowplaying", run: c.nowPlaying},
		{names: []string{"loop", "repeat"}, usage: "loop <off|track|queue>", run: c.loop},
		{names: []string{"volume", "vol"}, usage: "volume [0-100]", run: c.volume},
		{names: []string{"remove", "rm"}, usage: "remove <position>", run: c.remove},
		{names: []string{"shuffle"}, usage: "shuffle", run: c.shuffle},
		{names: []string{"clear"}, usage: "clear", run: c.clear},
		{names: []string{"help", "h"}, usage: "help", run: c.help},
		{names: []string{"ping"}, usage: "ping", run: c.ping},
	}
	for i := range c.commands {
		for _, name := range c.commands[i].names {
			c.byName[name] = &c.commands[i]
		}
	}
	return c
}

// Handle runs content when it carries a known command. Anything else is ignored.
func (c *Commands) Handle(cc CommandContext, content string) bool {
	name, args, ok := parseCommand(c.prefix, content)
	if !ok {
		return false
	}
	cmd, found := c.byName[name]
	if !found {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	log := logrus.WithField("guild", cc.GuildId)
	log.Debugf("Command %s %q from %s", name, args, cc.AuthorName)

	text, err := cmd.run(ctx, cc, args)
	if err != nil {
		if !isCallerError(err) {
			log.Errorf("Command %s failed: %v", name, err)
		}
		text = player.Message(err)
	}
	if text != "" && cc.Reply != nil {
		cc.Reply.Send(text)
	}
	return true
}

func parseCommand(prefix, content string) (name string, args string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, prefix)
	name, args, _ = strings.Cut(content, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

func isCallerError(err error) bool {
	var connErr *player.ConnectionError
	var resErr *player.ResolutionError
	var stateErr *player.StateError
	var validErr *player.ValidationError
	return errors.As(err, &connErr) || errors.As(err, &resErr) || errors.As(err, &stateErr) || errors.As(err, &validErr)
}

func (c *Commands) usage(name string) error {
	return &player.ValidationError{Status: "usage: " + c.prefix + c.byName[name].usage}
}

func (c *Commands) play(ctx context.Context, cc CommandContext, args string) (string, error) {
	if args == "" {
		return "", c.usage("play")
	}
	req := player.EnqueueRequest{
		GuildId:     cc.GuildId,
		Query:       args,
		RequestedBy: cc.AuthorName,
		Reply:       cc.Reply,
	}
	// Not being in voice is fine when the bot is already connected.
	if destination, err := c.locator.UserChannel(cc.GuildId, cc.AuthorId); err == nil {
		req.Destination = destination
	}
	result, err := c.controller.Enqueue(ctx, req)
	if err != nil {
		if errors.Is(err, player.ErrNotConnected) {
			return "", player.ErrNoVoiceChannel
		}
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) join(ctx context.Context, cc CommandContext, args string) (string, error) {
	destination, err := c.locator.UserChannel(cc.GuildId, cc.AuthorId)
	if err != nil {
		return "", err
	}
	result, err := c.controller.Join(ctx, cc.GuildId, destination, cc.Reply)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) leave(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.Leave(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) skip(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.Skip(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) stop(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.Stop(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) pause(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.Pause(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) resume(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.Resume(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) queue(ctx context.Context, cc CommandContext, args string) (string, error) {
	status, err := c.controller.Status(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return status.Message(), nil
}

func (c *Commands) nowPlaying(ctx context.Context, cc CommandContext, args string) (string, error) {
	current, err := c.controller.NowPlaying(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "Nothing is playing", nil
	}
	return "Now playing: " + current.String(), nil
}

func (c *Commands) loop(ctx context.Context, cc CommandContext, args string) (string, error) {
	if args == "" {
		return "", c.usage("loop")
	}
	mode, err := player.ParseLoopMode(args)
	if err != nil {
		return "", err
	}
	result, err := c.controller.SetLoop(ctx, cc.GuildId, mode)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) volume(ctx context.Context, cc CommandContext, args string) (string, error) {
	if args == "" {
		status, err := c.controller.Status(ctx, cc.GuildId)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("volume is %d%%", status.Volume), nil
	}
	percent, err := strconv.ParseInt(strings.TrimSuffix(args, "%"), 10, 64)
	if err != nil {
		return "", player.ErrInvalidVolume
	}
	result, err := c.controller.SetVolume(ctx, cc.GuildId, percent)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) remove(ctx context.Context, cc CommandContext, args string) (string, error) {
	if args == "" {
		return "", c.usage("remove")
	}
	position, err := strconv.Atoi(args)
	if err != nil {
		return "", player.ErrInvalidPosition
	}
	result, err := c.controller.RemoveAt(ctx, cc.GuildId, position)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) shuffle(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.Shuffle(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) clear(ctx context.Context, cc CommandContext, args string) (string, error) {
	result, err := c.controller.ClearQueue(ctx, cc.GuildId)
	if err != nil {
		return "", err
	}
	return result.Message(), nil
}

func (c *Commands) help(ctx context.Context, cc CommandContext, args string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, cmd := range c.commands {
		fmt.Fprintf(&sb, "`%s%s`", c.prefix, cmd.usage)
		if len(cmd.names) > 1 {
			fmt.Fprintf(&sb, " (aliases: %s)", strings.Join(cmd.names[1:], ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (c *Commands) ping(ctx context.Context, cc CommandContext, args string) (string, error) {
	return "Pong!", nil
}

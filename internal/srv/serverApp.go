package srv

import (
	"context"
	"math/rand"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jypelle/vekidj/internal/srv/config"
	"github.com/jypelle/vekidj/internal/srv/device"
	"github.com/jypelle/vekidj/internal/srv/event"
	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/jypelle/vekidj/internal/srv/resolver"
	"github.com/jypelle/vekidj/internal/srv/voice"
	"github.com/jypelle/vekidj/internal/version"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type ServerApp struct {
	*config.ServerConfig

	session       *discordgo.Session
	controller    *player.Controller
	discordDevice *device.Discord
	apiDevice     *device.Api

	// guild id -> title of the track being played, owned by the event loop
	playing         map[string]string
	currentPresence string
	presenceTimer   *time.Timer

	internalEventChannel chan event.InternalEvent
	playerEventChannel   chan event.PlayerEvent

	eventLoopAskDone chan bool
	eventLoopDone    chan bool
}

func NewServerApp(configDir string, debugMode bool) *ServerApp {

	logrus.Debugf("Creation of vekidj server %s ...", version.AppVersion.String())

	app := &ServerApp{
		playing:              make(map[string]string),
		internalEventChannel: make(chan event.InternalEvent, 4),
		playerEventChannel:   make(chan event.PlayerEvent, 256),
		eventLoopAskDone:     make(chan bool),
		eventLoopDone:        make(chan bool),
		ServerConfig:         config.NewServerConfig(configDir, debugMode),
	}

	if err := app.ServerParam.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration in %s: %v\n", app.GetCompleteParamFilename(), err)
	}

	var err error
	app.session, err = discordgo.New("Bot " + app.DiscordParam.Token)
	if err != nil {
		logrus.Fatalf("Unable to create discord session: %v\n", err)
	}

	// Resolution
	httpClient, err := resolver.NewHTTPClient(app.ResolverParam.YoutubeProxy, time.Duration(app.ResolverParam.Timeout)*time.Second)
	if err != nil {
		logrus.Fatalf("Unable to create http client: %v\n", err)
	}
	var sources []resolver.Source
	var inputs []voice.InputProvider
	if app.MifasolParam != nil {
		mifasol, err := resolver.NewMifasol(app.MifasolParam)
		if err != nil {
			logrus.Warnf("Mifasol source disabled: %v", err)
		} else {
			sources = append(sources, mifasol)
			inputs = append(inputs, mifasol)
		}
	}
	youtube := resolver.NewYoutube(httpClient)
	sources = append(sources, youtube, resolver.NewSearch(httpClient, youtube))
	chain := resolver.NewChain(resolver.NewYtdlp(app.ResolverParam.YoutubeProxy), sources...)

	var limiter *rate.Limiter
	if app.ResolverParam.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(app.ResolverParam.RatePerSecond), app.ResolverParam.Burst)
	}

	// Player
	app.controller = player.NewController(player.ControllerConfig{
		Pool:          player.NewResolvePool(chain, app.ResolverParam.Workers, limiter),
		Transports:    voice.NewFactory(app.session, app.DiscordParam.FfmpegPath, inputs...),
		Volumes:       app.ServerState,
		Notifier:      app.onPlayerEvent,
		DefaultVolume: app.PlayerParam.DefaultVolume,
		PreviewSize:   app.PlayerParam.QueuePreviewSize,
		Shuffle:       rand.Shuffle,
	})

	// Devices
	locator := voice.NewLocator(app.session)
	app.discordDevice = device.NewDiscord(app.session, device.NewCommands(app.DiscordParam.CommandPrefix, app.controller, locator))
	if app.ApiParam.Enabled {
		app.apiDevice = device.NewApi(app.ServerConfig, app.controller, locator)
	}

	logrus.Debugln("Server created")

	return app
}

// onPlayerEvent runs on the player scheduler and must not block.
func (s *ServerApp) onPlayerEvent(ev player.Event) {
	select {
	case s.playerEventChannel <- event.FromPlayer(ev):
	default:
		logrus.Warnf("Player event dropped: %v", ev.Type)
	}
}

func (s *ServerApp) Start() {
	logrus.Printf("Starting vekidj server ...")

	// Start player
	s.controller.Start()

	// Start event loop
	go s.eventLoop()

	logrus.Printf("Starting devices ...")

	// Start discord device
	if err := s.discordDevice.Start(); err != nil {
		logrus.Fatalf("Unable to open discord session: %v\n", err)
	}

	// Start api device
	if s.apiDevice != nil {
		s.apiDevice.Start()
	}
}

func (s *ServerApp) Stop() {
	logrus.Printf("Stopping vekidj server ...")

	// Stop api
	if s.apiDevice != nil {
		s.apiDevice.Stop()
	}

	// Stop discord events
	s.discordDevice.StopSendingEvent()

	// Stop event loop
	logrus.Infof("Stop event loop")
	s.eventLoopAskDone <- true
	<-s.eventLoopDone

	// Leave every voice channel
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.controller.Shutdown(ctx); err != nil {
		logrus.Warnf("Unable to leave every voice channel: %v", err)
	}
	s.controller.Close()

	// Stop discord device
	s.discordDevice.Stop()

	// Flush config backup
	s.ServerConfig.ServerState.FlushSave()

	logrus.Printf("Server stopped")
}

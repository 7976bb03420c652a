package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

type ServerParam struct {
	DiscordParam  DiscordParam  `yaml:"discord"`
	PlayerParam   PlayerParam   `yaml:"player"`
	ResolverParam ResolverParam `yaml:"resolver"`
	MifasolParam  *MifasolParam `yaml:"mifasol,omitempty"`
	ApiParam      ApiParam      `yaml:"api"`
}

type DiscordParam struct {
	Token         string `yaml:"token"`
	CommandPrefix string `yaml:"command_prefix"`
	FfmpegPath    string `yaml:"ffmpeg_path"`
}

type PlayerParam struct {
	DefaultVolume    int64 `yaml:"default_volume"`
	QueuePreviewSize int   `yaml:"queue_preview_size"`
}

type ResolverParam struct {
	Workers       int     `yaml:"workers"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	Timeout       int64   `yaml:"timeout"`
	YoutubeProxy  string  `yaml:"youtube_proxy"`
}

type ApiParam struct {
	Enabled bool   `yaml:"enabled"`
	SslPort int64  `yaml:"ssl_port"`
	ApiKey  string `yaml:"api_key"`
}

// envParam lists the settings that may come from the environment or a .env file.
// They win over param.yaml and are never written back to it.
type envParam struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	ApiKey       string `env:"VEKIDJ_API_KEY"`
	ApiPort      int64  `env:"VEKIDJ_API_PORT"`
	YoutubeProxy string `env:"YOUTUBE_PROXY"`
}

func (sp *ServerParam) applyEnv(ep envParam) {
	if ep.DiscordToken != "" {
		sp.DiscordParam.Token = ep.DiscordToken
	}
	if ep.ApiKey != "" {
		sp.ApiParam.ApiKey = ep.ApiKey
	}
	if ep.ApiPort != 0 {
		sp.ApiParam.SslPort = ep.ApiPort
	}
	if ep.YoutubeProxy != "" {
		sp.ResolverParam.YoutubeProxy = ep.YoutubeProxy
	}
}

// fillDefaults completes a param file written by an older version.
func (sp *ServerParam) fillDefaults() {
	if sp.DiscordParam.CommandPrefix == "" {
		sp.DiscordParam.CommandPrefix = "!"
	}
	if sp.PlayerParam.QueuePreviewSize <= 0 {
		sp.PlayerParam.QueuePreviewSize = 10
	}
	if sp.ResolverParam.Workers <= 0 {
		sp.ResolverParam.Workers = 4
	}
	if sp.ResolverParam.Burst <= 0 {
		sp.ResolverParam.Burst = 1
	}
	if sp.ResolverParam.Timeout <= 0 {
		sp.ResolverParam.Timeout = 30
	}
	if sp.ApiParam.SslPort == 0 {
		sp.ApiParam.SslPort = 8443
	}
}

func (sp *ServerParam) Validate() error {
	var errs []error
	if strings.TrimSpace(sp.DiscordParam.Token) == "" {
		errs = append(errs, errors.New("discord token is missing (discord.token or DISCORD_TOKEN)"))
	}
	if sp.PlayerParam.DefaultVolume < 0 || sp.PlayerParam.DefaultVolume > 100 {
		errs = append(errs, fmt.Errorf("player.default_volume %d is out of 0..100", sp.PlayerParam.DefaultVolume))
	}
	if sp.ResolverParam.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("resolver.rate_per_second %v is negative", sp.ResolverParam.RatePerSecond))
	}
	if sp.ApiParam.Enabled && sp.ApiParam.ApiKey == "" {
		errs = append(errs, errors.New("api is enabled without api key (api.api_key or VEKIDJ_API_KEY)"))
	}
	return errors.Join(errs...)
}

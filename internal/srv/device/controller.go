package device

import (
	"context"

	"github.com/jypelle/vekidj/internal/srv/player"
)

// Controller is the part of player.Controller the devices drive.
type Controller interface {
	Join(ctx context.Context, guildId string, destination player.VoiceDestination, reply player.ReplySink) (player.JoinResult, error)
	Leave(ctx context.Context, guildId string) (player.LeaveResult, error)
	Enqueue(ctx context.Context, req player.EnqueueRequest) (player.EnqueueResult, error)
	Skip(ctx context.Context, guildId string) (player.SkipResult, error)
	Stop(ctx context.Context, guildId string) (player.StopResult, error)
	Pause(ctx context.Context, guildId string) (player.PauseResult, error)
	Resume(ctx context.Context, guildId string) (player.PauseResult, error)
	SetLoop(ctx context.Context, guildId string, mode player.LoopMode) (player.LoopResult, error)
	SetVolume(ctx context.Context, guildId string, percent int64) (player.VolumeResult, error)
	RemoveAt(ctx context.Context, guildId string, position int) (player.RemoveResult, error)
	Shuffle(ctx context.Context, guildId string) (player.ShuffleResult, error)
	ClearQueue(ctx context.Context, guildId string) (player.ClearResult, error)
	NowPlaying(ctx context.Context, guildId string) (*player.Track, error)
	ListQueue(ctx context.Context, guildId string) ([]player.Track, error)
	Status(ctx context.Context, guildId string) (player.Status, error)
	Sessions(ctx context.Context) ([]string, error)
}

// ChannelLocator finds voice destinations by channel or by the user sitting in one.
type ChannelLocator interface {
	Channel(guildId, channelId string) (player.VoiceDestination, error)
	UserChannel(guildId, userId string) (player.VoiceDestination, error)
}

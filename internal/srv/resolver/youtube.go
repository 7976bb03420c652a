package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/kkdai/youtube/v2"
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// Youtube reads video metadata and audio stream urls straight from youtube.
type Youtube struct {
	client *youtube.Client
}

func NewYoutube(httpClient *http.Client) *Youtube {
	return &Youtube{client: &youtube.Client{HTTPClient: httpClient}}
}

func (y *Youtube) Name() string {
	return "youtube"
}

func (y *Youtube) Match(query string) bool {
	return isYoutubeURL(query)
}

func (y *Youtube) Resolve(ctx context.Context, query string) (player.Track, error) {
	videoId, err := youtube.ExtractVideoID(query)
	if err != nil {
		return player.Track{}, err
	}
	return y.ResolveId(ctx, videoId)
}

func (y *Youtube) ResolveId(ctx context.Context, videoId string) (player.Track, error) {
	video, err := y.client.GetVideoContext(ctx, videoId)
	if err != nil {
		return player.Track{}, fmt.Errorf("video %s: %w", videoId, err)
	}

	formats := video.Formats.WithAudioChannels()
	if audioOnly := formats.Type("audio"); len(audioOnly) > 0 {
		formats = audioOnly
	}
	if len(formats) == 0 {
		return player.Track{}, ErrNoAudio
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return player.Track{}, fmt.Errorf("stream url of %s: %w", videoId, err)
	}

	return player.Track{
		Title:      video.Title,
		StreamURL:  streamURL,
		WebpageURL: watchURL(videoId),
		Duration:   video.Duration,
		Source:     y.Name(),
	}, nil
}

func watchURL(videoId string) string {
	return "https://www.youtube.com/watch?v=" + videoId
}

func isYoutubeURL(s string) bool {
	if !isURL(s) {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

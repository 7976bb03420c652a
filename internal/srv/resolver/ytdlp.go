package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/lrstanley/go-ytdlp"
)

const ytdlpPrint = "%(url)s\t%(title)s\t%(duration)s\t%(webpage_url)s\t%(format_id)s"

// Ytdlp asks yt-dlp for a direct audio url. It accepts any link, and turns free
// text into a youtube search.
type Ytdlp struct {
	proxy string
}

func NewYtdlp(proxy string) *Ytdlp {
	return &Ytdlp{proxy: proxy}
}

func (y *Ytdlp) Name() string {
	return "yt-dlp"
}

func (y *Ytdlp) Match(query string) bool {
	return query != ""
}

func (y *Ytdlp) Resolve(ctx context.Context, query string) (player.Track, error) {
	target := query
	if !isURL(query) {
		target = "ytsearch1:" + query
	}

	cmd := ytdlp.New().
		Print(ytdlpPrint).
		Format("bestaudio/best").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if y.proxy != "" {
		cmd = cmd.Proxy(y.proxy)
	}
	res, err := cmd.Run(ctx, "--skip-download", target)
	if err != nil {
		return player.Track{}, err
	}
	return parseYtdlpOutput(res.Stdout)
}

// parseYtdlpOutput reads the first complete line printed with ytdlpPrint.
func parseYtdlpOutput(stdout string) (player.Track, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 5 || !isURL(parts[0]) {
			continue
		}
		duration, _ := time.ParseDuration(parts[2] + "s")
		webpageURL := parts[3]
		if webpageURL == "NA" {
			webpageURL = ""
		}
		return player.Track{
			Title:       parts[1],
			StreamURL:   parts[0],
			WebpageURL:  webpageURL,
			Duration:    duration,
			PreviewOnly: strings.Contains(strings.ToLower(parts[4]), "preview"),
		}, nil
	}
	return player.Track{}, fmt.Errorf("unexpected yt-dlp output: %w", ErrNoResults)
}

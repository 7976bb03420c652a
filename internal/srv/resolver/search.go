package resolver

import (
	"context"
	"net/http"

	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/ppalone/ytsearch"
)

// Search resolves free text through a youtube title search, then reads the first hit.
type Search struct {
	httpClient *http.Client
	videos     *Youtube
}

func NewSearch(httpClient *http.Client, videos *Youtube) *Search {
	return &Search{httpClient: httpClient, videos: videos}
}

func (s *Search) Name() string {
	return "youtube search"
}

func (s *Search) Match(query string) bool {
	return !isURL(query)
}

func (s *Search) Resolve(ctx context.Context, query string) (player.Track, error) {
	res, err := ytsearch.NewClient(s.httpClient).Search(ctx, query)
	if err != nil {
		return player.Track{}, err
	}
	for _, result := range res.Results {
		if result.VideoID == "" {
			continue
		}
		return s.videos.ResolveId(ctx, result.VideoID)
	}
	return player.Track{}, ErrNoResults
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoResults   = errors.New("no results")
	ErrUnsupported = errors.New("unsupported link")
	ErrNoAudio     = errors.New("no audio format available")
)

// Source resolves the queries it matches.
type Source interface {
	Name() string
	Match(query string) bool
	Resolve(ctx context.Context, query string) (player.Track, error)
}

// Chain hands a query to the first matching source. When that source fails, the
// fallback source gets a second chance.
type Chain struct {
	sources  []Source
	fallback Source
}

func NewChain(fallback Source, sources ...Source) *Chain {
	return &Chain{sources: sources, fallback: fallback}
}

func (c *Chain) Resolve(ctx context.Context, query string) (player.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return player.Track{}, ErrNoResults
	}

	for _, source := range c.sources {
		if !source.Match(query) {
			continue
		}
		track, err := source.Resolve(ctx, query)
		if err == nil {
			return withSource(track, source), nil
		}
		if c.fallback == nil || !c.fallback.Match(query) || ctx.Err() != nil {
			return player.Track{}, fmt.Errorf("%s: %w", source.Name(), err)
		}
		logrus.Debugf("%s failed on %q, trying %s: %v", source.Name(), query, c.fallback.Name(), err)
		track, fallbackErr := c.fallback.Resolve(ctx, query)
		if fallbackErr != nil {
			return player.Track{}, fmt.Errorf("%s: %w, %s: %v", source.Name(), err, c.fallback.Name(), fallbackErr)
		}
		return withSource(track, c.fallback), nil
	}

	if c.fallback != nil && c.fallback.Match(query) {
		track, err := c.fallback.Resolve(ctx, query)
		if err != nil {
			return player.Track{}, fmt.Errorf("%s: %w", c.fallback.Name(), err)
		}
		return withSource(track, c.fallback), nil
	}
	return player.Track{}, ErrUnsupported
}

func withSource(track player.Track, source Source) player.Track {
	if track.Source == "" {
		track.Source = source.Name()
	}
	return track
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

package resolver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jypelle/mifasol/restApiV1"
	"github.com/jypelle/mifasol/restClientV1"
	"github.com/jypelle/vekidj/internal/srv/config"
	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/sirupsen/logrus"
)

const mifasolScheme = "mifasol"

// Mifasol resolves "mifasol:<songId>" queries against a mifasol server. The same
// locator is later opened by the voice transport to stream the song content.
type Mifasol struct {
	client *restClientV1.RestClient
}

func NewMifasol(mifasolParam *config.MifasolParam) (*Mifasol, error) {
	client, err := restClientV1.NewRestClient(mifasolParam, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create mifasol client: %w", err)
	}
	logrus.Infof("Mifasol source connected to %s", mifasolParam.Address())
	return &Mifasol{client: client}, nil
}

func (m *Mifasol) Name() string {
	return mifasolScheme
}

func (m *Mifasol) Match(query string) bool {
	return strings.HasPrefix(query, mifasolScheme+":")
}

func (m *Mifasol) Resolve(ctx context.Context, query string) (player.Track, error) {
	songId, err := mifasolSongId(query)
	if err != nil {
		return player.Track{}, err
	}
	song, cliErr := m.client.ReadSong(restApiV1.SongId(songId))
	if cliErr != nil {
		return player.Track{}, fmt.Errorf("unknown song %s: %v", songId, cliErr)
	}
	return player.Track{
		Title:     song.Name,
		StreamURL: mifasolScheme + ":" + songId,
		Source:    m.Name(),
	}, nil
}

// Scheme and Open make Mifasol a voice input provider.
func (m *Mifasol) Scheme() string {
	return mifasolScheme
}

func (m *Mifasol) Open(locator string) (io.ReadCloser, error) {
	songId, err := mifasolSongId(locator)
	if err != nil {
		return nil, err
	}
	content, _, cliErr := m.client.ReadSongContent(restApiV1.SongId(songId))
	if cliErr != nil {
		return nil, fmt.Errorf("unable to read song %s: %v", songId, cliErr)
	}
	return content, nil
}

func mifasolSongId(locator string) (string, error) {
	songId := strings.TrimSpace(strings.TrimPrefix(locator, mifasolScheme+":"))
	if songId == "" || songId == locator {
		return "", fmt.Errorf("%q: %w", locator, ErrUnsupported)
	}
	return songId, nil
}

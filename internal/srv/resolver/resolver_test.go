package resolver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name    string
	prefix  string
	err     error
	queries []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Match(query string) bool { return strings.HasPrefix(query, s.prefix) }

func (s *stubSource) Resolve(ctx context.Context, query string) (player.Track, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return player.Track{}, s.err
	}
	return player.Track{Title: s.name + " " + query, StreamURL: "https://cdn/" + query}, nil
}

func TestChainFirstMatchWins(t *testing.T) {
	first := &stubSource{name: "first", prefix: "https://a"}
	second := &stubSource{name: "second", prefix: "https://"}
	fallback := &stubSource{name: "fallback"}
	chain := NewChain(fallback, first, second)

	track, err := chain.Resolve(context.Background(), "  https://a/1 ")
	require.NoError(t, err)
	assert.Equal(t, "first", track.Source)
	assert.Equal(t, []string{"https://a/1"}, first.queries)
	assert.Empty(t, second.queries)
	assert.Empty(t, fallback.queries)

	track, err = chain.Resolve(context.Background(), "https://b/2")
	require.NoError(t, err)
	assert.Equal(t, "second", track.Source)
}

func TestChainFallsBack(t *testing.T) {
	broken := &stubSource{name: "broken", prefix: "https://", err: errors.New("boom")}
	fallback := &stubSource{name: "fallback"}
	chain := NewChain(fallback, broken)

	track, err := chain.Resolve(context.Background(), "https://x")
	require.NoError(t, err)
	assert.Equal(t, "fallback", track.Source)

	track, err = chain.Resolve(context.Background(), "some song")
	require.NoError(t, err)
	assert.Equal(t, "fallback", track.Source)
	assert.Equal(t, []string{"https://x"}, broken.queries)
}

func TestChainErrors(t *testing.T) {
	broken := &stubSource{name: "broken", prefix: "https://", err: ErrNoAudio}
	chain := NewChain(nil, broken)

	_, err := chain.Resolve(context.Background(), "https://x")
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.Contains(t, err.Error(), "broken")

	_, err = chain.Resolve(context.Background(), "plain words")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = chain.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoResults)

	failingFallback := &stubSource{name: "fallback", err: errors.New("down")}
	chain = NewChain(failingFallback, broken)
	_, err = chain.Resolve(context.Background(), "https://x")
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.Contains(t, err.Error(), "down")
}

func TestChainKeepsSourceName(t *testing.T) {
	named := &namedTrackSource{}
	track, err := NewChain(nil, named).Resolve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "custom", track.Source)
}

type namedTrackSource struct{}

func (namedTrackSource) Name() string { return "named" }
func (namedTrackSource) Match(string) bool { return true }
func (namedTrackSource) Resolve(context.Context, string) (player.Track, error) {
	return player.Track{Title: "t", Source: "custom"}, nil
}

func TestURLDetection(t *testing.T) {
	assert.True(t, isURL("https://example.com"))
	assert.True(t, isURL("http://example.com"))
	assert.False(t, isURL("never gonna give you up"))

	assert.True(t, isYoutubeURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, isYoutubeURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, isYoutubeURL("https://music.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.False(t, isYoutubeURL("https://soundcloud.com/artist/track"))
	assert.False(t, isYoutubeURL("youtube.com/watch?v=dQw4w9WgXcQ"))

	y := NewYoutube(http.DefaultClient)
	assert.True(t, y.Match("https://youtu.be/dQw4w9WgXcQ"))
	assert.False(t, y.Match("rick astley"))

	s := NewSearch(http.DefaultClient, y)
	assert.True(t, s.Match("rick astley"))
	assert.False(t, s.Match("https://youtu.be/dQw4w9WgXcQ"))

	assert.True(t, NewYtdlp("").Match("anything"))
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", watchURL("abc"))
}

func TestParseYtdlpOutput(t *testing.T) {
	out := "WARNING: something\n" +
		"https://cdn.example/audio.m4a\tSome Title\t212\thttps://www.youtube.com/watch?v=abc\t140\n"
	track, err := parseYtdlpOutput(out)
	require.NoError(t, err)
	assert.Equal(t, "Some Title", track.Title)
	assert.Equal(t, "https://cdn.example/audio.m4a", track.StreamURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", track.WebpageURL)
	assert.Equal(t, 212*time.Second, track.Duration)
	assert.False(t, track.PreviewOnly)
}

func TestParseYtdlpOutputPreview(t *testing.T) {
	out := "https://cf-preview-media.sndcdn.com/x.mp3\tSnippet\t29.98\tNA\thttp_mp3_128_preview\n"
	track, err := parseYtdlpOutput(out)
	require.NoError(t, err)
	assert.True(t, track.PreviewOnly)
	assert.Empty(t, track.WebpageURL)
	assert.Equal(t, 29980*time.Millisecond, track.Duration)
}

func TestParseYtdlpOutputUnknownDuration(t *testing.T) {
	track, err := parseYtdlpOutput("https://live.example/stream\tLive\tNA\thttps://live.example\tbest\n")
	require.NoError(t, err)
	assert.Zero(t, track.Duration)
}

func TestParseYtdlpOutputEmpty(t *testing.T) {
	_, err := parseYtdlpOutput("")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = parseYtdlpOutput("NA\tNA\tNA\tNA\tNA")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestNewHTTPClient(t *testing.T) {
	client, err := NewHTTPClient("", 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, client.Transport)
	assert.Equal(t, 5*time.Second, client.Timeout)

	client, err = NewHTTPClient("http://127.0.0.1:3128", time.Second)
	require.NoError(t, err)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	req, _ := http.NewRequest(http.MethodGet, "https://www.youtube.com", nil)
	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3128", proxyURL.Host)

	client, err = NewHTTPClient("socks5://127.0.0.1:1080", time.Second)
	require.NoError(t, err)
	transport, ok = client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, transport.DialContext)

	_, err = NewHTTPClient("ftp://127.0.0.1", time.Second)
	assert.Error(t, err)
}

func TestMifasolSongId(t *testing.T) {
	id, err := mifasolSongId("mifasol:01F8ZQ")
	require.NoError(t, err)
	assert.Equal(t, "01F8ZQ", id)

	_, err = mifasolSongId("mifasol:")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = mifasolSongId("01F8ZQ")
	assert.ErrorIs(t, err, ErrUnsupported)

	m := &Mifasol{}
	assert.True(t, m.Match("mifasol:abc"))
	assert.False(t, m.Match("https://abc"))
	assert.Equal(t, "mifasol", m.Scheme())
}

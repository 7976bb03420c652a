package srv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceText(t *testing.T) {
	assert.Equal(t, "", presenceText(map[string]string{}))
	assert.Equal(t, "Song A", presenceText(map[string]string{"g1": "Song A"}))
	assert.Equal(t, "music in 3 servers", presenceText(map[string]string{"g1": "a", "g2": "b", "g3": "c"}))
}

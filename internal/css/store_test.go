package css

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStore_UpsertAndRemove(t *testing.T) {
	s := NewStore(zap.NewNop())

	s.Upsert("plugin-a", "body { color: red; }")
	s.Upsert("plugin-b", ".x {}\n")
	s.Upsert("plugin-a", "body { color: blue; }")

	css, ok := s.Get("plugin-a")
	assert.True(t, ok)
	assert.Equal(t, "body { color: blue; }", css)
	assert.Equal(t, []string{"plugin-a", "plugin-b"}, s.Keys())

	s.Remove("plugin-a")
	s.Remove("plugin-missing")

	_, ok = s.Get("plugin-a")
	assert.False(t, ok)
	assert.Equal(t, []string{"plugin-b"}, s.Keys())
}

func TestStore_Render(t *testing.T) {
	s := NewStore(zap.NewNop())
	assert.Equal(t, "", s.Render())

	s.Upsert("plugin-a", "a {}")
	s.Upsert("plugin-b", "b {}\n")

	assert.Equal(t, "/* plugin-a */\na {}\n/* plugin-b */\nb {}\n", s.Render())
}

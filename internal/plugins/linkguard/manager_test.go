package linkguard

import (
	"context"
	"testing"

	"bridgemod/internal/bridge"
	"bridgemod/internal/config"
	"bridgemod/internal/dispatch"
	"bridgemod/internal/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHost struct {
	opened []string
}

func (f *fakeHost) SetMute(bool) (bool, error)                { return false, nil }
func (f *fakeHost) SetDeafen(bool) (bool, error)              { return false, nil }
func (f *fakeHost) SendMessage(string, string) (string, error) { return "", nil }
func (f *fakeHost) GetVersion() (string, error)               { return "1.0.0", nil }

func (f *fakeHost) OpenURL(url string) (bool, error) {
	f.opened = append(f.opened, url)
	return true, nil
}

func setup(t *testing.T, cfg map[string]any) (*Manager, bridge.ClientToHost, *fakeHost) {
	logger := zap.NewNop()
	settings := &config.Settings{Plugins: map[string]config.PluginSettings{
		Name: {Config: cfg},
	}}
	lm := lifecycle.NewManager(dispatch.NewRegistry(logger), logger, lifecycle.WithSettings(settings))

	m := New()
	require.NoError(t, lm.Register(m.Descriptor()))
	require.NoError(t, lm.Start(context.Background(), Name))

	host := &fakeHost{}
	return m, bridge.WrapClientToHost(host, lm), host
}

func TestLinkguard_DefaultSchemes(t *testing.T) {
	m, c2h, host := setup(t, nil)

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://example.com", true},
		{"HTTP://example.com/path", true},
		{"file:///etc/passwd", false},
		{"javascript:alert(1)", false},
		{"no-scheme", false},
		{"", false},
		{"%zz", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			opened, err := c2h.OpenURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, opened)
		})
	}

	assert.Equal(t, []string{"https://example.com", "HTTP://example.com/path"}, host.opened)
	assert.Len(t, m.Blocked(), 5)
}

func TestLinkguard_ConfiguredSchemes(t *testing.T) {
	m, c2h, host := setup(t, map[string]any{"schemes": []any{"https", "MAILTO"}})

	opened, err := c2h.OpenURL("mailto:ada@example.com")
	require.NoError(t, err)
	assert.True(t, opened)

	opened, err = c2h.OpenURL("http://example.com")
	require.NoError(t, err)
	assert.False(t, opened)

	assert.Equal(t, []string{"mailto:ada@example.com"}, host.opened)
	assert.Equal(t, []string{"http://example.com"}, m.Blocked())
}

func TestLinkguard_DefaultsNotShared(t *testing.T) {
	setup(t, nil)
	assert.Equal(t, []string{"http", "https"}, defaultSchemes)
}

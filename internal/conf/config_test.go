package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load()
	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.Equal(t, "audioload", settings.Main.Name)
	assert.False(t, settings.Main.Debug)

	assert.NotEmpty(t, settings.Fetch.BaseURL)
	assert.Equal(t, 30*time.Second, settings.Fetch.Timeout)
	assert.Equal(t, "audioload", settings.Fetch.UserAgent)

	assert.Equal(t, 15*time.Minute, settings.Cache.TTL)
	assert.Equal(t, 30*time.Minute, settings.Cache.CleanupInterval)

	assert.False(t, settings.Sentry.Enabled, "telemetry must be opt-in")
}

func TestSetSettings_ReplacesInstance(t *testing.T) {
	prev := GetSettings()
	t.Cleanup(func() { SetSettings(prev) })

	custom := &Settings{
		Main:  MainSettings{Name: "test-node", Debug: true},
		Fetch: FetchSettings{BaseURL: "http://localhost:9999/audio"},
	}
	SetSettings(custom)

	got := GetSettings()
	require.NotNil(t, got)
	assert.Equal(t, "test-node", got.Main.Name)
	assert.True(t, got.Main.Debug)
}

func TestSetting_ReturnsLoadedInstance(t *testing.T) {
	settings := Setting()
	require.NotNil(t, settings)
	assert.NotEmpty(t, settings.Fetch.BaseURL)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := FindAndLoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.True(t, cfg.IsDefault())
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		content := `{
  "origin": "https://api.example.com",
  "timeout": 5000,
  "followRedirects": false,
  "headers": {"Accept": "application/json"},
  "logLevel": "debug"
}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fetchforge.json"), []byte(content), 0644))

		cfg, err := FindAndLoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", cfg.Origin)
		assert.Equal(t, 5000, cfg.Timeout)
		assert.False(t, cfg.GetFollowRedirects())
		assert.True(t, cfg.GetValidateSSL())
		assert.Equal(t, 10, cfg.MaxRedirects)
		assert.Equal(t, "application/json", cfg.Headers["Accept"])
		assert.Equal(t, zerolog.DebugLevel, cfg.Level())
		assert.False(t, cfg.IsDefault())
	})

	t.Run("first matching filename wins", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".fetchforge.json"), []byte(`{"timeout": 1}`), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".fetchforgerc"), []byte(`{"timeout": 2}`), 0644))

		cfg, err := FindAndLoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Timeout)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config")
	})
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1"}

	merged := base.Merge(&Config{
		Origin:      "http://localhost:8080",
		ValidateSSL: BoolPtr(false),
		Headers:     map[string]string{"B": "2"},
	})

	assert.Equal(t, "http://localhost:8080", merged.Origin)
	assert.False(t, merged.GetValidateSSL())
	assert.True(t, merged.GetFollowRedirects())
	assert.Equal(t, 30000, merged.Timeout)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"A": "1"}, base.Headers, "receiver is not modified")

	assert.Same(t, base, base.Merge(nil))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		want    string
		wantErr bool
	}{
		{name: "empty", origin: "", want: ""},
		{name: "absolute", origin: "https://api.example.com/v1", want: "https://api.example.com/v1"},
		{name: "relative", origin: "/v1", wantErr: true},
		{name: "unparsable", origin: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := (&Config{Origin: tt.origin}).BaseURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, u)
			} else {
				assert.Equal(t, tt.want, u.String())
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, DefaultConfig().ClientOptions(), 4)

	cfg := DefaultConfig().Merge(&Config{Proxy: "http://proxy:3128", Headers: map[string]string{"X": "y"}})
	assert.Len(t, cfg.ClientOptions(), 6)

	assert.Len(t, (&Config{}).ClientOptions(), 2)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, (&Config{}).Level())
	assert.Equal(t, zerolog.WarnLevel, (&Config{LogLevel: "loud"}).Level())
	assert.Equal(t, zerolog.InfoLevel, (&Config{LogLevel: "info"}).Level())
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".fetchforge.json")
	cfg := DefaultConfig()
	cfg.Origin = "http://localhost"

	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

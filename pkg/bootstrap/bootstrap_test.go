package bootstrap

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoreinstein.com/quill/pkg/config"
)

func setupTestEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("GO_TEST", "true")
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	viper.Reset()
	Reset()
	t.Cleanup(func() {
		viper.Reset()
		Reset()
	})
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestPreParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantConfig  string
		wantVerbose bool
	}{
		{name: "no flags", args: []string{"quill", "session"}},
		{name: "long config", args: []string{"quill", "--config", "/tmp/c.toml", "session"}, wantConfig: "/tmp/c.toml"},
		{name: "config equals", args: []string{"quill", "--config=/tmp/c.toml"}, wantConfig: "/tmp/c.toml"},
		{name: "short config joined", args: []string{"quill", "-C/tmp/c.toml"}, wantConfig: "/tmp/c.toml"},
		{name: "short config equals", args: []string{"quill", "-C=/tmp/c.toml"}, wantConfig: "/tmp/c.toml"},
		{name: "verbose", args: []string{"quill", "-v", "session"}, wantVerbose: true},
		{name: "stops at subcommand", args: []string{"quill", "reflow", "--config", "/tmp/c.toml"}},
		{name: "stops at end of options", args: []string{"quill", "--", "-v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile, verbose := PreParseGlobalFlags(tt.args)
			assert.Equal(t, tt.wantConfig, cfgFile)
			assert.Equal(t, tt.wantVerbose, verbose)
		})
	}
}

func TestInitConfig_DefaultLocation(t *testing.T) {
	home := setupTestEnv(t)
	writeFile(t, filepath.Join(home, ".config", "quill", "config.toml"), `
[feedback]
enabled = true
base_url = "https://suggest.example.com"
`)

	cfg, _, err := InitConfig("", false)
	require.NoError(t, err)

	assert.True(t, cfg.Feedback.Enabled)
	assert.Equal(t, "https://suggest.example.com", cfg.Feedback.BaseURL)
}

func TestInitConfig_NoConfigFileUsesDefaults(t *testing.T) {
	setupTestEnv(t)

	cfg, _, err := InitConfig("", false)
	require.NoError(t, err)

	assert.False(t, cfg.Feedback.Enabled)
	assert.Equal(t, []string{"ansible"}, cfg.Feedback.Languages)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	setupTestEnv(t)

	_, _, err := InitConfig(filepath.Join(t.TempDir(), "missing.toml"), false)
	assert.Error(t, err)
}

func TestInitConfig_EnvOverride(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("QUILL_FEEDBACK_BASE_URL", "https://env.example.com")

	cfg, _, err := InitConfig("", false)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Feedback.BaseURL)
}

func TestInitConfig_ProjectConfigOverrides(t *testing.T) {
	home := setupTestEnv(t)
	writeFile(t, filepath.Join(home, ".config", "quill", "config.toml"), `
[feedback]
enabled = true
base_url = "https://suggest.example.com"
languages = ["ansible"]
`)

	project := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(project, ".git"), 0755))
	writeFile(t, filepath.Join(project, ProjectConfigName), `
[feedback]
languages = ["ansible", "yaml"]
`)
	sub := filepath.Join(project, "roles", "web")
	require.NoError(t, os.MkdirAll(sub, 0755))
	t.Chdir(sub)

	root, err := FindProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, project, root)

	cfg, _, err := InitConfig("", false)
	require.NoError(t, err)

	assert.True(t, cfg.Feedback.Tracks("yaml"))
	assert.Equal(t, "https://suggest.example.com", cfg.Feedback.BaseURL)
}

func TestWatchConfig_NoFile(t *testing.T) {
	setupTestEnv(t)
	_, _, err := InitConfig("", false)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.False(t, WatchConfig(logger, func(*config.Config) {}))
}

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[feedback]\nenabled = false\n")

	_, _, err := InitConfig(path, false)
	require.NoError(t, err)

	changes := make(chan *config.Config, 4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.True(t, WatchConfig(logger, func(cfg *config.Config) {
		select {
		case changes <- cfg:
		default:
		}
	}))

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[feedback]\nenabled = true\nbase_url = \"https://suggest.example.com\"\n")

	// A rewrite can surface as several events; wait for the final content.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if !cfg.Feedback.Enabled {
				continue
			}
			assert.Equal(t, "https://suggest.example.com", cfg.Feedback.BaseURL)
			return
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}

// lockedBuffer lets the watcher goroutine log while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchConfig_InvalidChangeKeepsPrevious(t *testing.T) {
	setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[feedback]\nenabled = false\n")

	_, _, err := InitConfig(path, false)
	require.NoError(t, err)

	var logs lockedBuffer
	changes := make(chan *config.Config, 16)
	require.True(t, WatchConfig(slog.New(slog.NewTextHandler(&logs, nil)), func(cfg *config.Config) {
		select {
		case changes <- cfg:
		default:
		}
	}))

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[feedback]\nenabled = true\nrate_limit = 0\n")

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "ignoring invalid config change") {
		if time.Now().After(deadline) {
			t.Fatal("invalid config change was not reported")
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "feedback.rate_limit")

	// Only valid configs ever reach the callback.
	for drained := false; !drained; {
		select {
		case cfg := <-changes:
			assert.Greater(t, cfg.Feedback.RateLimit, 0.0)
		default:
			drained = true
		}
	}
}

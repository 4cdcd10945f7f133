package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-tmx/internal/config"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tmxutils.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "log_level: debug\ntemplate_fallback: true\nconcurrency: 3\nroot: "+root+"\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	want := &config.Config{LogLevel: "debug", TemplateFallback: true, Concurrency: 3, Root: root}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreUnexported(config.Config{})); diff != "" {
		t.Errorf("Load mismatch (-want+got):\n%v", diff)
	}
	require.Equal(t, slog.LevelDebug, cfg.Level())
	require.NotNil(t, cfg.Loader(slog.New(slog.DiscardHandler)))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Concurrency)
	require.Equal(t, slog.LevelInfo, cfg.Level())

	cfg, err = config.Load(writeConfig(t, "template_fallback: true\n"))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Concurrency)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.TemplateFallback)
}

func TestLoadErrors(t *testing.T) {
	for _, text := range []string{
		"log_level: loud\n",
		"concurrency: 0\n",
		"concurrency: [1]\n",
		"root: /nonexistent/tmx/root\n",
	} {
		_, err := config.Load(writeConfig(t, text))
		require.Errorf(t, err, "Load(%q) succeeded", text)
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

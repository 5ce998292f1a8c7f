package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"folio/internal/caps"
	"folio/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".folio"), cfg.Dir)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultCommitTimeout, cfg.CommitTimeout)
	assert.Equal(t, DefaultGlyphs, cfg.TUI.Glyphs)
	assert.Empty(t, cfg.File)
	assert.Equal(t, caps.Default(), cfg.CapSet())
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
dir: /srv/folio
remote: http://admin.internal:3335
commit-timeout: 3s
tui:
  glyphs: ascii
caps:
  - collection: projects
    flag: featured
    max: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("FOLIO_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/srv/folio", cfg.Dir)
	assert.Equal(t, "http://admin.internal:3335", cfg.Remote)
	assert.Equal(t, 3*time.Second, cfg.CommitTimeout)
	assert.Equal(t, "ascii", cfg.TUI.Glyphs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, caps.Set{{Collection: model.CollectionProjects, Flag: model.FlagFeatured, Max: 4}}, cfg.CapSet())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"glyphs":   "tui:\n  glyphs: emoji\n",
		"cap flag": "caps:\n  - collection: projects\n    flag: pinned\n    max: 1\n",
		"cap max":  "caps:\n  - collection: projects\n    flag: featured\n    max: -1\n",
		"timeout":  "commit-timeout: -1s\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nbc.yaml")
	data := `
preprocess:
  ngram: 2
  stop_words: [foo, bar]
store:
  backend: sqlite
  sqlite_path: /tmp/model.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Preprocess.NGram)
	assert.Equal(t, []string{"foo", "bar"}, cfg.Preprocess.StopWords)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/model.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, "model.json", cfg.Model.Path)
	assert.Equal(t, 4096, cfg.Preprocess.CacheSize)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	dir := t.TempDir()
	for name, data := range map[string]string{
		"bad-yaml":    "preprocess: [",
		"bad-ngram":   "preprocess:\n  ngram: 0\n",
		"bad-backend": "store:\n  backend: mongo\n",
		"bad-level":   "log:\n  level: loud\n",
		"no-redis":    "store:\n  backend: redis\n  redis_url: \"\"\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err, name)
	}
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nbc.yaml")
	cfg := DefaultConfig()
	cfg.Store.Backend = BackendRedis
	cfg.Preprocess.NGram = 3
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Corpus.DefaultStopwords)
	assert.Equal(t, filepath.Join("indexes", "inverted-index.bin"), cfg.Artifacts.IndexPath())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8088
  requestTimeout: 3s
corpus:
  textColumns: [title, description]
artifacts:
  dataDir: /srv/idx
  rowsFile: /mnt/rows.bin
redis:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"title", "description"}, cfg.Corpus.TextColumns)
	assert.Equal(t, "/srv/idx/trie.bin", cfg.Artifacts.TriePath())
	assert.Equal(t, "/mnt/rows.bin", cfg.Artifacts.RowsPath())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Redis.CacheTTL)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8088\n")
	t.Setenv("JS_SERVER_PORT", "7000")
	t.Setenv("JS_CORPUS_TEXT_COLUMNS", " title , ,company_name ")
	t.Setenv("JS_KAFKA_ENABLED", "true")
	t.Setenv("JS_REDIS_ENABLED", "not-a-bool")
	t.Setenv("JS_SERVER_ALLOW_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"title", "company_name"}, cfg.Corpus.TextColumns)
	assert.True(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "server: [not a map"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown source", func(c *Config) { c.Corpus.Source = "s3" }, "corpus.source"},
		{"postgres without query", func(c *Config) { c.Corpus.Source = SourcePostgres }, "corpus.query"},
		{"no text columns", func(c *Config) { c.Corpus.TextColumns = nil }, "textColumns"},
		{"zero chunk", func(c *Config) { c.Corpus.ChunkSize = 0 }, "chunkSize"},
		{"zero trie batch", func(c *Config) { c.Corpus.TrieBatchSize = 0 }, "trieBatchSize"},
		{"zero scan chunk", func(c *Config) { c.Search.ScanChunkSize = 0 }, "scanChunkSize"},
		{"zero frame", func(c *Config) { c.Search.MaxFrameSize = 0 }, "maxFrameSize"},
		{"limit above max", func(c *Config) { c.Search.AutocompleteLimit = 500 }, "autocompleteLimit"},
		{"bucketless store", func(c *Config) {
			c.ObjectStore.Enabled = true
			c.ObjectStore.Bucket = ""
		}, "objectStore.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	pg := Default()
	pg.Corpus.Source = SourcePostgres
	pg.Corpus.Query = "SELECT * FROM jobs ORDER BY id"
	assert.NoError(t, pg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	p := Default().Postgres
	assert.Equal(t, "host=localhost port=5432 user=jobsearch password=localdev dbname=jobsearch sslmode=disable", p.DSN())
}

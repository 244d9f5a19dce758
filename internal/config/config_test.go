package config

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PHOTOGROUP_CONFIG", "PHOTOGROUP_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS",
		"PHOTOGROUP_THRESHOLD", "PHOTOGROUP_CONCURRENCY", "PHOTOGROUP_ADDR", "PHOTOGROUP_BUCKET",
		"PHOTOGROUP_PHOTO_ROOT", "PHOTOGROUP_CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "photogroup.yaml")
	content := "credentialsPath: /etc/photogroup/key.json\nthreshold: 0.8\nconcurrency: 2\nbucket: shelf-photos\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/photogroup/key.json", cfg.CredentialsPath)
	assert.Equal(t, 0.8, cfg.Threshold)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "shelf-photos", cfg.Bucket)
	assert.Equal(t, "127.0.0.1:8888", cfg.Address)
	assert.Equal(t, "photos", cfg.PhotoRoot)
	assert.Empty(t, cfg.CORSOrigins)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/gac.json")
	t.Setenv("PHOTOGROUP_THRESHOLD", "0.95")
	t.Setenv("PHOTOGROUP_ADDR", ":9000")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/gac.json", cfg.CredentialsPath)
	assert.Equal(t, 0.95, cfg.Threshold)
	assert.Equal(t, ":9000", cfg.Address)

	t.Setenv("PHOTOGROUP_PHOTO_ROOT", "/srv/photos")
	t.Setenv("PHOTOGROUP_CORS_ORIGINS", "http://localhost:5173, https://catalog.example.edu")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/photos", cfg.PhotoRoot)
	assert.Equal(t, []string{"http://localhost:5173", "https://catalog.example.edu"}, cfg.CORSOrigins)

	t.Setenv("PHOTOGROUP_CREDENTIALS", "/override.json")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/override.json", cfg.CredentialsPath)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("threshold: [1"), 0644))
	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("threshold: 1.5"), 0644))

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "explicit missing file")

	_, err = Load(bad)
	assert.Error(t, err)

	_, err = Load(outOfRange)
	assert.Error(t, err)

	t.Setenv("PHOTOGROUP_CONCURRENCY", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "NaN threshold", mutate: func(c *Config) { c.Threshold = math.NaN() }},
		{name: "negative threshold", mutate: func(c *Config) { c.Threshold = -0.1 }},
		{name: "empty photo root", mutate: func(c *Config) { c.PhotoRoot = " " }},
		{name: "wildcard origin", mutate: func(c *Config) { c.CORSOrigins = []string{"*"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsNaNThreshold(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("PHOTOGROUP_THRESHOLD", "NaN")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateConcurrency(t *testing.T) {
	cfg := &Config{Threshold: 0.5, Concurrency: 0, PhotoRoot: "photos"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, runtime.NumCPU(), cfg.Concurrency)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	assert := assert.New(t)
	cfg := Default()
	assert.Equal(BackendMemory, cfg.Substrate.Backend)
	assert.True(cfg.Cache.Enabled)
	assert.Equal(4096, cfg.Cache.Size)
	assert.NoError(cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "recordvcs.yaml")
	contents := []byte("substrate:\n  backend: bolt\n  bolt_path: ./data.db\ncache:\n  enabled: false\n")
	require.NoError(os.WriteFile(path, contents, 0o644))

	cfg, err := Load(path)
	require.NoError(err)
	assert.Equal(BackendBolt, cfg.Substrate.Backend)
	assert.Equal("./data.db", cfg.Substrate.BoltPath)
	assert.False(cfg.Cache.Enabled)
	assert.Equal("sha256", cfg.Digest)
}

func TestValidateRejectsBoltWithoutPath(t *testing.T) {
	assert := assert.New(t)
	cfg := Default()
	cfg.Substrate.Backend = BackendBolt
	assert.Error(cfg.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	assert := assert.New(t)
	cfg := Default()
	cfg.Substrate.Backend = "nope"
	assert.Error(cfg.Validate())
}

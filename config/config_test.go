package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3010", c.Address)
	assert.Equal(t, int64(1<<20), c.MaxBodyBytes)
	assert.Equal(t, 30*time.Second, time.Duration(c.ActionTimeout))
	assert.Equal(t, int32(10), c.Database.PoolSize)
	assert.True(t, c.HMAC.TrustLoopback)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trombone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: ":8080"
routes: /etc/trombone/routes.conf
pipelines: /etc/trombone/pipelines
actionTimeout: 5s
database:
  url: postgres://localhost/app
  poolSize: 4
hmac:
  enabled: true
  keys: /etc/trombone/keys.yaml
  trustLoopback: false
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Address)
	assert.Equal(t, "/etc/trombone/routes.conf", c.RoutesFile)
	assert.Equal(t, 5*time.Second, time.Duration(c.ActionTimeout))
	assert.Equal(t, int32(4), c.Database.PoolSize)
	assert.True(t, c.HMAC.Enabled)
	assert.False(t, c.HMAC.TrustLoopback)

	// untouched fields keep their defaults
	assert.Equal(t, int64(1<<20), c.MaxBodyBytes)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trombone.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adress: ':8080'\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trombone.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actionTimeout: soon\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

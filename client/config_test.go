package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testConfig = `
[server]
address = "localhost:8000"
uuid = "3f8c"
user = "stuart"
timeout = 30
retries = 0

[transfer]
max_parallel = 8
chunk_depth = 32
compression = "lz4"
throttle = true

[cache]
size = 2

[logging]
logfile = "/tmp/dvidclient-test.log"
max_log_size = 10
max_log_age = 2
`

func writeConfig(t *testing.T, contents string) string {
	filename := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0644))
	return filename
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)
	require.Equal(t, "localhost:8000", config.Server.Address)
	require.Equal(t, "3f8c", config.Server.UUID)
	require.NotNil(t, config.Server.Retries)
	require.Equal(t, 0, *config.Server.Retries)
	require.Equal(t, 8, config.Transfer.MaxParallel)
	require.Equal(t, "/tmp/dvidclient-test.log", config.Logging.Logfile)
	require.Equal(t, 10, config.Logging.MaxSize)

	conn, err := NewConnection(config.Server.Address, config.Options()...)
	require.NoError(t, err)
	require.Equal(t, "stuart", conn.User())
	require.Equal(t, 30*time.Second, conn.timeout)
	require.Equal(t, 0, conn.retry.MaxRetries)
	require.Equal(t, 8, conn.maxParallel)
	require.Equal(t, int32(32), conn.chunkDepth)
	require.NotNil(t, conn.cache)

	opts, err := getVolumeOptions(config.VolumeOptions())
	require.NoError(t, err)
	require.Equal(t, VolumeOptions{Throttle: true, Compression: "lz4"}, opts)
}

func TestDefaultConfig(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "[server]\naddress = \"localhost:8000\"\n"))
	require.NoError(t, err)
	conn, err := NewConnection(config.Server.Address, config.Options()...)
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, conn.timeout)
	require.Equal(t, DefaultRetryPolicy.MaxRetries, conn.retry.MaxRetries)
	require.Equal(t, DefaultMaxParallel, conn.maxParallel)
	require.Nil(t, conn.cache)
	require.Empty(t, config.VolumeOptions())
}

func TestBadConfig(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	_, err = LoadConfig(writeConfig(t, "[server\naddress = 1"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "[transfer]\ncompression = \"jpeg\"\n"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = LoadConfig(writeConfig(t, "[server]\nretries = -1\n"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = LoadConfig(writeConfig(t, "[cache]\nsize = -5\n"))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

package client

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// Config is the TOML configuration of a client.  Example:
//
//	[server]
//	address = "emdata.janelia.org:8000"
//	uuid = "3f8c"
//	token = ""
//	user = "stuart"
//	timeout = 120   # seconds
//	retries = 3
//
//	[transfer]
//	max_parallel = 4
//	chunk_depth = 64
//	compression = "lz4"
//	throttle = false
//
//	[cache]
//	size = 64       # MB, 0 disables
//
//	[logging]
//	logfile = "/tmp/dvidclient.log"
//	max_log_size = 500 # MB
//	max_log_age = 30   # days
type Config struct {
	Server   ServerConfig
	Transfer TransferConfig
	Cache    CacheConfig
	Logging  dvid.LogConfig
}

type ServerConfig struct {
	Address string
	UUID    string
	Token   string
	User    string
	Timeout int
	Retries *int
}

type TransferConfig struct {
	MaxParallel int `toml:"max_parallel"`
	ChunkDepth  int `toml:"chunk_depth"`
	Compression string
	Throttle    bool
}

type CacheConfig struct {
	Size int
}

// LoadConfig decodes a TOML configuration file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no client TOML configuration file provided")
	}
	c := new(Config)
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("bad TOML config %q: %w", filename, err)
	}
	return c, nil
}

// Validate checks settings that can't be checked by decoding alone.
func (c *Config) Validate() error {
	if c.Server.Timeout < 0 {
		return invalidArgf("server timeout cannot be negative")
	}
	if c.Server.Retries != nil && *c.Server.Retries < 0 {
		return invalidArgf("server retries cannot be negative")
	}
	if c.Transfer.MaxParallel < 0 || c.Transfer.ChunkDepth < 0 || c.Cache.Size < 0 {
		return invalidArgf("transfer and cache settings cannot be negative")
	}
	if _, err := getVolumeOptions(c.VolumeOptions()); err != nil {
		return err
	}
	return nil
}

// Options returns the connection options for the configuration.  Unset values leave
// the defaults in place.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Server.Timeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(c.Server.Timeout)*time.Second))
	}
	if c.Server.Retries != nil {
		policy := DefaultRetryPolicy
		policy.MaxRetries = *c.Server.Retries
		opts = append(opts, WithRetryPolicy(policy))
	}
	if c.Server.Token != "" {
		opts = append(opts, WithToken(c.Server.Token))
	}
	if c.Server.User != "" {
		opts = append(opts, WithUser(c.Server.User))
	}
	if c.Transfer.MaxParallel > 0 {
		opts = append(opts, WithMaxParallel(c.Transfer.MaxParallel))
	}
	if c.Transfer.ChunkDepth > 0 {
		opts = append(opts, WithChunkDepth(int32(c.Transfer.ChunkDepth)))
	}
	if c.Cache.Size > 0 {
		opts = append(opts, WithCache(c.Cache.Size*megabyte))
	}
	return opts
}

const megabyte = 1 << 20

// VolumeOptions returns the volume transfer options for the configuration.
func (c *Config) VolumeOptions() []VolumeOption {
	var opts []VolumeOption
	if c.Transfer.Throttle {
		opts = append(opts, Throttle())
	}
	if c.Transfer.Compression != "" {
		opts = append(opts, Compress(c.Transfer.Compression))
	}
	return opts
}

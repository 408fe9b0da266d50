package dvid

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config is a map of keyword to arbitrary data to specify configurations via keyword.
// Keywords are case-insensitive.
type Config struct {
	values map[string]interface{}
}

func NewConfig() Config {
	return Config{make(map[string]interface{})}
}

// GetAll returns all key-value pairs.
func (c Config) GetAll() map[string]interface{} {
	return c.values
}

// Set sets a configuration value, lower-casing the key.
func (c *Config) Set(key string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[strings.ToLower(key)] = value
}

// Get returns a value and whether it was found.
func (c Config) Get(key string) (interface{}, bool) {
	if c.values == nil {
		return nil, false
	}
	v, found := c.values[strings.ToLower(key)]
	return v, found
}

// GetString returns a string value, or an error if the value is present but not a string.
func (c Config) GetString(key string) (s string, found bool, err error) {
	v, found := c.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("setting for %q was not a string: %v", key, v)
	}
	return s, true, nil
}

// SetVersioned sets whether the data instance to be created should be versioned.
func (c *Config) SetVersioned(versioned bool) {
	if versioned {
		c.Set("versioned", "true")
	} else {
		c.Set("versioned", "false")
	}
}

func (c Config) MarshalJSON() ([]byte, error) {
	if c.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.values)
}

func (c *Config) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.values = make(map[string]interface{}, len(m))
	for k, v := range m {
		c.values[strings.ToLower(k)] = v
	}
	return nil
}

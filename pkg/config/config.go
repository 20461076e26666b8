// Package config holds the process configuration, supplied as a
// single JSON value on the command line or through the environment.
// Everything here is fixed at start, nothing is runtime-reconfigurable.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ServiceConfig describes the published image service.
type ServiceConfig struct {
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	Copyright    string  `json:"copyright"`
	MinElevation float64 `json:"min_elevation"`
	MaxElevation float64 `json:"max_elevation" validate:"gtefield=MinElevation"`
	NoDataValue  float64 `json:"nodata_value"`

	// Scheme selects the row convention used when translating public
	// tile addresses into archive addresses, "xyz" (default) or "tms".
	Scheme string `json:"scheme" validate:"omitempty,oneof=xyz tms"`
}

// ArchiveConfig locates the tile archive. Base is either a local
// directory or an s3://bucket/prefix URL.
type ArchiveConfig struct {
	Base string `json:"base" validate:"required"`
	Name string `json:"name" validate:"required"`

	// Healthcheck names the archive opened by the startup inspection
	// and the /health probe. Defaults to Name.
	Healthcheck string `json:"healthcheck"`

	// aws session region, s3 bases only
	Region *string `json:"region"`
}

// RelayConfig switches tile lookups from in-process archive reads to
// relaying against a separate tile-serving process.
type RelayConfig struct {
	// Upstream is interpolated with {name}, {z}, {x} and {y}.
	Upstream string `json:"upstream" validate:"required,contains={z}"`
}

// CacheConfig enables caching of relayed tile payloads.
type CacheConfig struct {
	Type              string   `json:"type" validate:"oneof=memcache redis"`
	Servers           []string `json:"servers" validate:"required,min=1"`
	ExpirationSeconds int      `json:"expiration_seconds" validate:"gte=0"`
}

// Config is the container for the whole JSON configuration. It
// implements flag.Value so the flag package can take it directly.
type Config struct {
	Service ServiceConfig `json:"service" validate:"required"`
	Archive ArchiveConfig `json:"archive" validate:"required"`
	Relay   *RelayConfig  `json:"relay"`
	Cache   *CacheConfig  `json:"cache"`
}

func (c *Config) String() string {
	return fmt.Sprintf("%#v", *c)
}

func (c *Config) Set(line string) error {
	if err := json.Unmarshal([]byte(line), c); err != nil {
		return fmt.Errorf("unable to parse value as a JSON object: %s", err.Error())
	}
	return c.Validate()
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache != nil && c.Relay == nil {
		return fmt.Errorf("invalid configuration: cache requires relay")
	}
	return nil
}

// HealthcheckArchive returns the archive name used for startup
// inspection and health probes.
func (c *Config) HealthcheckArchive() string {
	if c.Archive.Healthcheck != "" {
		return c.Archive.Healthcheck
	}
	return c.Archive.Name
}

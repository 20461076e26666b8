package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetValidConfig(t *testing.T) {
	var cfg Config
	err := cfg.Set(`{
		"service": {
			"name": "WorldElevation",
			"description": "terrain",
			"min_elevation": -450,
			"max_elevation": 8900,
			"nodata_value": -9999,
			"scheme": "xyz"
		},
		"archive": {"base": "/data/tiles", "name": "terrain"}
	}`)
	require.NoError(t, err)
	assert.Equal(t, "WorldElevation", cfg.Service.Name)
	assert.Equal(t, "terrain", cfg.HealthcheckArchive())
}

func TestSetRejectsBadJson(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Set(`{`))
}

func TestValidateRejectsInvertedElevations(t *testing.T) {
	var cfg Config
	err := cfg.Set(`{
		"service": {"name": "te", "min_elevation": 100, "max_elevation": -100},
		"archive": {"base": "/data", "name": "t"}
	}`)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownScheme(t *testing.T) {
	var cfg Config
	err := cfg.Set(`{
		"service": {"name": "te", "scheme": "wms"},
		"archive": {"base": "/data", "name": "t"}
	}`)
	assert.Error(t, err)
}

func TestValidateRejectsCacheWithoutRelay(t *testing.T) {
	var cfg Config
	err := cfg.Set(`{
		"service": {"name": "te"},
		"archive": {"base": "/data", "name": "t"},
		"cache": {"type": "redis", "servers": ["localhost:6379"]}
	}`)
	assert.Error(t, err)
}

func TestValidateRelayPattern(t *testing.T) {
	var cfg Config
	err := cfg.Set(`{
		"service": {"name": "te"},
		"archive": {"base": "/data", "name": "t"},
		"relay": {"upstream": "http://localhost:9090/tiles/{name}/{z}/{x}/{y}"}
	}`)
	require.NoError(t, err)
	require.NotNil(t, cfg.Relay)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 4, cfg.PlatformConcurrency)
	assert.Equal(t, 30*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}

func TestLoadConfig_PostgresNeedsURI(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_URI", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate_SecretKeyLength(t *testing.T) {
	cfg := &Config{
		StoreDriver:         "memory",
		SchedulerInterval:   time.Minute,
		SweepInterval:       time.Minute,
		AnalyticsInterval:   time.Minute,
		JobConcurrency:      1,
		PlatformConcurrency: 1,
		AdapterTimeout:      time.Second,
		SecretKey:           "short",
	}
	assert.Error(t, cfg.Validate())

	cfg.SecretKey = "0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestPlatforms_StaticSkipsEmptyTokens(t *testing.T) {
	p := Platforms{FacebookPageID: "page", FacebookToken: "tok", InstagramUserID: "ig"}
	accounts := p.Static()
	assert.Len(t, accounts, 1)
	assert.Equal(t, "page", accounts["facebook"].AccountID)
}

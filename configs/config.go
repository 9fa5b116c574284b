package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type R2 struct {
	AccountID  string `env:"R2_ACCOUNT_ID"`
	AccessKey  string `env:"R2_ACCESS_KEY"`
	SecretKey  string `env:"R2_SECRET_KEY"`
	BucketName string `env:"R2_BUCKET_NAME"`
	// Endpoint overrides the account endpoint, e.g. for a local S3 emulator.
	Endpoint string `env:"R2_ENDPOINT"`
}

func (r R2) Enabled() bool {
	return r.BucketName != "" && r.AccessKey != "" && r.SecretKey != ""
}

// PlatformAccount is a static credential used when the social_accounts table
// is not available (single-tenant deployments).
type PlatformAccount struct {
	AccountID   string
	AccessToken string
}

type Platforms struct {
	FacebookPageID    string `env:"FACEBOOK_PAGE_ID"`
	FacebookToken     string `env:"FACEBOOK_TOKEN"`
	TwitterToken      string `env:"TWITTER_TOKEN"`
	InstagramUserID   string `env:"INSTAGRAM_USER_ID"`
	InstagramToken    string `env:"INSTAGRAM_TOKEN"`
	LinkedInAuthorURN string `env:"LINKEDIN_AUTHOR_URN"`
	LinkedInToken     string `env:"LINKEDIN_TOKEN"`
	TiktokToken       string `env:"TIKTOK_TOKEN"`
	YoutubeToken      string `env:"YOUTUBE_TOKEN"`

	// Requests per second allowed towards each platform API.
	RateLimit float64 `env:"PLATFORM_RATE_LIMIT" envDefault:"5"`
	Burst     int     `env:"PLATFORM_RATE_BURST" envDefault:"5"`
}

// Static returns the configured static credentials keyed by platform name.
func (p Platforms) Static() map[string]PlatformAccount {
	accounts := map[string]PlatformAccount{
		"facebook":  {AccountID: p.FacebookPageID, AccessToken: p.FacebookToken},
		"twitter":   {AccessToken: p.TwitterToken},
		"instagram": {AccountID: p.InstagramUserID, AccessToken: p.InstagramToken},
		"linkedin":  {AccountID: p.LinkedInAuthorURN, AccessToken: p.LinkedInToken},
		"tiktok":    {AccessToken: p.TiktokToken},
		"youtube":   {AccessToken: p.YoutubeToken},
	}
	for name, acc := range accounts {
		if acc.AccessToken == "" {
			delete(accounts, name)
		}
	}
	return accounts
}

type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":3000"`
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	PostgresURI   string `env:"POSTGRES_URI"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"publisher"`
	RedisURI      string `env:"REDIS_URI"`
	SecretKey     string `env:"SECRET_KEY"`

	SchedulerInterval   time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1m"`
	SchedulerBatchSize  int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"100"`
	JobConcurrency      int           `env:"JOB_CONCURRENCY" envDefault:"10"`
	PlatformConcurrency int           `env:"PLATFORM_CONCURRENCY" envDefault:"4"`
	AdapterTimeout      time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"30s"`
	PublishingGrace     time.Duration `env:"PUBLISHING_GRACE" envDefault:"15m"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	AnalyticsInterval   time.Duration `env:"ANALYTICS_INTERVAL" envDefault:"30m"`
	AnalyticsWindow     time.Duration `env:"ANALYTICS_WINDOW" envDefault:"168h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	R2        R2
	Platforms Platforms
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.PostgresURI == "" {
			return errors.New("POSTGRES_URI is required for the postgres store")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.SchedulerInterval <= 0 || c.SweepInterval <= 0 || c.AnalyticsInterval <= 0 {
		return errors.New("scheduler, sweep and analytics intervals must be positive")
	}
	if c.JobConcurrency <= 0 || c.PlatformConcurrency <= 0 {
		return errors.New("concurrency limits must be positive")
	}
	if c.AdapterTimeout <= 0 {
		return errors.New("ADAPTER_TIMEOUT must be positive")
	}
	if c.SecretKey != "" {
		switch len(c.SecretKey) {
		case 16, 24, 32:
		default:
			return errors.New("SECRET_KEY must be 16, 24 or 32 bytes")
		}
	}
	return nil
}

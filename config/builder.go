package config

import "time"

// ConfigBuilder assembles a Config starting from Defaults
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder creates a builder seeded with Defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Defaults}
}

func (b *ConfigBuilder) WithBucket(name string) *ConfigBuilder {
	b.cfg.Bucket.Name = name
	return b
}

func (b *ConfigBuilder) WithBackend(backend string) *ConfigBuilder {
	b.cfg.Bucket.Backend = backend
	return b
}

func (b *ConfigBuilder) WithDBPath(path string) *ConfigBuilder {
	b.cfg.Bucket.DBPath = path
	return b
}

func (b *ConfigBuilder) WithDBFile(file string) *ConfigBuilder {
	b.cfg.Bucket.DBFile = file
	return b
}

func (b *ConfigBuilder) WithRedis(addr, password string, db int) *ConfigBuilder {
	b.cfg.Redis.Addr = addr
	b.cfg.Redis.Password = password
	b.cfg.Redis.DB = db
	return b
}

func (b *ConfigBuilder) WithOperationTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Operations.Timeout = d
	return b
}

func (b *ConfigBuilder) WithBatchConcurrency(n int) *ConfigBuilder {
	b.cfg.Operations.BatchConcurrency = n
	return b
}

func (b *ConfigBuilder) WithHTTPPort(port string) *ConfigBuilder {
	b.cfg.HTTP.Port = port
	return b
}

func (b *ConfigBuilder) WithPurgeInterval(d time.Duration) *ConfigBuilder {
	b.cfg.Bucket.PurgeEvery = d
	return b
}

// WithRateLimit sets requests per second and burst; a zero rate disables limiting
func (b *ConfigBuilder) WithRateLimit(perSecond float64, burst int) *ConfigBuilder {
	b.cfg.HTTP.RateLimit = perSecond
	b.cfg.HTTP.RateBurst = burst
	return b
}

func (b *ConfigBuilder) WithCORSOrigins(origins ...string) *ConfigBuilder {
	b.cfg.HTTP.CORSOrigins = origins
	return b
}

func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Log.Level = level
	return b
}

// Build validates and returns the assembled configuration
func (b *ConfigBuilder) Build() (*Config, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import "time"

// Config holds runtime settings for the randpic viewer.
//
// Durations are time.Duration values; the file loaders accept them as
// strings like "15s" (see timex.Duration).
type Config struct {
	APIEndpoint string
	Quality     string
	DataDir     string

	CacheBackend    string
	MemoryCacheSize int

	FetchAttempts   int
	FetchTimeout    time.Duration
	DecodeTimeout   time.Duration
	RetryBaseDelay  time.Duration
	MaxImageSizeMB  int
	BreakerFailures uint32
	BreakerCooldown time.Duration

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	LogFormat string
	LogLevel  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIEndpoint = "https://api.jkyai.top/API/sjmtzs.php"
	c.Quality = "original"
	c.DataDir = "~/.randpic"

	c.CacheBackend = "sqlite"
	c.MemoryCacheSize = 16

	c.FetchAttempts = 3
	c.FetchTimeout = 15 * time.Second
	c.DecodeTimeout = 15 * time.Second
	c.RetryBaseDelay = 500 * time.Millisecond
	c.MaxImageSizeMB = 20
	c.BreakerFailures = 5
	c.BreakerCooldown = 30 * time.Second

	c.S3Prefix = "randpic"
	c.S3Region = "us-east-1"

	c.LogFormat = "text"
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if given) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dmitrijs2005/randpic/internal/filex"
	"github.com/dmitrijs2005/randpic/internal/flagx"
	"github.com/dmitrijs2005/randpic/internal/timex"
)

// FileConfig is the on-disk shape of the config file, JSON or TOML. Pointer
// fields distinguish "absent" from a zero value so a partial file only
// overrides what it names.
type FileConfig struct {
	APIEndpoint *string `json:"api_endpoint" toml:"api_endpoint"`
	Quality     *string `json:"quality" toml:"quality"`
	DataDir     *string `json:"data_dir" toml:"data_dir"`

	Cache *struct {
		Backend    *string `json:"backend" toml:"backend"`
		MemorySize *int    `json:"memory_size" toml:"memory_size"`
	} `json:"cache" toml:"cache"`

	Fetch *struct {
		Attempts        *int            `json:"attempts" toml:"attempts"`
		Timeout         *timex.Duration `json:"timeout" toml:"timeout"`
		DecodeTimeout   *timex.Duration `json:"decode_timeout" toml:"decode_timeout"`
		RetryBaseDelay  *timex.Duration `json:"retry_base_delay" toml:"retry_base_delay"`
		MaxImageSizeMB  *int            `json:"max_image_size_mb" toml:"max_image_size_mb"`
		BreakerFailures *uint32         `json:"breaker_failures" toml:"breaker_failures"`
		BreakerCooldown *timex.Duration `json:"breaker_cooldown" toml:"breaker_cooldown"`
	} `json:"fetch" toml:"fetch"`

	S3 *struct {
		Bucket       *string `json:"bucket" toml:"bucket"`
		Prefix       *string `json:"prefix" toml:"prefix"`
		Region       *string `json:"region" toml:"region"`
		Endpoint     *string `json:"endpoint" toml:"endpoint"`
		AccessKey    *string `json:"access_key" toml:"access_key"`
		SecretKey    *string `json:"secret_key" toml:"secret_key"`
		UsePathStyle *bool   `json:"use_path_style" toml:"use_path_style"`
	} `json:"s3" toml:"s3"`

	Log *struct {
		Format *string `json:"format" toml:"format"`
		Level  *string `json:"level" toml:"level"`
	} `json:"log" toml:"log"`
}

// parseFile overlays cfg with the file named by -c/-config. Files ending in
// .toml are read as TOML, anything else as JSON. Read and decode errors
// panic.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	path, err := filex.ExpandPath(path)
	if err != nil {
		panic(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &fc)
	} else {
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

func (fc *FileConfig) apply(cfg *Config) {
	set(&cfg.APIEndpoint, fc.APIEndpoint)
	set(&cfg.Quality, fc.Quality)
	set(&cfg.DataDir, fc.DataDir)

	if c := fc.Cache; c != nil {
		set(&cfg.CacheBackend, c.Backend)
		set(&cfg.MemoryCacheSize, c.MemorySize)
	}

	if f := fc.Fetch; f != nil {
		set(&cfg.FetchAttempts, f.Attempts)
		setDuration(&cfg.FetchTimeout, f.Timeout)
		setDuration(&cfg.DecodeTimeout, f.DecodeTimeout)
		setDuration(&cfg.RetryBaseDelay, f.RetryBaseDelay)
		set(&cfg.MaxImageSizeMB, f.MaxImageSizeMB)
		set(&cfg.BreakerFailures, f.BreakerFailures)
		setDuration(&cfg.BreakerCooldown, f.BreakerCooldown)
	}

	if s := fc.S3; s != nil {
		set(&cfg.S3Bucket, s.Bucket)
		set(&cfg.S3Prefix, s.Prefix)
		set(&cfg.S3Region, s.Region)
		set(&cfg.S3Endpoint, s.Endpoint)
		set(&cfg.S3AccessKey, s.AccessKey)
		set(&cfg.S3SecretKey, s.SecretKey)
		set(&cfg.S3UsePathStyle, s.UsePathStyle)
	}

	if l := fc.Log; l != nil {
		set(&cfg.LogFormat, l.Format)
		set(&cfg.LogLevel, l.Level)
	}
}

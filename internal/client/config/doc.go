// Package config loads runtime configuration for the randpic viewer.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. A path ending in
//     .toml is decoded as TOML, anything else as JSON. "~" is expanded.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   random image API endpoint
//	-q string   image quality (original|compressed)
//	-d string   data directory (default ~/.randpic)
//	-b string   image cache backend (sqlite|bolt|s3)
//	-n int      fetch attempts per image
//	-l string   log format (text|json|zap)
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "15s" or, in
// JSON, integer nanoseconds. Every key is optional:
//
//	{
//	  "api_endpoint": "https://api.jkyai.top/API/sjmtzs.php",
//	  "quality": "original",
//	  "data_dir": "~/.randpic",
//	  "cache": {"backend": "bolt", "memory_size": 16},
//	  "fetch": {"attempts": 3, "timeout": "15s", "decode_timeout": "15s",
//	            "retry_base_delay": "500ms", "max_image_size_mb": 20,
//	            "breaker_failures": 5, "breaker_cooldown": "30s"},
//	  "s3": {"bucket": "pics", "prefix": "randpic", "region": "us-east-1",
//	         "endpoint": "http://127.0.0.1:9000", "use_path_style": true},
//	  "log": {"format": "zap", "level": "debug"}
//	}
//
// The same keys work in TOML with [cache], [fetch], [s3] and [log] tables.
//
// Invalid files and flags panic; LoadConfig is meant to run once at startup.
package config

package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/randpic/internal/flagx"
)

var flagNames = []string{"a", "q", "d", "b", "n", "l"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   random image API endpoint
//	-q string   image quality: original or compressed
//	-d string   data directory
//	-b string   image cache backend: sqlite, bolt or s3
//	-n int      fetch attempts per image
//	-l string   log format: text, json or zap
//
// Only these flags are read from os.Args (see flagx.FilterArgs), so -c and
// any future flags of other components pass through untouched.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIEndpoint, "a", cfg.APIEndpoint, "random image API endpoint")
	fs.StringVar(&cfg.Quality, "q", cfg.Quality, "image quality (original|compressed)")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.CacheBackend, "b", cfg.CacheBackend, "image cache backend (sqlite|bolt|s3)")
	fs.IntVar(&cfg.FetchAttempts, "n", cfg.FetchAttempts, "fetch attempts per image")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format (text|json|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

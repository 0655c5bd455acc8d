package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   data directory
//	-p string   cloud provider ("bucket" or "s3")
//	-b string   bucket API base URL
//	-r int      max upload retries per entry
//	-i int      retry base delay in seconds
//
// Only the flags listed here are parsed; the rest of os.Args is filtered
// out so other packages can define their own.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-p", "-b", "-r", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.CloudProvider, "p", cfg.CloudProvider, "cloud provider (bucket or s3)")
	fs.StringVar(&cfg.BucketBaseURL, "b", cfg.BucketBaseURL, "bucket API base URL")
	fs.IntVar(&cfg.SyncMaxRetries, "r", cfg.SyncMaxRetries, "max upload retries per entry")
	baseDelay := fs.Int("i", int(cfg.SyncBaseDelay.Seconds()), "retry base delay (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncBaseDelay = time.Duration(*baseDelay) * time.Second
}

package config

import (
	"github.com/spf13/pflag"
)

// overrides copies one flag's field from src to dst.
var overrides = map[string]func(dst, src *Config){
	"key":                func(d, s *Config) { d.APIKey = s.APIKey },
	"key-file":           func(d, s *Config) { d.KeyFile = s.KeyFile },
	"region":             func(d, s *Config) { d.Region = s.Region },
	"platform":           func(d, s *Config) { d.Platform = s.Platform },
	"target":             func(d, s *Config) { d.Target = s.Target },
	"max-depth":          func(d, s *Config) { d.MaxDepth = s.MaxDepth },
	"matches-per-player": func(d, s *Config) { d.MatchesPerPlayer = s.MatchesPerPlayer },
	"seed":               func(d, s *Config) { d.Seeds = s.Seeds },
	"queue":              func(d, s *Config) { d.Queues = s.Queues },
	"allow-remakes":      func(d, s *Config) { d.AllowRemakes = s.AllowRemakes },
	"workers":            func(d, s *Config) { d.Workers = s.Workers },
	"output-dir":         func(d, s *Config) { d.OutputDir = s.OutputDir },
	"output":             func(d, s *Config) { d.Output = s.Output },
	"format":             func(d, s *Config) { d.Format = s.Format },
	"compress":           func(d, s *Config) { d.Compress = s.Compress },
	"sink":               func(d, s *Config) { d.SinkURL = s.SinkURL },
	"discord-webhook":    func(d, s *Config) { d.DiscordWebhook = s.DiscordWebhook },
	"check-key":          func(d, s *Config) { d.CheckKey = s.CheckKey },
	"verbose":            func(d, s *Config) { d.Verbose = s.Verbose },
	"quiet":              func(d, s *Config) { d.Quiet = s.Quiet },
	"rate-limit":         func(d, s *Config) { d.RateLimits = s.RateLimits },
	"max-attempts":       func(d, s *Config) { d.Retry.MaxAttempts = s.Retry.MaxAttempts },
	"base-delay":         func(d, s *Config) { d.Retry.BaseDelay = s.Retry.BaseDelay },
	"max-delay":          func(d, s *Config) { d.Retry.MaxDelay = s.Retry.MaxDelay },
	"rate-limit-retries": func(d, s *Config) { d.Retry.MaxRateLimitRetries = s.Retry.MaxRateLimitRetries },
}

// BindFlags registers one flag per Config field, writing into c. Defaults
// shown in help come from c.
func BindFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVar(&c.APIKey, "key", c.APIKey, "Riot API key (prefer RIOT_API_KEY)")
	fs.StringVar(&c.KeyFile, "key-file", c.KeyFile, "file holding the API key, read when no key is set")
	fs.StringVar(&c.Region, "region", c.Region, "regional route for account and match APIs (americas, europe, asia, sea)")
	fs.StringVar(&c.Platform, "platform", c.Platform, "platform route for league and status APIs (e.g. na1, euw1)")

	fs.IntVarP(&c.Target, "target", "n", c.Target, "number of match samples to collect")
	fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "maximum hops from a seed player (0 = unbounded)")
	fs.IntVar(&c.MatchesPerPlayer, "matches-per-player", c.MatchesPerPlayer, "recent matches fetched per player")
	fs.StringSliceVarP(&c.Seeds, "seed", "s", c.Seeds, "seed player as Name#Tag or PUUID (repeatable; default: top Challenger)")
	fs.IntSliceVar(&c.Queues, "queue", c.Queues, "eligible queue ids (420 = ranked solo/duo)")
	fs.BoolVar(&c.AllowRemakes, "allow-remakes", c.AllowRemakes, "keep games ended by early surrender")
	fs.IntVarP(&c.Workers, "workers", "w", c.Workers, "matches fetched concurrently per player")

	fs.StringVarP(&c.OutputDir, "output-dir", "d", c.OutputDir, "directory for the generated output file")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "output file path (overrides --output-dir)")
	fs.StringVarP(&c.Format, "format", "f", c.Format, "output format: csv or jsonl")
	fs.BoolVar(&c.Compress, "compress", c.Compress, "gzip the output file when the run ends")
	fs.StringVar(&c.SinkURL, "sink", c.SinkURL, "also store samples in sqlite://, libsql:// or postgres://")

	fs.StringVar(&c.DiscordWebhook, "discord-webhook", c.DiscordWebhook, "Discord webhook notified when the run ends")
	fs.BoolVar(&c.CheckKey, "check-key", c.CheckKey, "validate the API key before crawling")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "debug logging")
	fs.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "no progress spinner")

	fs.StringSliceVar(&c.RateLimits, "rate-limit", c.RateLimits, "application rate limits as requests:seconds")
	fs.IntVar(&c.Retry.MaxAttempts, "max-attempts", c.Retry.MaxAttempts, "attempts per request on server or network errors")
	fs.StringVar(&c.Retry.BaseDelay, "base-delay", c.Retry.BaseDelay, "first backoff delay")
	fs.StringVar(&c.Retry.MaxDelay, "max-delay", c.Retry.MaxDelay, "backoff delay cap")
	fs.IntVar(&c.Retry.MaxRateLimitRetries, "rate-limit-retries", c.Retry.MaxRateLimitRetries, "429 responses waited out per request")
}

// ApplyFlags copies every flag the user set on fs from src into dst.
func ApplyFlags(fs *pflag.FlagSet, dst, src *Config) {
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply(dst, src)
		}
	})
}

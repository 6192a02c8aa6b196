package ctscrape

import "net/http"

// Config is the core's programmatic configuration: what the CLI's flags
// (and optionally a Consul overlay) resolve to before a scrape starts.
type Config struct {
	LogURL             string
	Format             Format
	Output             string // empty means stdout
	IncludeChains      bool
	IncludePrecertData bool
	NumberOfEntries    uint64 // 0 means unbounded
	Start              uint64
	UserAgent          string
	InitialFetchers    int
	MaxFetchers        int

	// S3 output, used instead of Output when set.
	S3Bucket   string
	S3Region   string
	S3Endpoint string

	// Optional Consul overlay.
	ConsulAddress string
	ConsulKVPath  string

	formatSetByFlag bool
}

// DefaultUserAgent is sent on every request unless overridden.
const DefaultUserAgent = "scrape-ct-log/1.0 (+ctscrape.dev)"

// SetFormat records an explicit CLI flag value for Format, so a later
// Consul overlay won't override it.
func (c *Config) SetFormat(f Format) {
	c.Format = f
	c.formatSetByFlag = true
}

// ToRunConfig builds the Runner's configuration from cfg, binding it to
// the given HTTP client and sink handle.
func (c *Config) ToRunConfig(client *http.Client, sink *Handle) RunConfig {
	return RunConfig{
		LogURL:          c.LogURL,
		Offset:          c.Start,
		Limit:           c.NumberOfEntries,
		InitialFetchers: c.InitialFetchers,
		MaxFetchers:     c.MaxFetchers,
		UserAgent:       c.UserAgent,
		HTTPClient:      client,
		Sink:            sink,
	}
}

package ctscrape

import (
	"encoding/json"
	"fmt"

	consul "github.com/hashicorp/consul/api"
)

// RemoteOverlay is the subset of Config that may be supplied via Consul
// KV instead of (or underneath) CLI flags. Unlike ctsubmit's LoadLog,
// which takes a Consul lock because it coordinates long-lived, mutually
// exclusive log state, a scrape is a one-shot read: nothing here needs
// cross-run coordination, so no lock is taken and nothing is written
// back.
type RemoteOverlay struct {
	LogURL             *string `json:"log_url,omitempty"`
	Format             *string `json:"format,omitempty"`
	IncludeChains      *bool   `json:"include_chains,omitempty"`
	IncludePrecertData *bool   `json:"include_precert_data,omitempty"`
}

// LoadRemoteOverlay fetches and parses a JSON config blob from Consul KV
// at kvPath, the same "config lives at a well-known KV path" shape
// ctsubmit/config.go uses for GlobalConfig.
func LoadRemoteOverlay(consulAddress, kvPath string) (*RemoteOverlay, error) {
	cfg := consul.DefaultConfig()
	if consulAddress != "" {
		cfg.Address = consulAddress
	}
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, systemErr("consul client", err)
	}

	kv := client.KV()
	pair, _, err := kv.Get(kvPath, &consul.QueryOptions{RequireConsistent: true})
	if err != nil {
		return nil, systemErr("consul KV get", err)
	}
	if pair == nil {
		return nil, fmt.Errorf("no configuration found at %s", kvPath)
	}

	var overlay RemoteOverlay
	if err := json.Unmarshal(pair.Value, &overlay); err != nil {
		return nil, jsonParseErr("consul config blob", err)
	}
	return &overlay, nil
}

// Apply merges the overlay under cfg: a field already set on the CLI
// config (non-zero) wins, since explicit flags always take precedence
// over the remote default.
func (o *RemoteOverlay) Apply(cfg *Config) {
	if o == nil {
		return
	}
	if cfg.LogURL == "" && o.LogURL != nil {
		cfg.LogURL = *o.LogURL
	}
	if !cfg.formatSetByFlag && o.Format != nil {
		if f, err := ParseFormat(*o.Format); err == nil {
			cfg.Format = f
		}
	}
	if !cfg.IncludeChains && o.IncludeChains != nil {
		cfg.IncludeChains = *o.IncludeChains
	}
	if !cfg.IncludePrecertData && o.IncludePrecertData != nil {
		cfg.IncludePrecertData = *o.IncludePrecertData
	}
}

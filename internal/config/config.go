package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Settings are the tool's own knobs, read from LIFT_* environment variables.
// Flags override these where both exist. The project .env file feeds
// manifest interpolation only, never these settings.
type Settings struct {
	// File is the manifest path, equivalent to --file.
	File string `env:"LIFT_FILE"`
	// ProjectName overrides the derived project name.
	ProjectName string `env:"LIFT_PROJECT_NAME"`
	LogLevel    string `env:"LIFT_LOG_LEVEL,default=info"`
	NoColor     bool   `env:"LIFT_NO_COLOR"`
	// HTTPAddr is the bind address of the status API.
	HTTPAddr string `env:"LIFT_HTTP_ADDR,default=127.0.0.1:8631"`

	DNS DNS `env:",prefix=LIFT_DNS_"`
}

// DNS configures the optional Cloudflare record publishing.
type DNS struct {
	Enabled  bool   `env:"ENABLED"`
	APIToken string `env:"API_TOKEN"`
	ZoneID   string `env:"ZONE_ID"`
	// BaseDomain is the zone suffix records are created under.
	BaseDomain string `env:"BASE_DOMAIN"`
	// ServerAddress is the A record target, normally this host's public
	// address.
	ServerAddress string `env:"SERVER_ADDRESS"`
	Proxied       bool   `env:"PROXIED,default=true"`
	TTL           int    `env:"TTL,default=120"`
	// AutoPublish publishes records as part of up and removes them on
	// down.
	AutoPublish bool `env:"AUTO_PUBLISH"`
}

// Load reads settings from the process environment.
func Load(ctx context.Context) (*Settings, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads settings through the given lookuper. Used by tests.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Settings, error) {
	var s Settings
	if err := envconfig.ProcessWith(ctx, &s, lookuper); err != nil {
		return nil, fmt.Errorf("failed to read settings from environment: %w", err)
	}
	return &s, nil
}

// Validate checks that the DNS block is usable when enabled.
func (d DNS) Validate() error {
	if !d.Enabled {
		return nil
	}
	if d.APIToken == "" {
		return fmt.Errorf("LIFT_DNS_API_TOKEN is required when DNS publishing is enabled")
	}
	if d.ZoneID == "" {
		return fmt.Errorf("LIFT_DNS_ZONE_ID is required when DNS publishing is enabled")
	}
	if d.BaseDomain == "" {
		return fmt.Errorf("LIFT_DNS_BASE_DOMAIN is required when DNS publishing is enabled")
	}
	if d.ServerAddress == "" {
		return fmt.Errorf("LIFT_DNS_SERVER_ADDRESS is required when DNS publishing is enabled")
	}
	return nil
}

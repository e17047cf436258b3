package serp

import (
	"fmt"
	"strings"

	"github.com/FranksOps/jobsweep/pkg/httpclient"
	"github.com/FranksOps/jobsweep/pkg/useragent"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is "serpapi" (default) or "duckduckgo".
	Provider string
	APIKey   string
	Endpoint string
	Engine   string
	// UserAgents feeds the rotating pool of HTML providers.
	UserAgents []string
	UARotation useragent.Rotation
}

// New builds the provider named by cfg.Provider.
func New(cfg Config, client *httpclient.Client) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "serpapi":
		return NewSerpAPI(client, cfg.APIKey, cfg.Endpoint, cfg.Engine)
	case "duckduckgo", "ddg":
		return NewDuckDuckGo(client, cfg.Endpoint, useragent.NewPool(cfg.UserAgents), cfg.UARotation)
	default:
		return nil, fmt.Errorf("serp: unknown provider %q", cfg.Provider)
	}
}

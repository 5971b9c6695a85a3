package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/netutil"
)

// DefaultEndpointHealth is the baseline of catalog entries without a health value.
const DefaultEndpointHealth = 50

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// CatalogEndpoint is one endpoint entry of the catalog file.
type CatalogEndpoint struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Embed    string   `yaml:"embed"`
	Priority int      `yaml:"priority"`
	Health   *float64 `yaml:"health"`
}

// CatalogSettings are optional lifecycle overrides. Non-zero values take
// precedence over the environment.
type CatalogSettings struct {
	MaxRetries          int      `yaml:"max_retries"`
	RetryDelay          Duration `yaml:"retry_delay"`
	HealthCheckInterval Duration `yaml:"health_check_interval"`
}

// Catalog is the static endpoint configuration.
type Catalog struct {
	Endpoints  []CatalogEndpoint `yaml:"endpoints"`
	UserAgents []string          `yaml:"user_agents"`
	Settings   CatalogSettings   `yaml:"settings"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic("config: invalid built-in catalog: " + err.Error())
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path selects the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates catalog YAML. Unknown keys are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []string
	seen := make(map[string]struct{}, len(c.Endpoints))
	selectable := 0

	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		ep.ID = strings.TrimSpace(ep.ID)
		if ep.ID == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: id must not be empty", i))
			continue
		}
		if _, dup := seen[ep.ID]; dup {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: duplicate id %q", i, ep.ID))
		}
		seen[ep.ID] = struct{}{}

		prefix, err := netutil.NormalizeEmbedPrefix(ep.Embed)
		if err != nil {
			errs = append(errs, fmt.Sprintf("endpoints[%d] (%s): %v", i, ep.ID, err))
		}
		ep.Embed = prefix
		if prefix != "" {
			selectable++
		}
		if ep.Health != nil && (*ep.Health < 0 || *ep.Health > 100) {
			errs = append(errs, fmt.Sprintf("endpoints[%d] (%s): health must be within [0,100], got %v", i, ep.ID, *ep.Health))
		}
	}
	if len(c.Endpoints) > 0 && selectable == 0 {
		errs = append(errs, "catalog must contain at least one endpoint with an embed prefix")
	}
	if len(c.Endpoints) == 0 {
		errs = append(errs, "catalog must contain at least one endpoint")
	}

	agents := c.UserAgents[:0]
	for _, ua := range c.UserAgents {
		if ua = strings.TrimSpace(ua); ua != "" {
			agents = append(agents, ua)
		}
	}
	c.UserAgents = agents

	if c.Settings.MaxRetries < 0 {
		errs = append(errs, "settings.max_retries must not be negative")
	}
	if c.Settings.RetryDelay < 0 {
		errs = append(errs, "settings.retry_delay must not be negative")
	}
	if c.Settings.HealthCheckInterval < 0 {
		errs = append(errs, "settings.health_check_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// EndpointList converts the catalog entries into registry endpoints,
// preserving order.
func (c *Catalog) EndpointList() []endpoint.Endpoint {
	out := make([]endpoint.Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		health := float64(DefaultEndpointHealth)
		if ep.Health != nil {
			health = *ep.Health
		}
		name := ep.Name
		if name == "" {
			name = ep.ID
		}
		out = append(out, endpoint.Endpoint{
			ID:          ep.ID,
			Name:        name,
			EmbedPrefix: ep.Embed,
			BaseHealth:  health,
			Priority:    ep.Priority,
		})
	}
	return out
}

// ApplySettings overlays non-zero catalog settings onto env.
func (c *Catalog) ApplySettings(env *EnvConfig) {
	s := c.Settings
	if s.MaxRetries > 0 {
		env.MaxRetries = s.MaxRetries
	}
	if s.RetryDelay > 0 {
		env.RetryBackoffMin = s.RetryDelay.Std()
		if env.RetryBackoffMax < env.RetryBackoffMin {
			env.RetryBackoffMax = env.RetryBackoffMin
		}
	}
	if s.HealthCheckInterval > 0 {
		env.RecoverySchedule = "@every " + s.HealthCheckInterval.Std().String()
	}
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	eps := c.EndpointList()
	if len(eps) != 8 {
		t.Fatalf("endpoints: got %d, want 8", len(eps))
	}
	if eps[0].ID != "auto" || !eps[0].IsVirtual() {
		t.Fatalf("first entry should be the virtual auto endpoint: %+v", eps[0])
	}
	if eps[1].ID != "noproxy" || eps[1].EmbedPrefix != "https://www.youtube.com/embed/" || eps[1].BaseHealth != 100 {
		t.Fatalf("unexpected noproxy entry: %+v", eps[1])
	}
	if eps[7].ID != "proxy3" || eps[7].BaseHealth != 75 {
		t.Fatalf("unexpected last entry: %+v", eps[7])
	}
	if len(c.UserAgents) != 6 {
		t.Fatalf("user agents: got %d, want 6", len(c.UserAgents))
	}
}

func TestParseCatalog_DefaultsAndNormalization(t *testing.T) {
	c, err := ParseCatalog([]byte(`
endpoints:
  - id: auto
  - id: direct
    embed: https://www.youtube.com/embed
  - id: zero
    name: Zero Health
    embed: https://piped.video/embed/
    health: 0
user_agents: ["  ua-1 ", "", "ua-2"]
`))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	eps := c.EndpointList()
	assertEqual(t, "direct.EmbedPrefix", eps[1].EmbedPrefix, "https://www.youtube.com/embed/")
	assertEqual(t, "direct.BaseHealth", eps[1].BaseHealth, float64(DefaultEndpointHealth))
	assertEqual(t, "direct.Name", eps[1].Name, "direct")
	assertEqual(t, "zero.BaseHealth", eps[2].BaseHealth, 0.0)
	assertEqual(t, "zero.Name", eps[2].Name, "Zero Health")
	if strings.Join(c.UserAgents, "|") != "ua-1|ua-2" {
		t.Fatalf("user agents not trimmed: %q", c.UserAgents)
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", ``, "at least one endpoint"},
		{"only virtual", "endpoints:\n  - id: auto\n", "embed prefix"},
		{"empty id", "endpoints:\n  - embed: https://a.example/embed/\n", "id must not be empty"},
		{
			"duplicate id",
			"endpoints:\n  - id: a\n    embed: https://a.example/\n  - id: a\n    embed: https://b.example/\n",
			"duplicate id",
		},
		{"bad scheme", "endpoints:\n  - id: a\n    embed: ftp://a.example/\n", "scheme"},
		{"health out of range", "endpoints:\n  - id: a\n    embed: https://a.example/\n    health: 101\n", "health"},
		{"unknown field", "endpoints:\n  - id: a\n    embed: https://a.example/\n    icon: fas fa-server\n", "icon"},
		{"bad duration", "endpoints:\n  - id: a\n    embed: https://a.example/\nsettings:\n  retry_delay: soon\n", "invalid duration"},
		{"negative retries", "endpoints:\n  - id: a\n    embed: https://a.example/\nsettings:\n  max_retries: -1\n", "max_retries"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			assertContains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil || len(c.Endpoints) != 8 {
		t.Fatalf("LoadCatalog(\"\"): %v, %d endpoints", err, len(c.Endpoints))
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "endpoints:\n  - id: only\n    embed: https://only.example/embed/\n    health: 70\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	assertEqual(t, "len", len(c.Endpoints), 1)
	assertEqual(t, "health", c.EndpointList()[0].BaseHealth, 70.0)

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCatalog_ApplySettings(t *testing.T) {
	c, err := ParseCatalog([]byte(`
endpoints:
  - id: a
    embed: https://a.example/
settings:
  max_retries: 5
  retry_delay: 6s
  health_check_interval: 45s
`))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	env := &EnvConfig{MaxRetries: 3, RetryBackoffMin: 2 * time.Second, RetryBackoffMax: 5 * time.Second, RecoverySchedule: "@every 30s"}
	c.ApplySettings(env)

	assertEqual(t, "MaxRetries", env.MaxRetries, 5)
	assertEqual(t, "RetryBackoffMin", env.RetryBackoffMin, 6*time.Second)
	assertEqual(t, "RetryBackoffMax", env.RetryBackoffMax, 6*time.Second)
	assertEqual(t, "RecoverySchedule", env.RecoverySchedule, "@every 45s")

	unchanged := &EnvConfig{MaxRetries: 3, RecoverySchedule: "@every 30s"}
	DefaultCatalog().ApplySettings(unchanged)
	assertEqual(t, "MaxRetries unchanged", unchanged.MaxRetries, 3)
	assertEqual(t, "RecoverySchedule unchanged", unchanged.RecoverySchedule, "@every 30s")
}

func TestDuration_Encoding(t *testing.T) {
	var v struct {
		D Duration `json:"d" yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 90s\n"), &v); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	assertEqual(t, "yaml", v.D.Std(), 90*time.Second)

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	assertEqual(t, "json", string(out), `{"d":"1m30s"}`)

	if err := json.Unmarshal([]byte(`{"d":5}`), &v); err == nil {
		t.Fatal("expected error for numeric duration")
	}
}

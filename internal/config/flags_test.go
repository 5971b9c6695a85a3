package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestParseFlags_OverridesEnv(t *testing.T) {
	t.Setenv("RELAYVIEW_PORT", "9000")
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}

	fs := pflag.NewFlagSet("relayview", pflag.ContinueOnError)
	if err := cfg.ParseFlags(fs, []string{"-l", "127.0.0.1", "--catalog", " /etc/relayview/catalog.yaml ", "--log-level", "debug"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	assertEqual(t, "Port", cfg.Port, 9000)
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "127.0.0.1")
	assertEqual(t, "CatalogPath", cfg.CatalogPath, "/etc/relayview/catalog.yaml")
	assertEqual(t, "LogLevel", cfg.LogLevel, "debug")
	assertEqual(t, "Addr", cfg.Addr(), "127.0.0.1:9000")
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "port range", args: []string{"--port", "70000"}, wantErr: "--port"},
		{name: "empty listen", args: []string{"--listen", " "}, wantErr: "--listen"},
		{name: "log level", args: []string{"--log-level", "loud"}, wantErr: "--log-level"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "bogus"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadEnvConfig()
			if err != nil {
				t.Fatalf("LoadEnvConfig: %v", err)
			}
			fs := pflag.NewFlagSet("relayview", pflag.ContinueOnError)
			fs.SetOutput(discard{})
			err = cfg.ParseFlags(fs, tc.args)
			if err == nil {
				t.Fatal("expected error")
			}
			assertContains(t, err.Error(), tc.wantErr)
		})
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

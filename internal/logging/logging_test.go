package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{" WARN ", zerolog.WarnLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseLevel(%q) err=%v, wantErr=%v", tc.in, err, tc.wantErr)
		}
		if !tc.wantErr && got != tc.want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	root, err := NewWithWriter("info", false, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	log := Component(root, "registry")
	log.Info().Str("endpoint", "piped").Msg("blocked")
	log.Debug().Msg("filtered")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "registry" || line["endpoint"] != "piped" || line["message"] != "blocked" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

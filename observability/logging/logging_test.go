package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("order settled", "operation", "market_payOrder")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "order settled" || line["severity"] != "INFO" {
		t.Fatalf("unexpected keys: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", line)
	}
}

func TestAttrMasksCredentials(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"jwtSecret", "s3cret", RedactedValue},
		{"webhookSecret", "hook-key", RedactedValue},
		{"Authorization", "Bearer abc", RedactedValue},
		{"X-Shop-Signature", "deadbeef", RedactedValue},
		{"operation", "token_transfer", "token_transfer"},
		{"tokens", "1000", "1000"},
		{"password", " ", " "},
	}
	for _, tc := range cases {
		if got := Attr(tc.key, tc.value).Value.String(); got != tc.want {
			t.Fatalf("Attr(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestAttrsSortsAndMasksParams(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Info("operation reverted", Attrs(map[string]string{"required": "10", "secret": "x", "available": "2"})...)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["required"] != "10" || line["available"] != "2" || line["secret"] != RedactedValue {
		t.Fatalf("unexpected attributes: %v", line)
	}
}

func TestDSNHidesPassword(t *testing.T) {
	if got := DSN("postgres://shop:hunter2@db:5432/shop"); strings.Contains(got, "hunter2") {
		t.Fatalf("password leaked: %s", got)
	}
	if got := DSN("data/archive.db"); got != "data/archive.db" {
		t.Fatalf("file path must be unchanged, got %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

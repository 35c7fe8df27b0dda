package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewRenamesSchemaKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "rafad", "test")
	logger.Info("round started", "round", "7")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "round started" {
		t.Fatalf("message = %v", line["message"])
	}
	if line["severity"] != "INFO" {
		t.Fatalf("severity = %v", line["severity"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatal("missing timestamp key")
	}
	if line["service"] != "rafad" || line["env"] != "test" {
		t.Fatalf("service/env = %v/%v", line["service"], line["env"])
	}
	for _, stale := range []string{"time", "level", "msg"} {
		if _, ok := line[stale]; ok {
			t.Fatalf("stale key %q still emitted", stale)
		}
	}
}

func TestNewOmitsBlankEnv(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, " rafad ", "  ").Info("up")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := line["env"]; ok {
		t.Fatal("blank env must be omitted")
	}
	if line["service"] != "rafad" {
		t.Fatalf("service = %v, want trimmed", line["service"])
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text") })

	Info("remote write completed", Path("docs/a.txt"), Size(42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "remote write completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry[KeyPath] != "docs/a.txt" {
		t.Errorf("%s = %v", KeyPath, entry[KeyPath])
	}
	if entry[KeySize] != float64(42) {
		t.Errorf("%s = %v", KeySize, entry[KeySize])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "json")
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text") })

	Debug("below threshold")
	Info("also below threshold")
	Warn("at threshold")

	lines := strings.TrimSpace(buf.String())
	if strings.Contains(lines, "below threshold") {
		t.Errorf("suppressed levels were written: %s", lines)
	}
	if !strings.Contains(lines, "at threshold") {
		t.Errorf("WARN line missing: %s", lines)
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	t.Cleanup(func() { InitWithWriter(&buf, "INFO", "text") })

	Debug("hidden")
	SetLevel("DEBUG")
	Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("DEBUG line written before level change: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("DEBUG line missing after level change: %s", out)
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.DebugLevel)

	log.Info("pca", "components computed", map[string]interface{}{"bands": 4})

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}
	if event["component"] != "pca" {
		t.Errorf("Expected component pca, got %v", event["component"])
	}
	if event["bands"] != float64(4) {
		t.Errorf("Expected bands=4, got %v", event["bands"])
	}
	if event["message"] != "components computed" {
		t.Errorf("Unexpected message %v", event["message"])
	}
}

func TestLoggerError(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Error("glcm", errors.New("boom"), nil)

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Failed to decode log line: %v", err)
	}
	if event["error"] != "boom" {
		t.Errorf("Expected error field boom, got %v", event["error"])
	}
	if event["level"] != "error" {
		t.Errorf("Expected level error, got %v", event["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.WarnLevel)

	log.Debug("x", "hidden", nil)
	log.Info("x", "hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected no output below warn level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestStageTagsEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.DebugLevel).Stage(7, "glcm")

	log.Info("workflow", "starting stage", nil)
	log.Error("workflow", errors.New("empty region"), map[string]interface{}{"date": "2020-08-01"})

	events := decodeLines(t, &buf)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	for _, event := range events {
		if event["step"] != float64(7) || event["stage"] != "glcm" {
			t.Errorf("Expected step 7 stage glcm, got %v %v", event["step"], event["stage"])
		}
	}
	if events[1]["date"] != "2020-08-01" {
		t.Errorf("Expected date field on error event, got %v", events[1]["date"])
	}
}

func TestWithKeepsParentUntouched(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, zerolog.InfoLevel)
	child := parent.With(map[string]interface{}{"scene": "S2A_20200805"})

	child.Info("catalog", "loaded", nil)
	parent.Info("catalog", "loaded", nil)

	events := decodeLines(t, &buf)
	if events[0]["scene"] != "S2A_20200805" {
		t.Errorf("Expected scene on child event, got %v", events[0]["scene"])
	}
	if _, ok := events[1]["scene"]; ok {
		t.Errorf("Expected parent event without scene field")
	}
}

func TestDoneRecordsElapsed(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Done("workflow", "stage finished", time.Now().Add(-20*time.Millisecond), nil)

	events := decodeLines(t, &buf)
	elapsed, ok := events[0]["elapsed"].(float64)
	if !ok || elapsed < 20 {
		t.Errorf("Expected elapsed of at least 20ms, got %v", events[0]["elapsed"])
	}
}

func TestNopDropsEvents(t *testing.T) {
	log := Nop().Stage(1, "study_area")
	log.Info("workflow", "ignored", map[string]interface{}{"k": 1})
	log.Done("workflow", "ignored", time.Now(), nil)
}

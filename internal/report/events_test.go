package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded Event
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode line %d: %v", len(events)+1, err)
		}
		events = append(events, decoded)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	filename := filepath.Base(logger.Path())
	if !strings.HasPrefix(filename, "events-") || !strings.HasSuffix(filename, ".jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_Log(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	event := &Event{
		Timestamp: time.Now(),
		Level:     LevelInfo,
		Event:     EventImport,
		JourneyID: "J1",
		Count:     12,
	}
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].JourneyID != "J1" || events[0].Count != 12 {
		t.Errorf("Decoded event = %+v", events[0])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				if err := logger.LogSync("J", "P", "updated", j, 0, nil); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readEvents(t, logger.Path())); got != numGoroutines*eventsPerGoroutine {
		t.Errorf("Expected %d events, got %d", numGoroutines*eventsPerGoroutine, got)
	}
}

func TestEventLogger_Helpers(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	boom := errors.New("boom")
	logger.LogRebuild("DimAlbum", "data/DimAlbum.csv", "loaded", 3, 5*time.Millisecond, nil)
	logger.LogRebuild("DimPlaylist", "data/DimPlaylist.csv", "unchanged", 0, 0, nil)
	logger.LogRebuild("DimRecording", "data/DimRecording.csv", "failed", 0, 0, boom)
	logger.LogSync("J1", "PL", "failed", 0, 2, boom)
	logger.LogVerify("J1", false, 4)
	logger.LogResolve("REC-1", "", "no candidates", false)
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 6 {
		t.Fatalf("Expected 6 events, got %d", len(events))
	}

	tests := []struct {
		idx   int
		event EventType
		level EventLevel
	}{
		{0, EventRebuild, LevelInfo},
		{1, EventRebuild, LevelWarning},
		{2, EventRebuild, LevelError},
		{3, EventSync, LevelError},
		{4, EventVerify, LevelWarning},
		{5, EventResolve, LevelWarning},
	}
	for _, tt := range tests {
		got := events[tt.idx]
		if got.Event != tt.event || got.Level != tt.level {
			t.Errorf("event %d = %s/%s, want %s/%s", tt.idx, got.Event, got.Level, tt.event, tt.level)
		}
	}

	if events[2].Error != "boom" {
		t.Errorf("rebuild error = %q, want boom", events[2].Error)
	}
	if events[3].Extra["excluded"] != "2" {
		t.Errorf("sync extra = %v, want excluded=2", events[3].Extra)
	}
	if events[4].Action != "failed" || events[4].Count != 4 {
		t.Errorf("verify event = %+v", events[4])
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogImport("J1", "PL", 3, nil); err != nil {
		t.Errorf("NullLogger.LogImport returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close returned error: %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("NullLogger.Path() = %q, want empty", logger.Path())
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	all := []Event{
		{Level: LevelDebug, Event: EventResolve},
		{Level: LevelInfo, Event: EventImport},
		{Level: LevelWarning, Event: EventVerify},
		{Level: LevelError, Event: EventError},
	}

	testCases := []struct {
		name          string
		minLevel      EventLevel
		expectedCount int
	}{
		{"LevelDebug logs all", LevelDebug, 4},
		{"LevelInfo skips debug", LevelInfo, 3},
		{"LevelWarning skips debug and info", LevelWarning, 2},
		{"LevelError only logs errors", LevelError, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewEventLogger(t.TempDir(), tc.minLevel)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}
			for _, e := range all {
				if err := logger.Log(&e); err != nil {
					t.Fatalf("Log failed: %v", err)
				}
			}
			logger.Close()

			if got := len(readEvents(t, logger.Path())); got != tc.expectedCount {
				t.Errorf("Expected %d events logged, got %d", tc.expectedCount, got)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]EventLevel{
		"debug":   LevelDebug,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

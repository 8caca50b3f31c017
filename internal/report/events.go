package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventRebuild EventType = "rebuild"
	EventBackup  EventType = "backup"
	EventImport  EventType = "import"
	EventVerify  EventType = "verify"
	EventSync    EventType = "sync"
	EventResolve EventType = "resolve"
	EventNarrate EventType = "narrate"
	EventError   EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	switch EventLevel(s) {
	case LevelDebug, LevelWarning, LevelError:
		return EventLevel(s)
	case "warn":
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Event is one line of the audit trail
type Event struct {
	Timestamp   time.Time         `json:"ts"`
	Level       EventLevel        `json:"level"`
	Event       EventType         `json:"event"`
	Table       string            `json:"table,omitempty"`
	Path        string            `json:"path,omitempty"`
	JourneyID   string            `json:"journey_id,omitempty"`
	PlaylistID  string            `json:"playlist_id,omitempty"`
	RecordingID string            `json:"recording_id,omitempty"`
	Action      string            `json:"action,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Count       int               `json:"count,omitempty"`
	Duration    int64             `json:"duration_ms,omitempty"`
	Error       string            `json:"error,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	// Several commands in the same second share one file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

func levelFor(err error, ok EventLevel) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return ok, ""
}

// LogRebuild records the load of one warehouse table
func (l *EventLogger) LogRebuild(table, path, outcome string, rows int, duration time.Duration, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	if err == nil && outcome != "loaded" {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventRebuild,
		Table:    table,
		Path:     path,
		Action:   outcome,
		Count:    rows,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogBackup records the export of one warehouse table
func (l *EventLogger) LogBackup(table, path string, rows int, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	return l.Log(&Event{
		Level: level,
		Event: EventBackup,
		Table: table,
		Path:  path,
		Count: rows,
		Error: errMsg,
	})
}

// LogImport records a playlist imported as a journey
func (l *EventLogger) LogImport(journeyID, playlistID string, steps int, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	return l.Log(&Event{
		Level:      level,
		Event:      EventImport,
		JourneyID:  journeyID,
		PlaylistID: playlistID,
		Count:      steps,
		Error:      errMsg,
	})
}

// LogVerify records the outcome of an import verification pass
func (l *EventLogger) LogVerify(journeyID string, passed bool, mismatches int) error {
	level := LevelInfo
	action := "passed"
	if !passed {
		level = LevelWarning
		action = "failed"
	}
	return l.Log(&Event{
		Level:     level,
		Event:     EventVerify,
		JourneyID: journeyID,
		Action:    action,
		Count:     mismatches,
	})
}

// LogSync records the outcome of synchronizing one journey
func (l *EventLogger) LogSync(journeyID, playlistID, action string, items, excluded int, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	if err == nil && action == "skipped" {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:      level,
		Event:      EventSync,
		JourneyID:  journeyID,
		PlaylistID: playlistID,
		Action:     action,
		Count:      items,
		Error:      errMsg,
		Extra: map[string]string{
			"excluded": strconv.Itoa(excluded),
		},
	})
}

// LogResolve records a recording lookup
func (l *EventLogger) LogResolve(recordingID, url, reason string, resolved bool) error {
	level := LevelDebug
	action := "resolved"
	if !resolved {
		level = LevelWarning
		action = "unresolved"
	}
	event := &Event{
		Level:       level,
		Event:       EventResolve,
		RecordingID: recordingID,
		Action:      action,
		Reason:      reason,
	}
	if url != "" {
		event.Extra = map[string]string{"url": url}
	}
	return l.Log(event)
}

// LogNarrate records a generated journey narrative
func (l *EventLogger) LogNarrate(journeyID, path string, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	return l.Log(&Event{
		Level:     level,
		Event:     EventNarrate,
		JourneyID: journeyID,
		Path:      path,
		Error:     errMsg,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, subject string, err error) error {
	return l.Log(&Event{
		Level:  LevelError,
		Event:  event,
		Reason: subject,
		Error:  err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the migration phase an event belongs to
type EventType string

const (
	EventLocate    EventType = "locate"
	EventResolve   EventType = "resolve"
	EventTranscode EventType = "transcode"
	EventRelocate  EventType = "relocate"
	EventCleanup   EventType = "cleanup"
	EventRestart   EventType = "restart"
	EventState     EventType = "state"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the JSONL event log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	RunID     string            `json:"run_id,omitempty"`
	State     string            `json:"state,omitempty"`
	SrcPath   string            `json:"src_path,omitempty"`
	DestPath  string            `json:"dest_path,omitempty"`
	Records   int               `json:"records,omitempty"`
	Bytes     int64             `json:"bytes,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is valid
// and discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
	runID    string
}

// NewEventLogger creates events-<timestamp>.jsonl under outputDir
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.Create(path)
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

// SetRunID stamps every following event with id
func (l *EventLogger) SetRunID(id string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.runID = id
	l.mu.Unlock()
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
	if event.RunID == "" {
		event.RunID = l.runID
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogState records a state transition of the orchestrator
func (l *EventLogger) LogState(from, to string) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventState,
		State: to,
		Extra: map[string]string{"from": from},
	})
}

// LogLocate records where legacy data was (or was not) found
func (l *EventLogger) LogLocate(legacyDir string, found bool) error {
	level := LevelInfo
	if !found {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:   level,
		Event:   EventLocate,
		SrcPath: legacyDir,
		Extra:   map[string]string{"found": fmt.Sprintf("%t", found)},
	})
}

// LogResolve records the destination layout decision
func (l *EventLogger) LogResolve(version, kind, backend, storePath string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventResolve,
		DestPath: storePath,
		Extra: map[string]string{
			"version": version,
			"layout":  kind,
			"backend": backend,
		},
	})
}

// LogTranscode records the local storage conversion
func (l *EventLogger) LogTranscode(srcPath, destPath string, records int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventTranscode,
		SrcPath:  srcPath,
		DestPath: destPath,
		Records:  records,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogRelocate records one directory move
func (l *EventLogger) LogRelocate(srcPath, destPath string, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventRelocate,
		SrcPath:  srcPath,
		DestPath: destPath,
		Error:    errMsg,
	})
}

// LogCleanup records removal of the legacy engine directory
func (l *EventLogger) LogCleanup(path string, bytes int64, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:   level,
		Event:   EventCleanup,
		SrcPath: path,
		Bytes:   bytes,
		Error:   errMsg,
	})
}

// LogRestart records the host restart request
func (l *EventLogger) LogRestart(err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level: level,
		Event: EventRestart,
		Error: errMsg,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, srcPath string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		SrcPath: srcPath,
		Error:   err.Error(),
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

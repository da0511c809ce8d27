package logstore

import (
	"strings"
	"time"
)

type Level string

const (
	LevelLog    Level = "LOG"
	LevelInfo   Level = "INFO"
	LevelWarn   Level = "WARN"
	LevelError  Level = "ERROR"
	LevelCustom Level = "CUSTOM"
)

// ParseLevel maps a case-insensitive level name onto a Level. Unknown names
// fall back to LevelLog.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "FATAL", "PANIC":
		return LevelError
	case "CUSTOM":
		return LevelCustom
	}
	return LevelLog
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// String renders the entry the way it appears in snapshots:
// "[2006-01-02T15:04:05.000Z] [LEVEL] message".
func (e Entry) String() string {
	var b strings.Builder
	b.Grow(len(e.Message) + 40)
	b.WriteByte('[')
	b.WriteString(e.Timestamp.UTC().Format(timestampLayout))
	b.WriteString("] [")
	b.WriteString(string(e.Level))
	b.WriteString("] ")
	b.WriteString(e.Message)
	return b.String()
}

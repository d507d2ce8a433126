// Package clientlog models log entries reported by browser and mobile clients.
package clientlog

import (
	"strings"
	"time"
)

// Level is the severity a client attached to an entry
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// ParseLevel normalizes a client supplied level. Unknown or empty values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace", "verbose":
		return LevelDebug
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	case "fatal", "critical":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Entry is one client log record as posted by the client.
type Entry struct {
	Message         string    `json:"message" validate:"required,max=4096"`
	Route           string    `json:"route,omitempty" validate:"max=2048"`
	ClientDate      time.Time `json:"clientDate"`
	Error           string    `json:"error,omitempty" validate:"max=4096"`
	ErrorName       string    `json:"errorName,omitempty" validate:"max=256"`
	AdditionalInfo  string    `json:"additionalInfo,omitempty" validate:"max=16384"`
	StackTrace      string    `json:"stackTrace,omitempty" validate:"max=32768"`
	ClientWasOnline bool      `json:"clientWasOnline"`
	LogLevel        string    `json:"logLevel,omitempty" validate:"max=32"`
}

// Record is an accepted entry with the server side metadata attached.
type Record struct {
	ID         string
	Entry      Entry
	Level      Level
	ClientIP   string
	UserAgent  string
	RequestID  string
	ReceivedAt time.Time
}

package logging

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Level represents the severity of a diagnostic record
type Level int

const (
	DEBUG Level = iota
	INFO
	NOTICE
	WARN
	ERROR
	CRITICAL
)

var lower = cases.Lower(language.Und)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case NOTICE:
		return "NOTICE"
	case WARN:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Name returns the lowercase level name used in rendered lines.
func (l Level) Name() string {
	return lower.String(l.String())
}

// Code returns the numeric severity code shared with syslog-style loggers.
func (l Level) Code() int {
	switch l {
	case DEBUG:
		return 100
	case INFO:
		return 200
	case NOTICE:
		return 250
	case WARN:
		return 300
	case ERROR:
		return 400
	case CRITICAL:
		return 500
	default:
		return 0
	}
}

// ParseLevel parses a level name or numeric code. Unknown input yields INFO.
func ParseLevel(s string) Level {
	l, ok := LookupLevel(s)
	if !ok {
		return INFO
	}
	return l
}

// LookupLevel is ParseLevel that reports whether the input was recognized.
func LookupLevel(s string) (Level, bool) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		switch {
		case code >= 500:
			return CRITICAL, true
		case code >= 400:
			return ERROR, true
		case code >= 300:
			return WARN, true
		case code >= 250:
			return NOTICE, true
		case code >= 200:
			return INFO, true
		case code >= 100:
			return DEBUG, true
		}
		return INFO, false
	}

	switch lower.String(s) {
	case "debug":
		return DEBUG, true
	case "info":
		return INFO, true
	case "notice":
		return NOTICE, true
	case "warn", "warning":
		return WARN, true
	case "error":
		return ERROR, true
	case "critical", "fatal", "alert", "emergency":
		return CRITICAL, true
	default:
		return INFO, false
	}
}

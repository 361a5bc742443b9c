package fault

import (
	"fmt"
	"strings"
)

// Severity is a bit in the reporting threshold of recoverable errors.
type Severity int

const (
	SeverityNotice Severity = 1 << iota
	SeverityWarning
	SeverityDeprecated
	SeverityUser

	SeverityAll = SeverityNotice | SeverityWarning | SeverityDeprecated | SeverityUser
)

func (s Severity) String() string {
	var names []string
	for _, bit := range []Severity{SeverityNotice, SeverityWarning, SeverityDeprecated, SeverityUser} {
		if s&bit != 0 {
			names = append(names, severityNames[bit])
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

var severityNames = map[Severity]string{
	SeverityNotice:     "notice",
	SeverityWarning:    "warning",
	SeverityDeprecated: "deprecated",
	SeverityUser:       "user",
}

// ParseSeverities builds a threshold from names. "all" selects every
// severity, "none" or an empty list selects none.
func ParseSeverities(names []string) (Severity, error) {
	var s Severity
	for _, name := range names {
		switch n := strings.ToLower(strings.TrimSpace(name)); n {
		case "", "none":
		case "all":
			s |= SeverityAll
		default:
			found := false
			for bit, bitName := range severityNames {
				if bitName == n {
					s |= bit
					found = true
				}
			}
			if !found {
				return 0, fmt.Errorf("unknown severity %q", name)
			}
		}
	}
	return s, nil
}

// Class is the kind of a recorded runtime condition.
type Class int

const (
	ClassNone Class = iota
	ClassWarning
	ClassOutOfMemory
	ClassParse
	ClassCore
	ClassCompile
)

func (c Class) String() string {
	switch c {
	case ClassWarning:
		return "warning"
	case ClassOutOfMemory:
		return "out-of-memory"
	case ClassParse:
		return "parse"
	case ClassCore:
		return "core"
	case ClassCompile:
		return "compile"
	default:
		return "none"
	}
}

// Fatal reports whether the class ends the run at shutdown.
func (c Class) Fatal() bool {
	switch c {
	case ClassOutOfMemory, ClassParse, ClassCore, ClassCompile:
		return true
	default:
		return false
	}
}

// Condition is the last runtime condition observed before shutdown.
type Condition struct {
	Class    Class
	Message  string
	Location string // file:line, may be empty
}

// Record is a fault ready for reporting.
type Record struct {
	Message    string
	Location   string
	Stacktrace string
}

// Text renders "message:location", or the bare message without a location.
func (r Record) Text() string {
	if r.Location == "" {
		return r.Message
	}
	return r.Message + ":" + r.Location
}

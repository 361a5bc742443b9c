package logging

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateTimeLayout is the timestamp layout used by line formatting.
const DateTimeLayout = time.RFC3339

// Record is a single leveled diagnostic line on its way to a sink.
type Record struct {
	Level   Level
	Time    time.Time
	Message string
}

// Formatter renders a record to text.
type Formatter interface {
	Format(rec Record) string
}

// LineFormatter renders "[level][datetime]message".
type LineFormatter struct {
	TimeLayout string
}

// NewLineFormatter returns the default line formatter.
func NewLineFormatter() *LineFormatter {
	return &LineFormatter{TimeLayout: DateTimeLayout}
}

func (f *LineFormatter) Format(rec Record) string {
	layout := f.TimeLayout
	if layout == "" {
		layout = DateTimeLayout
	}
	return fmt.Sprintf("[%s][%s]%s", rec.Level.Name(), rec.Time.Format(layout), rec.Message)
}

// Entry is the JSON shape of a record, used by document-oriented sinks.
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewEntry converts a record to its JSON shape.
func NewEntry(rec Record, fields map[string]interface{}) Entry {
	return Entry{
		Timestamp: rec.Time.Format(DateTimeLayout),
		Level:     rec.Level.Name(),
		Message:   rec.Message,
		Fields:    fields,
	}
}

// JSON encodes the entry. Encoding failures degrade to the bare message.
func (e Entry) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return string(data)
}

// Processor transforms a record before it is formatted.
type Processor interface {
	Process(rec Record) Record
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(Record) Record

func (f ProcessorFunc) Process(rec Record) Record { return f(rec) }

var bracketField = regexp.MustCompile(`\[[^\]]+\]`)

// StripStacktrace drops the fifth bracketed field from a five-field
// message. Any other shape is returned unchanged.
func StripStacktrace(message string) string {
	var parts []string
	last := 0
	for _, loc := range bracketField.FindAllStringIndex(message, -1) {
		if loc[0] > last {
			parts = append(parts, message[last:loc[0]])
		}
		parts = append(parts, message[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(message) {
		parts = append(parts, message[last:])
	}
	if len(parts) != 5 {
		return message
	}
	return strings.Join(parts[:4], "")
}

// Stacktraceless removes the stacktrace field, for sinks with small
// message limits.
var Stacktraceless = ProcessorFunc(func(rec Record) Record {
	rec.Message = StripStacktrace(rec.Message)
	return rec
})

// Lowercase lowercases the message.
var Lowercase = ProcessorFunc(func(rec Record) Record {
	rec.Message = lower.String(rec.Message)
	return rec
})

var processors = map[string]Processor{
	"stacktraceless": Stacktraceless,
	"lowercase":      Lowercase,
}

var processorAliases = map[string]string{
	"stacktracelessprocessor": "stacktraceless",
	"strip-stacktrace":        "stacktraceless",
	"lowercaseprocessor":      "lowercase",
}

// LookupProcessor resolves a processor by name. Namespaced names are
// reduced to their last segment and matched case-insensitively.
func LookupProcessor(name string) (Processor, bool) {
	key := lower.String(lastSegment(name))
	if alias, ok := processorAliases[key]; ok {
		key = alias
	}
	p, ok := processors[key]
	return p, ok
}

// ProcessorNames lists the registered processor names.
func ProcessorNames() []string {
	names := make([]string, 0, len(processors))
	for name := range processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lastSegment(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `\/.`); i >= 0 {
		return name[i+1:]
	}
	return name
}

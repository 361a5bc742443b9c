package logging

import (
	"fmt"
	"strings"
)

// EmptyStacktrace stands in for the stacktrace field when none is supplied.
const EmptyStacktrace = "-"

var delimiters = strings.NewReplacer("[", "~", "]", "~")

// Context is the identity every diagnostic message is stamped with.
type Context struct {
	Company string `json:"company" yaml:"company"`
	Type    string `json:"type" yaml:"type"`
	Name    string `json:"name" yaml:"name"`
}

// Sanitize replaces the field delimiters so a value cannot break the
// five-field layout.
func Sanitize(s string) string {
	return delimiters.Replace(s)
}

// Format renders [company][type][name][message][stacktrace]. An empty
// stacktrace is rendered as "-".
func (c Context) Format(message, stacktrace string) string {
	if stacktrace == "" {
		stacktrace = EmptyStacktrace
	}
	return fmt.Sprintf("[%s][%s][%s][%s][%s]",
		Sanitize(c.Company),
		Sanitize(c.Type),
		Sanitize(c.Name),
		Sanitize(message),
		Sanitize(stacktrace),
	)
}

// String renders the identity triple only.
func (c Context) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Company, c.Type, c.Name)
}

package sink

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// Args are the bound constructor parameters of one sink, keyed by the
// canonical parameter name.
type Args map[string]interface{}

func (a Args) String(name string) string {
	return strings.TrimSpace(cast.ToString(a[name]))
}

func (a Args) Int(name string) int {
	return cast.ToInt(a[name])
}

func (a Args) Float(name string) float64 {
	return cast.ToFloat64(a[name])
}

func (a Args) Bool(name string) bool {
	switch v := a[name].(type) {
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return v != "" && v != "0"
		}
		return b
	default:
		return cast.ToBool(v)
	}
}

// Duration reads a timeout. Bare numbers are seconds.
func (a Args) Duration(name string) time.Duration {
	switch v := a[name].(type) {
	case nil:
		return 0
	case time.Duration:
		return v
	case string:
		s := strings.TrimSpace(v)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
		return cast.ToDuration(s)
	default:
		return time.Duration(cast.ToFloat64(v) * float64(time.Second))
	}
}

// Strings reads a list. A string value is split on commas.
func (a Args) Strings(name string) []string {
	var raw []string
	if s, ok := a[name].(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = cast.ToStringSlice(a[name])
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a Args) Level(name string) logging.Level {
	return logging.ParseLevel(a.String(name))
}

// Param declares one constructor parameter of a sink kind.
type Param struct {
	Name     string
	Aliases  []string
	Required bool
	Default  interface{}
}

func (p Param) matches(key string) bool {
	if strings.EqualFold(key, p.Name) {
		return true
	}
	for _, alias := range p.Aliases {
		if strings.EqualFold(key, alias) {
			return true
		}
	}
	return false
}

func (p Param) lookup(raw map[string]interface{}) (interface{}, bool) {
	if v, ok := raw[p.Name]; ok && !isEmpty(v) {
		return v, true
	}
	for key, v := range raw {
		if p.matches(key) && !isEmpty(v) {
			return v, true
		}
	}
	return nil, false
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/fault"
	"github.com/psantana5/adapter-skeleton/internal/health"
	"github.com/psantana5/adapter-skeleton/internal/invoke"
	"github.com/psantana5/adapter-skeleton/internal/sink"
	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// Config is the resolved configuration of one adapter run.
type Config struct {
	Name        string              `json:"name" yaml:"name"`
	Company     string              `json:"company" yaml:"company"`
	Type        string              `json:"type" yaml:"type"`
	Debug       bool                `json:"debug" yaml:"debug"`
	Tasks       []invoke.Descriptor `json:"tasks" yaml:"tasks"`
	Handlers    []sink.HandlerSpec  `json:"handlers" yaml:"handlers"`
	HealthCheck health.Config       `json:"healthcheck" yaml:"healthcheck"`
	Fault       FaultConfig         `json:"fault" yaml:"fault"`
	Metrics     MetricsConfig       `json:"metrics" yaml:"metrics"`
}

// FaultConfig configures the fault interceptor
type FaultConfig struct {
	MemoryReserve int           `json:"memory_reserve" yaml:"memory_reserve"`
	Report        []string      `json:"report" yaml:"report"`
	MemoryLimit   uint64        `json:"memory_limit" yaml:"memory_limit"`
	MemoryPoll    time.Duration `json:"memory_poll" yaml:"memory_poll"`
}

// MetricsConfig configures run metric export
type MetricsConfig struct {
	Pushgateway string `json:"pushgateway,omitempty" yaml:"pushgateway,omitempty"`
	Textfile    string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// SetDefaults registers default values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("type", "adapter")
	v.SetDefault("debug", false)
	v.SetDefault("healthcheck.timeout", health.DefaultTimeout.String())
	v.SetDefault("healthcheck.verify", true)
	v.SetDefault("fault.memory_reserve", fault.DefaultReserveSize)
	v.SetDefault("fault.report", []string{"all"})
	v.SetDefault("fault.memory_limit", 0)
	v.SetDefault("fault.memory_poll", "1s")
}

// BindEnv binds the environment variables of existing deployments.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("name", "APPLICATION_NAME")
	v.BindEnv("company", "APPLICATION_COMPANY")
	v.BindEnv("type", "APPLICATION_TYPE")
	v.BindEnv("debug", "APPLICATION_DEBUG")
	v.BindEnv("tasks", "APPLICATION_TASKS")
	v.BindEnv("logger.handlers", "LOGGER_HANDLERS")
	v.BindEnv("healthcheck.uid", "HEALTH_CHECK_IO_UID")
	v.BindEnv("healthcheck.host", "HEALTH_CHECK_IO_HOST")
	v.BindEnv("metrics.pushgateway", "METRICS_PUSHGATEWAY")
}

// Load resolves a Config from v. Missing identity fields, unknown
// severities and malformed handler or task lists are configuration errors.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Name:    strings.TrimSpace(v.GetString("name")),
		Company: strings.TrimSpace(v.GetString("company")),
		Type:    strings.TrimSpace(v.GetString("type")),
		Debug:   truthy(v.Get("debug")),
		HealthCheck: health.Config{
			UID:     strings.TrimSpace(v.GetString("healthcheck.uid")),
			Host:    strings.TrimSpace(v.GetString("healthcheck.host")),
			Timeout: seconds(v.Get("healthcheck.timeout")),
			Verify:  truthy(v.Get("healthcheck.verify")),
		},
		Fault: FaultConfig{
			MemoryReserve: cast.ToInt(v.Get("fault.memory_reserve")),
			Report:        list(v.Get("fault.report")),
			MemoryLimit:   cast.ToUint64(v.Get("fault.memory_limit")),
			MemoryPoll:    seconds(v.Get("fault.memory_poll")),
		},
		Metrics: MetricsConfig{
			Pushgateway: strings.TrimSpace(v.GetString("metrics.pushgateway")),
			Textfile:    strings.TrimSpace(v.GetString("metrics.textfile")),
		},
	}

	if cfg.Name == "" {
		return nil, failure.Configuration("load config", "application must have name")
	}
	if cfg.Company == "" {
		return nil, failure.Configuration("load config", "application must have company")
	}
	if _, err := cfg.Threshold(); err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, "load config", err, "fault.report")
	}

	tasks, err := decodeTasks(v.Get("tasks"))
	if err != nil {
		return nil, err
	}
	cfg.Tasks = tasks

	handlers, err := decodeHandlers(v.Get("logger.handlers"), v.Get("logger.config"))
	if err != nil {
		return nil, err
	}
	cfg.Handlers = handlers

	return cfg, nil
}

// Context returns the identity stamped on diagnostic messages.
func (c *Config) Context() logging.Context {
	return logging.Context{Company: c.Company, Type: c.Type, Name: c.Name}
}

// Threshold parses the fault reporting threshold.
func (c *Config) Threshold() (fault.Severity, error) {
	return fault.ParseSeverities(c.Fault.Report)
}

var secretArgs = []string{"password", "botid", "bottoken"}

// Redacted returns a copy safe to print, with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Handlers = make([]sink.HandlerSpec, len(c.Handlers))
	for i, h := range c.Handlers {
		args := make(map[string]interface{}, len(h.Args))
		for k, v := range h.Args {
			args[k] = v
			for _, secret := range secretArgs {
				if strings.EqualFold(k, secret) && !isBlank(v) {
					args[k] = "****"
				}
			}
		}
		h.Args = args
		out.Handlers[i] = h
	}
	return &out
}

func truthy(v interface{}) bool {
	if s, ok := v.(string); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return strings.TrimSpace(s) != "" && s != "0"
		}
		return b
	}
	return cast.ToBool(v)
}

// seconds reads a duration; bare numbers are seconds.
func seconds(v interface{}) time.Duration {
	switch t := v.(type) {
	case nil:
		return 0
	case time.Duration:
		return t
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
		d, _ := time.ParseDuration(s)
		return d
	default:
		return time.Duration(cast.ToFloat64(t) * float64(time.Second))
	}
}

// list reads a string list; strings are split on commas.
func list(v interface{}) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	default:
		for _, s := range cast.ToStringSlice(t) {
			raw = append(raw, strings.Split(s, ",")...)
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isBlank(v interface{}) bool {
	return v == nil || strings.TrimSpace(fmt.Sprint(v)) == ""
}

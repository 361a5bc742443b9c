package config

import (
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/invoke"
	"github.com/psantana5/adapter-skeleton/internal/sink"
)

const op = "load config"

// envRelayName is the handler name whose parameters may come entirely
// from the environment.
const envRelayName = "telegram_proxy"

var reservedKeys = map[string]bool{
	"kind": true, "type": true, "__class__": true,
	"name": true, "__name__": true,
	"processors": true, "__processors__": true,
	"args": true,
}

// decodeTasks accepts a comma separated string or a list whose items are
// an identifier, {id, params} or a single {identifier: params} pair.
func decodeTasks(raw interface{}) ([]invoke.Descriptor, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		var out []invoke.Descriptor
		for _, id := range list(t) {
			out = append(out, invoke.Descriptor{ID: id})
		}
		return out, nil
	case []string:
		return decodeTasks(strings.Join(t, ","))
	case []interface{}:
		out := make([]invoke.Descriptor, 0, len(t))
		for i, item := range t {
			d, err := decodeTask(i, item)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	default:
		return nil, failure.Configuration(op, "tasks must be a list, got %T", raw)
	}
}

func decodeTask(i int, item interface{}) (invoke.Descriptor, error) {
	if s, ok := item.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return invoke.Descriptor{}, failure.Configuration(op, "task #%d: empty identifier", i)
		}
		return invoke.Descriptor{ID: s}, nil
	}

	m, err := cast.ToStringMapE(item)
	if err != nil {
		return invoke.Descriptor{}, failure.Configuration(op, "task #%d: unsupported descriptor %T", i, item)
	}
	if id, ok := m["id"]; ok {
		params, err := toParams(m["params"])
		if err != nil {
			return invoke.Descriptor{}, failure.Configuration(op, "task #%d: params must be a mapping", i)
		}
		return invoke.Descriptor{ID: cast.ToString(id), Params: params}, nil
	}
	if len(m) == 1 {
		for id, p := range m {
			params, err := toParams(p)
			if err != nil {
				return invoke.Descriptor{}, failure.Configuration(op, "task %s: params must be a mapping", id)
			}
			return invoke.Descriptor{ID: id, Params: params}, nil
		}
	}
	return invoke.Descriptor{}, failure.Configuration(op, "task #%d: descriptor needs an id", i)
}

func toParams(v interface{}) (invoke.Params, error) {
	if v == nil {
		return invoke.Params{}, nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, err
	}
	return invoke.Params(m), nil
}

// decodeHandlers accepts every handler configuration shape: a list of
// specs, a list or comma separated string of enabled names resolved
// against a name-keyed mapping or a list of named entries, and the
// environment form of the relay.
func decodeHandlers(handlers, config interface{}) ([]sink.HandlerSpec, error) {
	switch h := handlers.(type) {
	case nil:
		return nil, nil
	case string:
		return fromNames(list(h), config)
	case []string:
		return fromNames(list(h), config)
	case []interface{}:
		if allStrings(h) {
			return fromNames(list(h), config)
		}
		specs := make([]sink.HandlerSpec, 0, len(h))
		for i, item := range h {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return nil, failure.Configuration(op, "logger handler #%d: unsupported entry %T", i, item)
			}
			spec, err := specFromMap(m)
			if err != nil {
				return nil, err
			}
			if spec.Kind == "" {
				return nil, failure.Configuration(op, "logger handler #%d: kind is required", i)
			}
			specs = append(specs, spec)
		}
		return specs, nil
	default:
		return nil, failure.Configuration(op, "logger.handlers must be a list or string, got %T", handlers)
	}
}

func fromNames(names []string, config interface{}) ([]sink.HandlerSpec, error) {
	specs := make([]sink.HandlerSpec, 0, len(names))
	for _, name := range names {
		section, ok := findSection(name, config)
		if !ok {
			if strings.EqualFold(name, envRelayName) {
				spec, err := envRelaySpec()
				if err != nil {
					return nil, err
				}
				specs = append(specs, spec)
				continue
			}
			return nil, failure.Configuration(op, "for logger handler [%s] configuration not exists", name)
		}

		spec, err := specFromMap(section)
		if err != nil {
			return nil, err
		}
		if spec.Name == "" {
			spec.Name = name
		}
		if spec.Kind == "" {
			spec.Kind = name
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// findSection looks name up in a name-keyed mapping or in a list of
// entries carrying a name.
func findSection(name string, config interface{}) (map[string]interface{}, bool) {
	switch c := config.(type) {
	case []interface{}:
		for _, item := range c {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				continue
			}
			if entryName := firstString(m, "__name__", "name"); strings.EqualFold(entryName, name) {
				return m, true
			}
		}
	default:
		m, err := cast.ToStringMapE(config)
		if err != nil || m == nil {
			return nil, false
		}
		for key, section := range m {
			if strings.EqualFold(key, name) {
				sm, err := cast.ToStringMapE(section)
				return sm, err == nil
			}
		}
	}
	return nil, false
}

func specFromMap(m map[string]interface{}) (sink.HandlerSpec, error) {
	spec := sink.HandlerSpec{
		Kind: firstString(m, "kind", "type", "__class__"),
		Name: firstString(m, "name", "__name__"),
		Args: make(map[string]interface{}),
	}

	if nested, ok := m["args"]; ok && nested != nil {
		args, err := cast.ToStringMapE(nested)
		if err != nil {
			return spec, failure.Configuration(op, "logger handler %s: args must be a mapping", spec.Name)
		}
		for k, v := range args {
			spec.Args[k] = v
		}
	}
	for k, v := range m {
		if !reservedKeys[strings.ToLower(k)] {
			spec.Args[k] = v
		}
	}
	flattenOptions(spec.Args)

	processors, err := decodeProcessors(firstValue(m, "processors", "__processors__"))
	if err != nil {
		return spec, failure.Wrap(failure.KindConfiguration, op, err, "logger handler "+spec.Name)
	}
	spec.Processors = processors
	return spec, nil
}

// flattenOptions lifts transport options into constructor arguments.
func flattenOptions(args map[string]interface{}) {
	raw, ok := args["options"]
	if !ok {
		return
	}
	delete(args, "options")
	options, err := cast.ToStringMapE(raw)
	if err != nil {
		return
	}
	for k, v := range options {
		key := k
		if strings.EqualFold(k, "proxy") {
			key = "httpProxy"
		}
		if _, exists := args[key]; !exists && v != nil {
			args[key] = v
		}
	}
}

func decodeProcessors(raw interface{}) ([]string, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return list(t), nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return nil, err
			}
			if name := firstString(m, "__class__", "name", "kind"); name != "" {
				out = append(out, name)
			}
		}
		return out, nil
	default:
		return cast.ToStringSliceE(raw)
	}
}

// envRelaySpec builds the relay handler from environment variables.
func envRelaySpec() (sink.HandlerSpec, error) {
	args := make(map[string]interface{})
	for _, req := range []struct{ env, arg string }{
		{"LOGGER_TELEGRAM_PROXY_ADDRESS", "host"},
		{"LOGGER_TELEGRAM_PROXY_BOT_ID", "botId"},
		{"LOGGER_TELEGRAM_PROXY_CHAT_ID", "chatId"},
	} {
		v, ok := os.LookupEnv(req.env)
		if !ok || strings.TrimSpace(v) == "" {
			return sink.HandlerSpec{}, failure.Configuration(op, "environment %s not exist", req.env)
		}
		args[req.arg] = v
	}
	for _, opt := range []struct{ env, arg string }{
		{"LOGGER_TELEGRAM_PROXY_LEVEL", "level"},
		{"CURL_PROXY", "httpProxy"},
		{"CURL_CONNECT_TIMEOUT", "timeout"},
		{"CURL_SSL_VERIFY", "verify"},
	} {
		if v, ok := os.LookupEnv(opt.env); ok && v != "" {
			args[opt.arg] = v
		}
	}

	return sink.HandlerSpec{
		Kind:       string(sink.KindRelay),
		Name:       envRelayName,
		Args:       args,
		Processors: []string{"stacktraceless"},
	}, nil
}

func firstValue(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		for k, v := range m {
			if strings.EqualFold(k, key) && v != nil {
				return v
			}
		}
	}
	return nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	return strings.TrimSpace(cast.ToString(firstValue(m, keys...)))
}

func allStrings(items []interface{}) bool {
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

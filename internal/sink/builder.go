package sink

import (
	"fmt"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// HandlerSpec is the declarative description of one sink.
type HandlerSpec struct {
	Kind       string                 `json:"kind" yaml:"kind"`
	Name       string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty" yaml:"args,omitempty"`
	Processors []string               `json:"processors,omitempty" yaml:"processors,omitempty"`
}

// Builder turns handler specs into ready sinks sharing one formatter.
type Builder struct {
	registry  *Registry
	env       Env
	formatter logging.Formatter
}

// NewBuilder creates a builder over the given registry.
func NewBuilder(registry *Registry, env Env) *Builder {
	return &Builder{
		registry:  registry,
		env:       env,
		formatter: logging.NewLineFormatter(),
	}
}

// Build constructs sinks in declaration order. Each kind may appear only once.
// Any failure aborts the whole build with a configuration error; sinks
// built so far are closed.
func (b *Builder) Build(specs []HandlerSpec) ([]Sink, error) {
	sinks := make([]Sink, 0, len(specs))
	seen := make(map[Kind]string, len(specs))

	for i, spec := range specs {
		s, err := b.build(i, spec, seen)
		if err != nil {
			for _, built := range sinks {
				built.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func (b *Builder) build(i int, spec HandlerSpec, seen map[Kind]string) (Sink, error) {
	factory, ok := b.registry.Lookup(spec.Kind)
	if !ok {
		return nil, failure.Configuration("build sinks", "handler #%d: unknown sink kind %q", i, spec.Kind)
	}

	name := spec.Name
	if name == "" {
		name = string(factory.Kind)
	}
	if prev, dup := seen[factory.Kind]; dup {
		return nil, failure.Configuration("build sinks", "handler %q: sink kind %q already configured by %q", name, factory.Kind, prev)
	}
	seen[factory.Kind] = name

	args, err := bind(factory, name, spec.Args)
	if err != nil {
		return nil, err
	}

	processors := spec.Processors
	if len(processors) == 0 {
		processors = factory.Processors
	}
	resolved := make([]logging.Processor, 0, len(processors))
	for _, pname := range processors {
		p, ok := logging.LookupProcessor(pname)
		if !ok {
			return nil, failure.Configuration("build sinks", "handler %q: unknown processor %q", name, pname)
		}
		resolved = append(resolved, p)
	}

	s, err := factory.New(b.env, name, args)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, "build sinks", err, fmt.Sprintf("handler %q", name))
	}

	s.SetFormatter(b.formatter)
	for _, p := range resolved {
		s.PushProcessor(p)
	}
	return s, nil
}

// bind matches supplied values to declared parameters. Missing required
// parameters fail, missing optional ones take their default. Unknown
// keys are ignored.
func bind(f Factory, name string, raw map[string]interface{}) (Args, error) {
	args := make(Args, len(f.Params))
	for _, p := range f.Params {
		v, ok := p.lookup(raw)
		if !ok {
			if p.Required {
				return nil, failure.Configuration("build sinks", "handler %q (%s): missing required parameter %q", name, f.Kind, p.Name)
			}
			v = p.Default
		}
		args[p.Name] = v
	}
	return args, nil
}

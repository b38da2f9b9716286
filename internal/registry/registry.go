package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrDuplicateTool is returned when two tools share a name.
var ErrDuplicateTool = errors.New("registry: duplicate tool")

// Registry is the immutable tool set declared by one backend.
// It is built once and safe for concurrent reads.
type Registry struct {
	namespace string
	order     []string
	tools     map[string]*entry
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema // nil when the tool declares no schema
}

// New builds a registry for the given namespace. Every tool name must carry
// the "<namespace>." prefix and every schema must compile.
func New(namespace string, tools ...Tool) (*Registry, error) {
	r := &Registry{
		namespace: namespace,
		tools:     make(map[string]*entry, len(tools)),
	}
	for _, t := range tools {
		if t.Handler == nil {
			return nil, fmt.Errorf("registry: tool %q has no handler", t.Name)
		}
		if !strings.HasPrefix(t.Name, namespace+".") {
			return nil, fmt.Errorf("registry: tool %q outside namespace %q", t.Name, namespace)
		}
		if _, ok := r.tools[t.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
		}

		e := &entry{tool: t}
		if t.InputSchema != nil {
			sch, err := compileSchema(t.Name, t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("registry: tool %q: %w", t.Name, err)
			}
			e.schema = sch
		}
		r.tools[t.Name] = e
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// Namespace returns the prefix shared by every tool in the registry.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Descriptors returns the tools in declaration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool.Descriptor)
	}
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	e, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return e.tool, true
}

// Validate checks arguments against the tool's input schema.
// Absent arguments are validated as an empty object.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("registry: unknown tool %q", name)
	}
	if e.schema == nil {
		return nil
	}
	return validateArgs(e.schema, args)
}

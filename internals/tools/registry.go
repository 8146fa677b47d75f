package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jadenj13/clipper/internals/llm"
)

// Handler runs one tool against its raw JSON input and returns a JSON-encodable value.
type Handler func(ctx context.Context, input json.RawMessage) (any, error)

type Definition struct {
	Spec    llm.Tool
	Handler Handler
}

// Registry is the fixed set of tools advertised to the model. It is built once
// and never changes afterwards, so it is safe to share between goroutines.
type Registry struct {
	specs    []llm.Tool
	handlers map[string]Handler
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		specs:    make([]llm.Tool, 0, len(defs)),
		handlers: make(map[string]Handler, len(defs)),
	}
	for i, d := range defs {
		name := strings.TrimSpace(d.Spec.Name)
		if name == "" {
			return nil, fmt.Errorf("tool definition %d: empty name", i)
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("tool %s: nil handler", name)
		}
		if _, dup := r.handlers[name]; dup {
			return nil, fmt.Errorf("tool %s: registered twice", name)
		}
		r.handlers[name] = d.Handler
		r.specs = append(r.specs, d.Spec)
	}
	return r, nil
}

// Specs returns the tool specs in registration order.
func (r *Registry) Specs() []llm.Tool {
	out := make([]llm.Tool, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Len() int { return len(r.specs) }

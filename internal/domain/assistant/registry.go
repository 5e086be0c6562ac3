package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okian/coachd/internal/domain/chat"
)

// Handler runs a tool for one coach. The coach id comes from the caller,
// never from the model input. The returned value is encoded as JSON.
type Handler func(ctx context.Context, coachID string, input json.RawMessage) (any, error)

type entry struct {
	def     chat.Tool
	handler Handler
}

// Registry keeps tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds a tool when its name is not in use.
func (r *Registry) Register(def chat.Tool, h Handler) error {
	if def.Name == "" || h == nil {
		return fmt.Errorf("register tool %q: %w", def.Name, ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("register tool %q: %w", def.Name, ErrDuplicateTool)
	}
	r.tools[def.Name] = entry{def: def, handler: h}
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns the tool descriptions sent to the model.
func (r *Registry) Definitions() []chat.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.Tool, len(r.order))
	for i, name := range r.order {
		out[i] = r.tools[name].def
	}
	return out
}

// Call runs the named tool and returns its JSON-encoded result.
func (r *Registry) Call(ctx context.Context, coachID, name string, input json.RawMessage) (string, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrUnknownTool)
	}
	out, err := e.handler(ctx, coachID, input)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("%s: encode result: %w", name, err)
	}
	return string(b), nil
}

// decode unmarshals tool input into dst. Empty input leaves dst untouched.
func decode(input json.RawMessage, dst any) error {
	if len(input) == 0 || string(input) == "null" {
		return nil
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

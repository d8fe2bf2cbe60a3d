package strategy

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// ParamType enumerates the value types a strategy parameter can take.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
)

// ParamSpec declares one strategy parameter and its default.
type ParamSpec struct {
	Name    string    `json:"name"`
	Type    ParamType `json:"type"`
	Default any       `json:"default"`
}

// Params holds validated parameter values keyed by name.
type Params map[string]any

func (p Params) Int(name string) int {
	switch v := p[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Factory constructs a strategy bound to an engine with validated
// parameters applied.
type Factory func(engine Engine, symbol string, params Params) (Strategy, error)

// Definition describes a registered strategy: its identifier, its
// parameter schema and its factory.
type Definition struct {
	Name    string      `json:"name"`
	Params  []ParamSpec `json:"params"`
	Factory Factory     `json:"-"`
}

// Registry maps strategy identifiers to definitions. Strategies are
// registered explicitly at wiring time; there is no filesystem
// scanning or runtime discovery. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. An existing definition under the same
// name is replaced.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("strategy %q: %w", name, domain.ErrUnknownStrategy)
	}
	return def, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Create validates the given parameters against the definition's
// schema, fills in defaults, and invokes the factory.
func (r *Registry) Create(name string, engine Engine, symbol string, params map[string]any) (Strategy, error) {
	def, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	applied, err := applyParams(def.Params, params)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	return def.Factory(engine, symbol, applied)
}

// applyParams merges user values over schema defaults, rejecting
// unknown names and type mismatches. JSON numbers arrive as float64
// and are accepted for int parameters when integral.
func applyParams(specs []ParamSpec, params map[string]any) (Params, error) {
	byName := make(map[string]ParamSpec, len(specs))
	applied := make(Params, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
		applied[spec.Name] = spec.Default
	}

	for name, value := range params {
		spec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
		coerced, err := coerceParam(spec.Type, value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		applied[name] = coerced
	}
	return applied, nil
}

func coerceParam(t ParamType, value any) (any, error) {
	switch t {
	case ParamInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected int, got %v", v)
			}
			return int(v), nil
		}
	case ParamFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	case ParamString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case ParamBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, value)
}

// Package scope models resolved variables and the layered lookup chain
// they are read from. A Scope is an ordered stack of immutable layers
// searched highest-precedence-first, so provenance stays inspectable.
package scope

// Layer is one source of variables (cli overrides, captures, a target
// table, ...) identified by name for diagnostics.
type Layer struct {
	Name string
	Vars map[string]Value
}

// Scope is an ordered list of layers, highest precedence first.
type Scope struct {
	layers []Layer
}

// New builds a scope from layers given highest-precedence-first.
func New(layers ...Layer) Scope {
	return Scope{layers: layers}
}

// Push prepends a layer, making it the highest-precedence source.
func (s Scope) Push(layer Layer) Scope {
	layers := make([]Layer, 0, len(s.layers)+1)
	layers = append(layers, layer)
	layers = append(layers, s.layers...)
	return Scope{layers: layers}
}

// Lookup finds key in the first layer that defines it. The returned string
// names the supplying layer.
func (s Scope) Lookup(key string) (Value, string, bool) {
	for _, layer := range s.layers {
		if v, ok := layer.Vars[key]; ok {
			return v, layer.Name, true
		}
	}
	return Value{}, "", false
}

// Has reports whether any layer defines key.
func (s Scope) Has(key string) bool {
	_, _, ok := s.Lookup(key)
	return ok
}

// Layers returns the layer stack, highest precedence first.
func (s Scope) Layers() []Layer {
	return s.layers
}

// LayerFromTOML converts a decoded TOML table into a layer, converting
// every entry into the closed Value representation. Keys starting with an
// underscore are reserved for per-request directives and skipped.
func LayerFromTOML(name string, table map[string]any) (Layer, error) {
	vars := make(map[string]Value, len(table))
	for k, raw := range table {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		if _, ok := raw.(map[string]any); ok {
			// Nested tables are sections, not variables.
			continue
		}
		v, err := FromTOML(raw)
		if err != nil {
			return Layer{}, err
		}
		vars[k] = v
	}
	return Layer{Name: name, Vars: vars}, nil
}

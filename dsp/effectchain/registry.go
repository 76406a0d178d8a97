package effectchain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Plugin is an effect instance living in the graph as a single node with
// one input and one output port.
type Plugin interface {
	Name() string
	NodeID() NodeID
}

// NodePlugin is a Plugin backed by a fixed node id.
type NodePlugin struct {
	name string
	node NodeID
}

// NewNodePlugin returns a plugin named name wrapping node.
func NewNodePlugin(name string, node NodeID) NodePlugin {
	return NodePlugin{name: name, node: node}
}

// Name returns the plugin identifier.
func (p NodePlugin) Name() string { return p.name }

// NodeID returns the plugin's graph node.
func (p NodePlugin) NodeID() NodeID { return p.node }

// Resolver maps chain identifiers to plugins.
type Resolver interface {
	Lookup(name string) (Plugin, bool)
	Plugins() []Plugin
}

// Registry maps plugin identifiers to plugin instances.
type Registry struct {
	plugins map[string]Plugin
}

var errDuplicatePlugin = errors.New("duplicate plugin")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds p under its name.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return errors.New("nil plugin")
	}

	name := p.Name()
	if name == "" {
		return errors.New("empty plugin name")
	}

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%w: %s", errDuplicatePlugin, name)
	}

	r.plugins[name] = p

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(p Plugin) {
	if err := r.Register(p); err != nil {
		panic("effectchain registry: " + err.Error())
	}
}

// Lookup returns the plugin registered as name.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered identifiers in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Plugins returns the registered plugins ordered by name.
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, 0, len(r.plugins))
	for _, name := range r.Names() {
		out = append(out, r.plugins[name])
	}

	return out
}

// ParseChain splits a comma separated chain description, dropping blanks.
func ParseChain(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

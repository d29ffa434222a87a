package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Bundle groups related tools under one "@name" selector.
type Bundle struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools"`
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Registry holds the gateway's tool set. Tools are registered once at
// startup with their dependencies already bound; lookups and execution are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	bundles map[string]Bundle
}

func NewRegistry() *Registry {
	return &Registry{
		tools:   map[string]Tool{},
		bundles: map[string]Bundle{},
	}
}

func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is required")
	}
	name := strings.TrimSpace(tool.Definition().Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

func (r *Registry) RegisterBundle(name, description string, toolNames []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bundle name is required")
	}
	cleaned := make([]string, 0, len(toolNames))
	for _, t := range toolNames {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		cleaned = append(cleaned, t)
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("bundle %q has no tools", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bundles[name]; exists {
		return fmt.Errorf("bundle %q already registered", name)
	}
	r.bundles[name] = Bundle{Name: name, Description: strings.TrimSpace(description), Tools: cleaned}
	return nil
}

func (r *Registry) MustRegisterBundle(name, description string, toolNames []string) {
	if err := r.RegisterBundle(name, description, toolNames); err != nil {
		panic(err)
	}
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for n := range r.tools {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Catalog() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.tools))
	for name, tool := range r.tools {
		out = append(out, ToolInfo{
			Name:        name,
			Description: tool.Definition().Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) BundleCatalog() []Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bundle, 0, len(r.bundles))
	for _, bundle := range r.bundles {
		out = append(out, Bundle{
			Name:        bundle.Name,
			Description: bundle.Description,
			Tools:       append([]string(nil), bundle.Tools...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schema returns the argument schema for a single tool by name.
func (r *Registry) Schema(name string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return tool.Definition().JSONSchema, true
}

// Select resolves a selection of names, "@bundle" expansions, and "*" into
// concrete tools, preserving order and dropping duplicates.
func (r *Registry) Select(selection []string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]string, 0, len(selection))
	seen := map[string]bool{}
	appendName := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		ordered = append(ordered, name)
	}

	for _, raw := range selection {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "@") {
			bundle, ok := r.bundles[strings.TrimPrefix(entry, "@")]
			if !ok {
				return nil, fmt.Errorf("unknown tool bundle %q", entry)
			}
			for _, n := range bundle.Tools {
				appendName(n)
			}
			continue
		}
		if entry == "*" {
			all := make([]string, 0, len(r.tools))
			for n := range r.tools {
				all = append(all, n)
			}
			sort.Strings(all)
			for _, n := range all {
				appendName(n)
			}
			continue
		}
		appendName(entry)
	}

	out := make([]Tool, 0, len(ordered))
	for _, name := range ordered {
		tool, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		out = append(out, tool)
	}
	return out, nil
}

// Execute runs a single tool by name with the given input.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (any, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return tool.Execute(ctx, input)
}

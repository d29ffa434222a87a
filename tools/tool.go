// Package tools exposes the gateway's operations as named, schema-described
// tools a conversational client can discover and invoke.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolDefinition describes a tool to callers: its name, what it does, and a
// JSON schema for its arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	JSONSchema  map[string]any `json:"jsonSchema,omitempty"`
}

// Tool is one invokable gateway operation. Arguments arrive as the raw JSON
// object the caller sent; results are marshaled for the caller as returned.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// FuncTool binds a definition to a closure. The gateway builtins are all
// FuncTools closing over their service clients.
type FuncTool struct {
	def ToolDefinition
	fn  func(ctx context.Context, args json.RawMessage) (any, error)
}

func NewFuncTool(name, description string, schema map[string]any, fn func(ctx context.Context, args json.RawMessage) (any, error)) *FuncTool {
	return &FuncTool{
		def: ToolDefinition{
			Name:        name,
			Description: description,
			JSONSchema:  schema,
		},
		fn: fn,
	}
}

func (t *FuncTool) Definition() ToolDefinition {
	return t.def
}

func (t *FuncTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, fmt.Errorf("tool %q has no execute function", t.def.Name)
	}
	return t.fn(ctx, args)
}

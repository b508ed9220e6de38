package negotiation

import (
	"context"
	"fmt"
)

// Lister fetches the raw tools/list result object.
type Lister interface {
	ListTools(ctx context.Context) (map[string]any, error)
}

type Negotiator struct {
	up Lister
}

func New(up Lister) *Negotiator { return &Negotiator{up: up} }

// Discover lists upstream tools. Results are never cached: every call
// issues a fresh tools/list.
func (n *Negotiator) Discover(ctx context.Context) (map[string]ToolDescriptor, error) {
	res, err := n.up.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tools: %w", err)
	}
	return ParseTools(res), nil
}

// ParseTools reduces a tools/list result to descriptors. Entries without a
// string name are skipped; a missing or malformed schema yields empty sets.
func ParseTools(result map[string]any) map[string]ToolDescriptor {
	out := map[string]ToolDescriptor{}
	tools, _ := result["tools"].([]any)
	for _, t := range tools {
		obj, ok := t.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj["name"].(string)
		if !ok || name == "" {
			continue
		}
		schema, _ := obj["inputSchema"].(map[string]any)
		desc := ToolDescriptor{Name: name, Required: FieldSet{}, Known: FieldSet{}}
		if req, ok := schema["required"].([]any); ok {
			for _, f := range req {
				if s, ok := f.(string); ok {
					desc.Required[s] = struct{}{}
				}
			}
		}
		if props, ok := schema["properties"].(map[string]any); ok {
			for f := range props {
				desc.Known[f] = struct{}{}
			}
		}
		out[name] = desc
	}
	return out
}

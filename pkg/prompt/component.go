// Package prompt assembles LLM prompts from prioritized, token-budgeted
// components. The Manager packs components into a system and a user prompt
// under a total token ceiling, truncating required components and dropping
// optional ones as the budget runs out.
package prompt

import "fmt"

// ComponentType classifies a prompt fragment. System components are budgeted
// separately; every other type shares one remaining pool.
type ComponentType string

const (
	TypeSystem      ComponentType = "system"
	TypeInstruction ComponentType = "instruction"
	TypeContext     ComponentType = "context"
	TypeExample     ComponentType = "example"
	TypeUserInput   ComponentType = "user_input"
	TypeFormatting  ComponentType = "formatting"
)

// Types lists every component type, in the order they are documented.
var Types = []ComponentType{
	TypeSystem,
	TypeInstruction,
	TypeContext,
	TypeExample,
	TypeUserInput,
	TypeFormatting,
}

// Valid reports whether t is one of the closed set of component types.
func (t ComponentType) Valid() bool {
	switch t {
	case TypeSystem, TypeInstruction, TypeContext, TypeExample, TypeUserInput, TypeFormatting:
		return true
	}
	return false
}

// Component is one named, typed, prioritized fragment of prompt text.
// Content may contain {{variable}} placeholders that Build resolves.
type Component struct {
	ID       string        `json:"id"`
	Type     ComponentType `json:"type"`
	Content  string        `json:"content"`
	Required bool          `json:"required,omitempty"`
	// MaxTokens is an informational per-component cap; the per-type budget
	// dominates selection.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Priority orders packing; higher values are considered first.
	// Components with equal priority keep insertion order.
	Priority int `json:"priority"`
}

// Budget is the token ceiling for one assembly run.
type Budget struct {
	// Total is the hard ceiling for system plus user tokens.
	Total int `json:"total"`
	// Reserved tokens are withheld from the user pool as headroom for the
	// model's own overhead.
	Reserved int `json:"reserved,omitempty"`
	// PerType holds soft per-type ceilings. A missing entry means unlimited
	// for that type (the total still applies to non-system types).
	PerType map[ComponentType]int `json:"per_type,omitempty"`
}

func (b Budget) typeLimit(t ComponentType) (int, bool) {
	limit, ok := b.PerType[t]
	return limit, ok
}

// ComponentUsage is the audit record for one candidate component, whether or
// not it made it into the final prompt. Tokens holds the included (possibly
// truncated) count for included components and the full untruncated count for
// dropped ones.
type ComponentUsage struct {
	ID       string        `json:"id"`
	Type     ComponentType `json:"type"`
	Tokens   int           `json:"tokens"`
	Included bool          `json:"included"`
}

// BuiltPrompt is the immutable result of one Build call.
type BuiltPrompt struct {
	SystemPrompt string           `json:"system_prompt"`
	UserPrompt   string           `json:"user_prompt"`
	SystemTokens int              `json:"system_tokens"`
	UserTokens   int              `json:"user_tokens"`
	TotalTokens  int              `json:"total_tokens"`
	Components   []ComponentUsage `json:"components"`
}

// Message is one chat-completion message handed to an LLM endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DuplicateComponentError reports an attempt to register two components under
// the same ID within one Manager. Callers must keep IDs unique per build.
type DuplicateComponentError struct {
	ID string
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("prompt: duplicate component id %q", e.ID)
}

package prompt

import (
	"regexp"
	"slices"
	"strings"
)

// TokenCounter is the tokenizer surface the Manager needs. *tokenizer.Tokenizer
// satisfies it.
type TokenCounter interface {
	CountTokens(text string) int
	Truncate(text string, maxTokens int) string
}

// Manager collects components and template variables for one prompt assembly.
// It is not safe for concurrent use; build one per request.
type Manager struct {
	counter    TokenCounter
	budget     Budget
	components []Component
	ids        map[string]struct{}
	vars       map[string]string
}

// NewManager returns an empty Manager packing against the given budget.
func NewManager(counter TokenCounter, budget Budget) *Manager {
	return &Manager{
		counter: counter,
		budget:  budget,
		ids:     make(map[string]struct{}),
		vars:    make(map[string]string),
	}
}

// AddComponent registers a component. Registering the same ID twice is a
// programmer error and fails with *DuplicateComponentError, leaving the
// component set unchanged.
func (m *Manager) AddComponent(c Component) error {
	if _, ok := m.ids[c.ID]; ok {
		return &DuplicateComponentError{ID: c.ID}
	}
	m.ids[c.ID] = struct{}{}
	m.components = append(m.components, c)
	return nil
}

// AddComponents registers each component in order, stopping at the first
// duplicate ID.
func (m *Manager) AddComponents(components []Component) error {
	for _, c := range components {
		if err := m.AddComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// RemoveComponent drops the component with the given ID. Removing an absent
// ID is a no-op.
func (m *Manager) RemoveComponent(id string) {
	if _, ok := m.ids[id]; !ok {
		return
	}
	delete(m.ids, id)
	m.components = slices.DeleteFunc(m.components, func(c Component) bool {
		return c.ID == id
	})
}

// SetVariable stores one {{key}} substitution value. Later calls overwrite
// earlier ones for the same key.
func (m *Manager) SetVariable(key, value string) {
	m.vars[key] = value
}

// SetVariables stores every substitution value in vars.
func (m *Manager) SetVariables(vars map[string]string) {
	for k, v := range vars {
		m.vars[k] = v
	}
}

var variableRX = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// substitute resolves {{variable}} placeholders. Unresolved placeholders pass
// through verbatim so partial prompts stay legible instead of failing a
// request.
func (m *Manager) substitute(content string) string {
	return variableRX.ReplaceAllStringFunc(content, func(match string) string {
		key := variableRX.FindStringSubmatch(match)[1]
		if v, ok := m.vars[key]; ok {
			return v
		}
		return match
	})
}

// Build packs the registered components into a system and a user prompt.
//
// Components are walked once in priority order (stable: equal priorities keep
// insertion order). System components consume the system type budget; every
// other type shares the pool total − systemTokens − reserved, further capped
// by its own type budget when one is set. A component that no longer fits is
// truncated into whatever remains if it is required, and dropped whole
// otherwise. Build is deterministic and side-effect free.
func (m *Manager) Build() BuiltPrompt {
	ordered := slices.Clone(m.components)
	slices.SortStableFunc(ordered, func(a, b Component) int {
		return b.Priority - a.Priority
	})

	var (
		systemParts []string
		userParts   []string
		usage       = make([]ComponentUsage, 0, len(ordered))
		systemUsed  int
		userUsed    int
		typeUsed    = make(map[ComponentType]int)
	)

	for _, c := range ordered {
		content := m.substitute(c.Content)
		tokens := m.counter.CountTokens(content)

		var remaining int
		if c.Type == TypeSystem {
			remaining = maxTokens
			if limit, ok := m.budget.typeLimit(TypeSystem); ok {
				remaining = limit - systemUsed
			}
		} else {
			remaining = m.budget.Total - systemUsed - m.budget.Reserved - userUsed
			if limit, ok := m.budget.typeLimit(c.Type); ok {
				if typeRemaining := limit - typeUsed[c.Type]; typeRemaining < remaining {
					remaining = typeRemaining
				}
			}
		}

		switch {
		case tokens <= remaining:
			// Fits whole.
		case c.Required:
			// Required components are never dropped; degrade to whatever
			// budget is left, down to the truncation marker alone.
			content = m.counter.Truncate(content, max(remaining, 0))
			tokens = m.counter.CountTokens(content)
		default:
			// Optional components are all-or-nothing. Audit the full count so
			// the drop is explainable.
			usage = append(usage, ComponentUsage{ID: c.ID, Type: c.Type, Tokens: tokens, Included: false})
			continue
		}

		if c.Type == TypeSystem {
			systemParts = append(systemParts, content)
			systemUsed += tokens
		} else {
			userParts = append(userParts, content)
			userUsed += tokens
			typeUsed[c.Type] += tokens
		}
		usage = append(usage, ComponentUsage{ID: c.ID, Type: c.Type, Tokens: tokens, Included: true})
	}

	systemPrompt := strings.Join(systemParts, "\n\n")
	userPrompt := strings.Join(userParts, "\n\n")
	systemTokens := m.counter.CountTokens(systemPrompt)
	userTokens := m.counter.CountTokens(userPrompt)

	return BuiltPrompt{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		SystemTokens: systemTokens,
		UserTokens:   userTokens,
		TotalTokens:  systemTokens + userTokens,
		Components:   usage,
	}
}

// maxTokens stands in for an unset per-type budget.
const maxTokens = int(^uint(0) >> 1)

// Messages converts the built prompt into ordered chat-completion messages:
// a system message when the system prompt is non-empty, then a user message
// when the user prompt is non-empty.
func (p BuiltPrompt) Messages() []Message {
	var msgs []Message
	if p.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: p.SystemPrompt})
	}
	if p.UserPrompt != "" {
		msgs = append(msgs, Message{Role: "user", Content: p.UserPrompt})
	}
	return msgs
}

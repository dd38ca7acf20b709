package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter counts whitespace-separated words as tokens, so tests can
// reason about exact budgets without a real tokenizer.
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func (wordCounter) Truncate(text string, maxTokens int) string {
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text
	}
	if maxTokens <= 1 {
		return "[truncated]"
	}
	// reserve one token for the marker, mirroring the real tokenizer
	return strings.Join(fields[:maxTokens-1], " ") + " [truncated]"
}

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = "w"
	}
	return strings.Join(out, " ")
}

func newTestManager(budget Budget) *Manager {
	return NewManager(wordCounter{}, budget)
}

func TestAddComponentRejectsDuplicateID(t *testing.T) {
	m := newTestManager(Budget{Total: 100})

	require.NoError(t, m.AddComponent(Component{ID: "x", Type: TypeInstruction, Content: "first"}))

	err := m.AddComponent(Component{ID: "x", Type: TypeContext, Content: "second"})
	require.Error(t, err)

	var dup *DuplicateComponentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "x", dup.ID)

	// The failed insert must not disturb the component set.
	built := m.Build()
	require.Len(t, built.Components, 1)
	assert.Equal(t, TypeInstruction, built.Components[0].Type)
}

func TestRemoveComponentIsIdempotent(t *testing.T) {
	m := newTestManager(Budget{Total: 100})
	require.NoError(t, m.AddComponent(Component{ID: "a", Type: TypeInstruction, Content: "keep"}))

	m.RemoveComponent("missing")
	m.RemoveComponent("a")
	m.RemoveComponent("a")

	assert.Empty(t, m.Build().Components)
}

func TestTemplateVariableSubstitution(t *testing.T) {
	m := newTestManager(Budget{Total: 100})
	require.NoError(t, m.AddComponent(Component{
		ID:      "greeting",
		Type:    TypeInstruction,
		Content: "Hello {{name}}, welcome to {{place}} and {{unknown}}",
	}))
	m.SetVariable("name", "Sam")
	m.SetVariables(map[string]string{"place": "Fable"})

	built := m.Build()
	assert.Equal(t, "Hello Sam, welcome to Fable and {{unknown}}", built.UserPrompt)
}

func TestVariableOverwriteKeepsLatestValue(t *testing.T) {
	m := newTestManager(Budget{Total: 100})
	require.NoError(t, m.AddComponent(Component{ID: "c", Type: TypeUserInput, Content: "{{v}}"}))
	m.SetVariable("v", "old")
	m.SetVariable("v", "new")

	assert.Equal(t, "new", m.Build().UserPrompt)
}

func TestBuildScenarioSystemWholeUserTruncated(t *testing.T) {
	// 50-token required system + 80-token required instruction under a total
	// of 100: the system fits whole and the instruction degrades into the 50
	// remaining tokens.
	m := newTestManager(Budget{Total: 100, Reserved: 0})
	require.NoError(t, m.AddComponents([]Component{
		{ID: "sys", Type: TypeSystem, Content: words(50), Required: true, Priority: 10},
		{ID: "inst", Type: TypeInstruction, Content: words(80), Required: true, Priority: 9},
	}))

	built := m.Build()

	require.Len(t, built.Components, 2)
	sys, inst := built.Components[0], built.Components[1]
	assert.Equal(t, "sys", sys.ID)
	assert.True(t, sys.Included)
	assert.Equal(t, 50, sys.Tokens)

	assert.Equal(t, "inst", inst.ID)
	assert.True(t, inst.Included)
	assert.LessOrEqual(t, inst.Tokens, 50)
	assert.Contains(t, built.UserPrompt, "[truncated]")
}

func TestRequiredComponentNeverDropped(t *testing.T) {
	m := newTestManager(Budget{Total: 1})
	require.NoError(t, m.AddComponents([]Component{
		{ID: "must", Type: TypeInstruction, Content: words(40), Required: true, Priority: 5},
		{ID: "optional", Type: TypeContext, Content: words(40), Priority: 4},
	}))

	built := m.Build()

	var must, optional *ComponentUsage
	for i := range built.Components {
		switch built.Components[i].ID {
		case "must":
			must = &built.Components[i]
		case "optional":
			optional = &built.Components[i]
		}
	}
	require.NotNil(t, must)
	require.NotNil(t, optional)

	assert.True(t, must.Included, "required components are truncated, never dropped")
	assert.False(t, optional.Included)
	// Dropped components audit their full untruncated cost.
	assert.Equal(t, 40, optional.Tokens)
}

func TestOptionalDropIsAllOrNothing(t *testing.T) {
	m := newTestManager(Budget{Total: 30})
	require.NoError(t, m.AddComponents([]Component{
		{ID: "big", Type: TypeInstruction, Content: words(25), Priority: 10},
		{ID: "doesnotfit", Type: TypeExample, Content: words(10), Priority: 9},
		{ID: "fits", Type: TypeUserInput, Content: words(5), Priority: 8},
	}))

	built := m.Build()

	byID := make(map[string]ComponentUsage)
	for _, u := range built.Components {
		byID[u.ID] = u
	}

	assert.True(t, byID["big"].Included)
	assert.False(t, byID["doesnotfit"].Included)
	assert.Equal(t, 10, byID["doesnotfit"].Tokens)
	// A later, smaller component can still claim the remaining budget.
	assert.True(t, byID["fits"].Included)
	assert.NotContains(t, built.UserPrompt, "[truncated]")
}

func TestEqualPriorityKeepsInsertionOrder(t *testing.T) {
	m := newTestManager(Budget{Total: 100})
	require.NoError(t, m.AddComponents([]Component{
		{ID: "first", Type: TypeInstruction, Content: "alpha", Priority: 5},
		{ID: "second", Type: TypeInstruction, Content: "beta", Priority: 5},
		{ID: "third", Type: TypeInstruction, Content: "gamma", Priority: 5},
	}))

	built := m.Build()
	assert.Equal(t, "alpha\n\nbeta\n\ngamma", built.UserPrompt)
}

func TestSystemBudgetSeparateFromUserPool(t *testing.T) {
	m := newTestManager(Budget{
		Total:    40,
		Reserved: 10,
		PerType:  map[ComponentType]int{TypeSystem: 10},
	})
	require.NoError(t, m.AddComponents([]Component{
		{ID: "sys", Type: TypeSystem, Content: words(10), Priority: 10},
		{ID: "user", Type: TypeUserInput, Content: words(20), Priority: 9},
	}))

	built := m.Build()

	// user pool = total(40) - system(10) - reserved(10) = 20
	assert.Equal(t, 10, built.SystemTokens)
	assert.Equal(t, 20, built.UserTokens)
	assert.Equal(t, built.SystemTokens+built.UserTokens, built.TotalTokens)
}

func TestTokenAccountingMatchesCounter(t *testing.T) {
	m := newTestManager(Budget{Total: 1000})
	require.NoError(t, m.AddComponents([]Component{
		{ID: "sys", Type: TypeSystem, Content: words(7), Priority: 10},
		{ID: "a", Type: TypeInstruction, Content: words(3), Priority: 9},
		{ID: "b", Type: TypeContext, Content: words(4), Priority: 8},
	}))

	built := m.Build()
	counter := wordCounter{}
	assert.Equal(t, counter.CountTokens(built.SystemPrompt), built.SystemTokens)
	assert.Equal(t, counter.CountTokens(built.UserPrompt), built.UserTokens)
	assert.Equal(t, built.SystemTokens+built.UserTokens, built.TotalTokens)
	assert.GreaterOrEqual(t, built.SystemTokens, 0)
	assert.GreaterOrEqual(t, built.UserTokens, 0)
}

func TestMessagesOrderAndOmission(t *testing.T) {
	full := BuiltPrompt{SystemPrompt: "sys", UserPrompt: "user"}
	msgs := full.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: "system", Content: "sys"}, msgs[0])
	assert.Equal(t, Message{Role: "user", Content: "user"}, msgs[1])

	assert.Equal(t, []Message{{Role: "user", Content: "user"}}, BuiltPrompt{UserPrompt: "user"}.Messages())
	assert.Equal(t, []Message{{Role: "system", Content: "sys"}}, BuiltPrompt{SystemPrompt: "sys"}.Messages())
	assert.Empty(t, BuiltPrompt{}.Messages())
}

func TestBuildIsDeterministic(t *testing.T) {
	build := func() BuiltPrompt {
		m := newTestManager(Budget{Total: 25})
		require.NoError(t, m.AddComponents([]Component{
			{ID: "sys", Type: TypeSystem, Content: words(5), Required: true, Priority: 10},
			{ID: "a", Type: TypeInstruction, Content: words(10), Required: true, Priority: 9},
			{ID: "b", Type: TypeExample, Content: words(10), Priority: 5},
		}))
		m.SetVariable("unused", "x")
		return m.Build()
	}

	assert.Equal(t, build(), build())
}

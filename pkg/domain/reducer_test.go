package domain_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright/pkg/domain"
)

func blob(s string) json.RawMessage {
	data, _ := json.Marshal([]string{s})
	return data
}

func TestRegistry_Fold_ReplaceByDefault(t *testing.T) {
	reg := domain.DefaultRegistry()
	state := domain.NewConversationState("first")
	state.Scope = "old scope"

	next, err := reg.Fold(state, domain.Delta{
		domain.FieldScope:             "new scope",
		domain.FieldLatestModelMessage: "hello",
		domain.FieldUserIntent:         domain.IntentDevelopment,
	})
	require.NoError(t, err)

	assert.Equal(t, "new scope", next.Scope)
	assert.Equal(t, "hello", next.LatestModelMessage)
	assert.Equal(t, domain.IntentDevelopment, next.UserIntent)
	assert.Equal(t, "first", next.LatestUserMessage, "fields absent from the delta are untouched")
	assert.Equal(t, "old scope", state.Scope, "input state is not mutated")
}

func TestRegistry_Fold_AppendHistory(t *testing.T) {
	reg := domain.DefaultRegistry()
	state := domain.NewConversationState("x")
	state.ExpertHistory = []json.RawMessage{blob("a")}

	next, err := reg.Fold(state, domain.Delta{domain.FieldExpertHistory: blob("b")})
	require.NoError(t, err)
	next, err = reg.Fold(next, domain.Delta{domain.FieldExpertHistory: []json.RawMessage{blob("c"), blob("d")}})
	require.NoError(t, err)

	require.Len(t, next.ExpertHistory, 4)
	for i, want := range []string{"a", "b", "c", "d"} {
		assert.JSONEq(t, string(blob(want)), string(next.ExpertHistory[i]))
	}
	assert.Len(t, state.ExpertHistory, 1, "input history is not mutated")
}

func TestRegistry_Fold_Errors(t *testing.T) {
	reg := domain.DefaultRegistry()
	state := domain.NewConversationState("x")

	tests := []struct {
		name  string
		delta domain.Delta
		want  error
	}{
		{"unknown field", domain.Delta{"nope": "v"}, domain.ErrUnknownField},
		{"string field with int", domain.Delta{domain.FieldScope: 42}, domain.ErrFieldType},
		{"history with string", domain.Delta{domain.FieldTriageHistory: "not a blob"}, domain.ErrFieldType},
		{"unknown intent", domain.Delta{domain.FieldUserIntent: "Shopping"}, domain.ErrFieldType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Fold(state, tt.delta)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsInvariantViolation(err))
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := domain.NewRegistry()

	concat := func(f domain.Field, current, update any) (any, error) {
		return fmt.Sprintf("%v|%v", current, update), nil
	}
	require.NoError(t, reg.Register(domain.FieldScope, concat))
	assert.ErrorIs(t, reg.Register("bogus", concat), domain.ErrUnknownField)

	state := domain.NewConversationState("x")
	state.Scope = "a"
	next, err := reg.Fold(state, domain.Delta{domain.FieldScope: "b"})
	require.NoError(t, err)
	assert.Equal(t, "a|b", next.Scope)

	// A plain registry replaces histories, so a single blob is a type error.
	_, err = reg.Fold(state, domain.Delta{domain.FieldExpertHistory: blob("z")})
	assert.ErrorIs(t, err, domain.ErrFieldType)
}

// TestAppendHistoryProperty checks that folding any sequence of history
// deltas yields the concatenation of all entries in order.
func TestAppendHistoryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("history is the ordered concatenation of every delta", prop.ForAll(
		func(batches [][]string) bool {
			reg := domain.DefaultRegistry()
			state := domain.NewConversationState("x")

			var want []string
			for _, batch := range batches {
				entries := make([]json.RawMessage, 0, len(batch))
				for _, s := range batch {
					entries = append(entries, blob(s))
					want = append(want, s)
				}
				prevLen := len(state.ScopeHistory)
				next, err := reg.Fold(state, domain.Delta{domain.FieldScopeHistory: entries})
				if err != nil {
					return false
				}
				if len(next.ScopeHistory) != prevLen+len(batch) {
					return false
				}
				state = next
			}

			if len(state.ScopeHistory) != len(want) {
				return false
			}
			for i, s := range want {
				if string(state.ScopeHistory[i]) != string(blob(s)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.AlphaString())),
	))

	properties.Property("replace fields keep only the last write", prop.ForAll(
		func(writes []string) bool {
			reg := domain.DefaultRegistry()
			state := domain.NewConversationState("x")
			for _, w := range writes {
				next, err := reg.Fold(state, domain.Delta{domain.FieldRefinedPrompt: w})
				if err != nil {
					return false
				}
				state = next
			}
			if len(writes) == 0 {
				return state.RefinedPrompt == ""
			}
			return state.RefinedPrompt == writes[len(writes)-1]
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}

package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/agentwright/pkg/domain"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		label string
		want  domain.Intent
		ok    bool
	}{
		{"Development", domain.IntentDevelopment, true},
		{" development. ", domain.IntentDevelopment, true},
		{"Q&A", domain.IntentQA, true},
		{"`qa`", domain.IntentQA, true},
		{"Chat", domain.IntentChat, true},
		{"**chat**", domain.IntentChat, true},
		{"Smalltalk", domain.IntentUnset, false},
		{"", domain.IntentUnset, false},
	}
	for _, tt := range tests {
		got, ok := ParseIntent(tt.label)
		assert.Equal(t, tt.ok, ok, "label %q", tt.label)
		assert.Equal(t, tt.want, got, "label %q", tt.label)
	}
}

func TestParseRoute(t *testing.T) {
	tests := map[string]Route{
		"finish_conversation":     RouteFinish,
		"\"finish_conversation\"": RouteFinish,
		"Refine":                  RouteRefine,
		"coder_agent\n":           RouteContinue,
	}
	for label, want := range tests {
		got, ok := ParseRoute(label)
		assert.True(t, ok, "label %q", label)
		assert.Equal(t, want, got)
	}

	_, ok := ParseRoute("keep going")
	assert.False(t, ok)
}

func TestParseRefinement(t *testing.T) {
	got, ok := ParseRefinement("refine_prompt")
	assert.True(t, ok)
	assert.Equal(t, RefinePrompt, got)

	got, ok = ParseRefinement("[REFINE_AGENT]")
	assert.True(t, ok)
	assert.Equal(t, RefineAgent, got)

	_, ok = ParseRefinement("refine_tools")
	assert.False(t, ok)
}

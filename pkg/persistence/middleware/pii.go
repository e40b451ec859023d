package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
)

// Mask replaces every match of a PII pattern.
const Mask = "***"

// DefaultPIIPatterns catches e-mail addresses, card-like digit runs and
// US social security numbers.
var DefaultPIIPatterns = []string{
	`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	`\b(?:\d[ \-]?){13,16}\b`,
	`\b\d{3}-\d{2}-\d{4}\b`,
}

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks text matching the patterns
// before it reaches the store. Free text fields, the pending user message and
// every string inside the history blobs are scanned. The caller's snapshot is
// left untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Append(ctx context.Context, runID string, snap domain.Snapshot) error {
	masked := snap.Clone()
	s := &masked.State

	s.LatestUserMessage = m.mask(s.LatestUserMessage)
	s.LatestModelMessage = m.mask(s.LatestModelMessage)
	s.Scope = m.mask(s.Scope)
	s.RefinedPrompt = m.mask(s.RefinedPrompt)
	s.RefinedTool = m.mask(s.RefinedTool)
	s.RefinedAgent = m.mask(s.RefinedAgent)
	masked.Next.UserMessage = m.mask(masked.Next.UserMessage)
	masked.Next.CodeOutput = m.mask(masked.Next.CodeOutput)
	masked.Next.Output = m.mask(masked.Next.Output)

	var err error
	for _, h := range []*[]json.RawMessage{&s.TriageHistory, &s.ExpertHistory, &s.ScopeHistory} {
		if *h, err = m.maskHistory(*h); err != nil {
			return err
		}
	}

	return m.next.Append(ctx, runID, masked)
}

func (m *piiMiddleware) LoadNext(ctx context.Context, runID string) (*domain.Snapshot, error) {
	return m.next.LoadNext(ctx, runID)
}

func (m *piiMiddleware) LoadAll(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	return m.next.LoadAll(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) maskHistory(blobs []json.RawMessage) ([]json.RawMessage, error) {
	for i, blob := range blobs {
		var v any
		if err := json.Unmarshal(blob, &v); err != nil {
			return nil, fmt.Errorf("%w: history entry %d: %v", domain.ErrCorruptSnapshot, i, err)
		}
		data, err := json.Marshal(m.maskValue(v))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal masked history: %w", err)
		}
		blobs[i] = data
	}
	return blobs, nil
}

func (m *piiMiddleware) maskValue(v any) any {
	switch t := v.(type) {
	case string:
		return m.mask(t)
	case map[string]any:
		for k, sub := range t {
			t[k] = m.maskValue(sub)
		}
		return t
	case []any:
		for i, sub := range t {
			t[i] = m.maskValue(sub)
		}
		return t
	}
	return v
}

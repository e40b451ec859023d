package reasoning

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/agentwright/pkg/domain"
)

// EncodeMessages serializes one call's messages into a history blob.
func EncodeMessages(msgs []Message) (json.RawMessage, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return data, nil
}

// DecodeHistory flattens a history field back into a message log.
// A blob that does not decode is reported as a corrupt snapshot.
func DecodeHistory(blobs []json.RawMessage) ([]Message, error) {
	var out []Message
	for i, blob := range blobs {
		var msgs []Message
		if err := json.Unmarshal(blob, &msgs); err != nil {
			return nil, fmt.Errorf("%w: history entry %d: %v", domain.ErrCorruptSnapshot, i, err)
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// Exchange builds the minimal log of a call: the prompt and the answer.
// Adapters that do not track tool traffic use it for Response.NewMessages.
func Exchange(prompt, answer string) []Message {
	return []Message{
		{Role: RoleUser, Content: prompt},
		{Role: RoleAssistant, Content: answer},
	}
}

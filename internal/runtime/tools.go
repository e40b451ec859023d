package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/agentwright/pkg/ports"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

// Tool names exposed to the expert and the agent refiner.
const (
	ToolRetrieveRelevant = "retrieve_relevant_documentation"
	ToolListPages        = "list_documentation_pages"
	ToolPageContent      = "get_page_content"
)

// DocumentationTools exposes a document index as reasoning tools.
// It returns nil when docs is nil.
func DocumentationTools(docs ports.DocumentIndex) []reasoning.Tool {
	if docs == nil {
		return nil
	}
	return []reasoning.Tool{
		{
			Name:        ToolRetrieveRelevant,
			Description: "Retrieve the documentation chunks most relevant to a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_query": map[string]any{"type": "string", "description": "The question or query."},
				},
				"required": []string{"user_query"},
			},
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					UserQuery string `json:"user_query"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				return docs.RetrieveRelevant(ctx, in.UserQuery)
			},
		},
		{
			Name:        ToolListPages,
			Description: "List the URLs of every available documentation page.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
				pages, err := docs.ListDocumentationPages(ctx)
				if err != nil {
					return "", err
				}
				return strings.Join(pages, "\n"), nil
			},
		},
		{
			Name:        ToolPageContent,
			Description: "Return the full content of one documentation page.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "description": "The page URL."},
				},
				"required": []string{"url"},
			},
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					URL string `json:"url"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				return docs.PageContent(ctx, in.URL)
			},
		},
	}
}

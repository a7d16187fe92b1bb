package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher is the subset of the duckduckgo client the tool uses.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

type SearchTool struct {
	client Searcher
}

func NewSearchTool() (*SearchTool, error) {
	ddg, err := duckduckgo.New(10, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg}, nil
}

func NewSearchToolWith(client Searcher) *SearchTool {
	return &SearchTool{client: client}
}

func (s *SearchTool) Name() string {
	return "literature_search"
}

func (s *SearchTool) Description() string {
	return "Search the web for published lab protocols and methods relevant to a hypothesis."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look up, e.g. 'Cas9 RNP electroporation HEK293'",
			},
			"site": map[string]any{
				"type":        "string",
				"description": "Optional domain to restrict results to, e.g. protocols.io",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Site  string `json:"site"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "Error: query is required", nil
	}
	if site := strings.TrimSpace(args.Site); site != "" {
		query = fmt.Sprintf("site:%s %s", site, query)
	}

	res, err := s.client.Call(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}

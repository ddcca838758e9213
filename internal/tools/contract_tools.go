package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"contract-assistant/internal/model"
	"contract-assistant/internal/placeholder"
	"contract-assistant/internal/retrieval"
	"contract-assistant/pkg/logger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	FindTemplateToolName        = "find_contract_template"
	ExtractPlaceholdersToolName = "extract_placeholders"
	FillPlaceholdersToolName    = "fill_placeholders"
)

type TemplateFinder interface {
	FindBestTemplate(ctx context.Context, query string) (model.Template, error)
}

type templateResult struct {
	ID           string   `json:"id"`
	Description  string   `json:"descrizione"`
	Link         string   `json:"link"`
	Text         string   `json:"testo"`
	Placeholders []string `json:"placeholders"`
}

type fillResult struct {
	Text        string   `json:"text"`
	Outstanding []string `json:"outstanding"`
	Complete    bool     `json:"complete"`
}

// NewMCPServer exposes template search and placeholder handling as MCP tools.
func NewMCPServer(finder TemplateFinder, version string) *server.MCPServer {
	s := server.NewMCPServer("contract-assistant", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(FindTemplateToolName,
		mcp.WithDescription("Trova il template di contratto editoriale più simile alla descrizione fornita."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Descrizione del contratto desiderato"),
		),
	), findTemplateHandler(finder))

	s.AddTool(mcp.NewTool(ExtractPlaceholdersToolName,
		mcp.WithDescription("Elenca i segnaposto [Nome] ancora presenti in un testo di contratto."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Testo del contratto"),
		),
	), extractPlaceholdersHandler)

	s.AddTool(mcp.NewTool(FillPlaceholdersToolName,
		mcp.WithDescription("Sostituisce i segnaposto [Nome] con i valori forniti e restituisce quelli rimasti."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Testo del contratto"),
		),
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description("Valori per nome del segnaposto, senza parentesi quadre"),
		),
	), fillPlaceholdersHandler)

	return s
}

// NewHTTPHandler serves s over the streamable HTTP transport.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

func findTemplateHandler(finder TemplateFinder) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := stringArgument(request, "query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		tpl, err := finder.FindBestTemplate(ctx, query)
		if err != nil {
			logger.Warnf("MCP %s failed: %v", FindTemplateToolName, err)
			if errors.Is(err, retrieval.ErrNoTemplate) {
				return mcp.NewToolResultError("nessun template adatto trovato"), nil
			}
			return mcp.NewToolResultError("ricerca dei template non disponibile"), nil
		}

		return jsonResult(templateResult{
			ID:           tpl.ID,
			Description:  tpl.Description,
			Link:         tpl.Link,
			Text:         tpl.Body,
			Placeholders: placeholder.Extract(tpl.Body),
		})
	}
}

func extractPlaceholdersHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := stringArgument(request, "text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"placeholders": placeholder.Extract(text),
		"unbalanced":   placeholder.Unbalanced(text),
	})
}

func fillPlaceholdersHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := stringArgument(request, "text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, ok := request.GetArguments()["values"].(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("values must be an object of strings"), nil
	}
	values := make(map[string]string, len(raw))
	for _, name := range sortedKeys(raw) {
		v, ok := raw[name].(string)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("value for %q must be a string", name)), nil
		}
		values[name] = v
	}

	filled := placeholder.Substitute(text, values)
	outstanding := placeholder.Extract(filled)
	return jsonResult(fillResult{
		Text:        filled,
		Outstanding: outstanding,
		Complete:    len(outstanding) == 0,
	})
}

func stringArgument(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := request.GetArguments()[name].(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return v, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"contract-assistant/pkg/logger"

	einoMcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolErrorResult is the payload a failed tool call is turned into, so an
// agent graph sees the failure as data instead of aborting.
type ToolErrorResult struct {
	Success      bool   `json:"success"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	ToolName     string `json:"tool_name"`
}

// Connect opens a streamable HTTP session with the MCP endpoint at url.
func Connect(ctx context.Context, url, clientVersion string) (*client.Client, error) {
	cli, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	if err := cli.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "contract-tools",
		Version: clientVersion,
	}
	if _, err := cli.Initialize(ctx, initRequest); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}
	return cli, nil
}

// EinoTools lists the tools served by cli as eino tools.
func EinoTools(ctx context.Context, cli client.MCPClient) ([]tool.BaseTool, error) {
	einoTools, err := einoMcp.GetTools(ctx, &einoMcp.Config{
		Cli:                   cli,
		ToolCallResultHandler: ToolErrorResultHandler(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load MCP tools: %w", err)
	}
	return einoTools, nil
}

func ToolErrorResultHandler() func(ctx context.Context, name string, result *mcp.CallToolResult) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, name string, result *mcp.CallToolResult) (*mcp.CallToolResult, error) {
		if !result.IsError {
			return result, nil
		}

		logger.Warnf("MCP tool %s returned an error result", name)
		payload, err := json.Marshal(ToolErrorResult{
			Success:      false,
			Error:        true,
			ErrorMessage: errorMessage(result),
			ToolName:     name,
		})
		if err != nil {
			return nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
		}, nil
	}
}

// ParseToolError reports whether text is a ToolErrorResult payload.
func ParseToolError(text string) (*ToolErrorResult, bool) {
	var r ToolErrorResult
	if err := json.Unmarshal([]byte(text), &r); err != nil || !r.Error {
		return nil, false
	}
	return &r, true
}

// ResultText returns the text content of a serialized tool result, the form
// eino MCP tools return from InvokableRun. Anything else is returned as is.
func ResultText(out string) string {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil || len(result.Content) == 0 {
		return out
	}

	var b strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func errorMessage(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			if c.Text != "" {
				return c.Text
			}
		case *mcp.TextContent:
			if c.Text != "" {
				return c.Text
			}
		}
	}
	return "tool call failed"
}

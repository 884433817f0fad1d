package mdmcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the query, show_tables and get_guide tools and
// the initial prompt on the given MCP server. Tool failures are returned as
// error tool results, never as protocol errors.
func RegisterMCPTools(mcpServer *server.MCPServer, mdMcp *MotherDuckMcp) {
	// query tool
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Use this to execute a query on the MotherDuck database. Returns at most a limited number of rows; truncated results are flagged."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("SQL query to execute that is a dialect of DuckDB SQL"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(queryTool, mdMcp.loggedToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		output, err := mdMcp.Query(ctx, QueryInput{Query: query})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output), nil
	}))

	// show_tables tool
	showTablesTool := mcp.NewTool("show_tables",
		mcp.WithDescription("Show all tables in a specific database"),
		mcp.WithString("database_name",
			mcp.Description("The name of the database to list tables from (defaults to the configured database)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(showTablesTool, mdMcp.loggedToolHandler("show_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("database_name", "")
		output, err := mdMcp.ShowTables(ctx, ShowTablesInput{DatabaseName: name})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output), nil
	}))

	// get_guide tool
	guideTool := mcp.NewTool("get_guide",
		mcp.WithDescription("Get the DuckDB SQL query syntax and performance guide with tips and best practices"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(guideTool, mdMcp.loggedToolHandler("get_guide", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(mdMcp.Guide()), nil
	}))

	// initial prompt
	prompt := mcp.NewPrompt(InitialPromptName,
		mcp.WithPromptDescription("A prompt to initialize a connection to duckdb or motherduck and start working with it"),
	)

	mcpServer.AddPrompt(prompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		mdMcp.logger.Info().Str("prompt", req.Params.Name).Msg("prompt requested")
		return mcp.NewGetPromptResult(
			"Initial prompt for interacting with DuckDB/MotherDuck",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(mdMcp.InitialPrompt())),
			},
		), nil
	})
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (m *MotherDuckMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		m.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Bool("is_error", result != nil && result.IsError).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}

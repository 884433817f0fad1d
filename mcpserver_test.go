package mdmcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mdmcp "github.com/rickchristie/motherduck-mcp"
)

// mcpTestServer bundles everything needed for an MCP HTTP server test.
type mcpTestServer struct {
	mdMcp      *mdmcp.MotherDuckMcp
	backend    *mockBackend
	baseURL    string
	httpServer *server.StreamableHTTPServer
}

// startMCPTestServer creates a sqlmock-backed MotherDuckMcp, registers MCP
// tools, starts an HTTP server on a free port, and returns the test server.
// The optional healthCheckPath enables the health check endpoint.
func startMCPTestServer(t *testing.T, config mdmcp.Config, healthCheckPath string) *mcpTestServer {
	t.Helper()

	p, backend := newTestInstance(t, config)

	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	mcpServer := server.NewMCPServer("gomdmcp-test", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
	)
	mdmcp.RegisterMCPTools(mcpServer, p)

	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()

	if healthCheckPath != "" {
		mux.HandleFunc(healthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	mux.Handle("/mcp", streamableServer)

	go func() {
		if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	t.Cleanup(func() { streamableServer.Shutdown(context.Background()) })

	return &mcpTestServer{
		mdMcp:      p,
		backend:    backend,
		baseURL:    fmt.Sprintf("http://localhost:%d", port),
		httpServer: streamableServer,
	}
}

// jsonRPC sends a JSON-RPC request to the MCP endpoint and returns the parsed response.
func (s *mcpTestServer) jsonRPC(t *testing.T, method string, params any) map[string]any {
	t.Helper()

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		reqBody["params"] = params
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := http.Post(s.baseURL+"/mcp", "application/json", strings.NewReader(string(bodyBytes)))
	if err != nil {
		t.Fatalf("JSON-RPC request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("failed to parse response JSON: %v; body: %s", err, string(respBody))
	}
	return result
}

// toolText calls a tool and returns its first text content and error flag.
func (s *mcpTestServer) toolText(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	result := s.jsonRPC(t, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	resultObj, ok := result["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %T: %v", result["result"], result)
	}
	content, ok := resultObj["content"].([]any)
	if !ok || len(content) == 0 {
		t.Fatalf("expected content array, got %v", resultObj["content"])
	}
	first := content[0].(map[string]any)
	if first["type"] != "text" {
		t.Fatalf("expected content type 'text', got %q", first["type"])
	}
	isError, _ := resultObj["isError"].(bool)
	return first["text"].(string), isError
}

func TestMCPServer_QueryTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	s.backend.mock.ExpectQuery("SELECT id, name FROM users ORDER BY id").
		WillReturnRows(columns("id", "INTEGER", "name", "VARCHAR").
			AddRow(int64(1), "alice").
			AddRow(int64(2), "bob"))

	text, isError := s.toolText(t, "query", map[string]any{
		"query": "SELECT id, name FROM users ORDER BY id",
	})
	if isError {
		t.Fatalf("query tool returned error: %s", text)
	}
	result := parseStructured(t, text)
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Data))
	}
	if result.Data[0]["name"] != "alice" {
		t.Fatalf("expected 'alice', got %v", result.Data[0]["name"])
	}
}

func TestMCPServer_QueryToolError(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	s.backend.mock.ExpectQuery("SELECT * FROM nope").
		WillReturnError(fmt.Errorf("Catalog Error: Table with name nope does not exist!"))

	text, isError := s.toolText(t, "query", map[string]any{"query": "SELECT * FROM nope"})
	if !isError {
		t.Fatalf("expected error result, got %s", text)
	}
	if !strings.Contains(text, "error executing query: Catalog Error") {
		t.Fatalf("unexpected error text: %s", text)
	}
}

func TestMCPServer_QueryToolMissingArgument(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	text, isError := s.toolText(t, "query", map[string]any{})
	if !isError || !strings.Contains(text, "query parameter is required") {
		t.Fatalf("expected missing-argument error, got isError=%v text=%s", isError, text)
	}
}

func TestMCPServer_ShowTablesTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	s.backend.mock.ExpectQuery("SELECT * FROM duckdb_tables() WHERE database_name = ?").
		WithArgs("sales").
		WillReturnRows(columns("database_name", "VARCHAR", "table_name", "VARCHAR").
			AddRow("sales", "orders").
			AddRow("sales", "customers"))

	text, isError := s.toolText(t, "show_tables", map[string]any{"database_name": "sales"})
	if isError {
		t.Fatalf("show_tables returned error: %s", text)
	}
	result := parseStructured(t, text)
	names := map[string]bool{}
	for _, row := range result.Data {
		names[row["table_name"].(string)] = true
	}
	if !names["orders"] || !names["customers"] {
		t.Fatalf("expected orders and customers, got %v", names)
	}
}

func TestMCPServer_GetGuideTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	text, isError := s.toolText(t, "get_guide", map[string]any{})
	if isError {
		t.Fatalf("get_guide returned error: %s", text)
	}
	if text != s.mdMcp.Guide() {
		t.Fatal("get_guide did not return the embedded guide")
	}
}

func TestMCPServer_InitialPrompt(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "prompts/get", map[string]any{"name": mdmcp.InitialPromptName})
	resultObj, ok := result["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %v", result)
	}
	messages, ok := resultObj["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected one prompt message, got %v", resultObj["messages"])
	}
	content := messages[0].(map[string]any)["content"].(map[string]any)
	if content["text"] != s.mdMcp.InitialPrompt() {
		t.Fatal("prompt did not return the embedded initial prompt")
	}
}

func TestMCPServer_HealthCheck(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "/health")

	resp, err := http.Get(s.baseURL + "/health")
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	expected := `{"status":"ok"}`
	if strings.TrimSpace(string(body)) != expected {
		t.Fatalf("expected exact body %s, got %q", expected, string(body))
	}
}

func TestMCPServer_HealthCheckAndMCPCoexist(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "/healthz")

	resp, err := http.Get(s.baseURL + "/healthz")
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health check: expected 200, got %d", resp.StatusCode)
	}

	s.backend.mock.ExpectQuery("SELECT 1 AS val").
		WillReturnRows(columns("val", "INTEGER").AddRow(int64(1)))

	text, isError := s.toolText(t, "query", map[string]any{"query": "SELECT 1 AS val"})
	if isError {
		t.Fatalf("MCP query returned error: %s", text)
	}
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "tools/list", map[string]any{})

	resultObj := result["result"].(map[string]any)
	tools, ok := resultObj["tools"].([]any)
	if !ok {
		t.Fatalf("expected tools array, got %T: %v", resultObj["tools"], resultObj["tools"])
	}
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}

	toolNames := map[string]bool{}
	for _, tool := range tools {
		toolMap := tool.(map[string]any)
		toolNames[toolMap["name"].(string)] = true
	}
	for _, expected := range []string{"query", "show_tables", "get_guide"} {
		if !toolNames[expected] {
			t.Fatalf("expected tool %q in list, got %v", expected, toolNames)
		}
	}
}

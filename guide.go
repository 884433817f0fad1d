package mdmcp

import (
	_ "embed"
)

//go:embed guide/query_guide.md
var queryGuide string

//go:embed guide/initial_prompt.md
var initialPrompt string

// InitialPromptName is the name of the MCP prompt returned by InitialPrompt.
const InitialPromptName = "duckdb-motherduck-initial-prompt"

// Guide returns the DuckDB SQL syntax and performance guide served by the
// get_guide tool.
func (m *MotherDuckMcp) Guide() string {
	return queryGuide
}

// InitialPrompt returns the text of the initial prompt that orients an agent
// before it starts querying.
func (m *MotherDuckMcp) InitialPrompt() string {
	return initialPrompt
}

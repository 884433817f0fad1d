package main

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	mdmcp "github.com/rickchristie/motherduck-mcp"
	"github.com/rickchristie/motherduck-mcp/internal/meta"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and print agent connection snippets",
	RunE: func(cmd *cobra.Command, args []string) error {
		useColor := isTTY(os.Stderr.Fd())
		return doctor(os.Stderr, useColor, resolveConfigPath(), os.LookupEnv)
	},
}

func doctor(w io.Writer, useColor bool, configPath string, lookup lookupFunc) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gomdmcp %s\n\n", meta.Version)

	config, ok := doctorValidateConfig(w, useColor, configPath, lookup)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gomdmcp doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads config file and environment, printing check
// results. Returns the effective config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string, lookup lookupFunc) (*mdmcp.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file is absent (defaults) or valid JSON
	_, statErr := os.Stat(configPath)
	config, err := loadServerConfig(configPath)
	switch {
	case err != nil:
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid: %v", err))
		return nil, false
	case statErr != nil:
		printCheck(w, useColor, true, fmt.Sprintf("No config file at %s, using defaults", configPath))
	default:
		printCheck(w, useColor, true, "Config file is valid")
	}

	// Check 2: Environment parses
	if err := applyEnvOverrides(config, lookup); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Environment variables are valid: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, "Environment variables are valid")
	}

	// Check 3: Connection target
	if config.Connection.Path == "" {
		printCheck(w, useColor, false, "connection.path is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.path is set (%s)", config.Connection.Path))
	}

	// Check 4: Token present when required
	if config.Connection.RequireToken {
		if config.Connection.Token == "" {
			printCheck(w, useColor, false, "MOTHERDUCK_TOKEN is set (required)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, "MOTHERDUCK_TOKEN is set")
		}
	}

	// Check 5: Limits, transport and format
	if err := validateServerConfig(config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Server settings are valid: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Server settings are valid (transport %s, max_rows %d, max_chars %d)",
			config.Server.Transport, config.Output.MaxRows, config.Output.MaxChars))
	}

	// Check 6: Regex patterns compile
	regexOK := true

	for i, rule := range config.ErrorPrompts {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_prompts[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return config, allPassed
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
	} else {
		fmt.Fprintf(w, "  %s %s\n", mark, msg)
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI
// agents, for the configured transport.
func printAgentSnippets(w io.Writer, useColor bool, config *mdmcp.ServerConfig) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	if config.Server.Transport == "stdio" {
		subheading("Claude Code")
		fmt.Fprintf(w, "  Run this command to add the server:\n\n")
		fmt.Fprintf(w, "    claude mcp add motherduck -e MOTHERDUCK_TOKEN=<token> -- gomdmcp serve\n\n")
		subheading("Claude Desktop, Cursor, Windsurf (mcpServers)")
		fmt.Fprintf(w, `  {
    "mcpServers": {
      "motherduck": {
        "command": "gomdmcp",
        "args": ["serve"],
        "env": {
          "MOTHERDUCK_TOKEN": "<token>",
          "DATABASE_NAME": "%s"
        }
      }
    }
  }
`, config.Connection.Database)
		return
	}

	url := fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port)

	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http motherduck %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "motherduck": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "motherduck": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "motherduck": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "motherduck": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}

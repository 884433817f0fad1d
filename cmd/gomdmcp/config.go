package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	mdmcp "github.com/rickchristie/motherduck-mcp"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// loadServerConfig reads the JSON config file on top of the defaults.
// A missing file is not an error: the defaults (plus environment) apply.
func loadServerConfig(path string) (*mdmcp.ServerConfig, error) {
	config := mdmcp.DefaultServerConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// applyEnvOverrides applies environment variables on top of config.
// DATABASE_PATH wins over DATABASE_NAME; a local DATABASE_PATH turns off the
// MotherDuck-only defaults unless they are set explicitly.
func applyEnvOverrides(config *mdmcp.ServerConfig, lookup lookupFunc) error {
	conn := &config.Connection

	if name, ok := lookup("DATABASE_NAME"); ok && name != "" {
		conn.Database = name
		conn.Path = "md:" + name
	}
	if path, ok := lookup("DATABASE_PATH"); ok && path != "" {
		conn.Path = path
		if !strings.HasPrefix(path, "md:") && !strings.HasPrefix(path, "motherduck:") {
			conn.RequireToken = false
			conn.SaaSMode = false
		}
	}
	if token, ok := lookup("MOTHERDUCK_TOKEN"); ok {
		conn.Token = strings.TrimSpace(token)
	}
	if v, ok := lookup("HOME_DIR"); ok {
		conn.HomeDir = v
	}

	var errs []error
	boolVar := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: expected a boolean, got %q", key, v))
			return
		}
		*dst = b
	}
	intVar := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: expected an integer, got %q", key, v))
			return
		}
		*dst = n
	}
	stringVar := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.ToLower(strings.TrimSpace(v))
		}
	}

	boolVar("MOTHERDUCK_SAAS_MODE", &conn.SaaSMode)
	boolVar("MOTHERDUCK_REQUIRE_TOKEN", &conn.RequireToken)
	boolVar("READ_ONLY", &conn.ReadOnly)
	intVar("SESSION_HINT_MAX", &conn.SessionHintMax)
	intVar("MAX_ROWS", &config.Output.MaxRows)
	intVar("MAX_CHARS", &config.Output.MaxChars)
	intVar("QUERY_TIMEOUT", &config.Query.TimeoutSeconds)
	intVar("PORT", &config.Server.Port)
	stringVar("RESULT_FORMAT", &config.Output.Format)
	stringVar("TRANSPORT", &config.Server.Transport)
	stringVar("LOG_LEVEL", &config.Logging.Level)
	stringVar("LOG_FORMAT", &config.Logging.Format)

	return errors.Join(errs...)
}

// validateServerConfig checks the operator-facing settings that mdmcp.New
// treats as programmer errors, so a bad environment fails with a message
// instead of a panic.
func validateServerConfig(config *mdmcp.ServerConfig) error {
	var errs []error
	if config.Output.MaxRows < 0 {
		errs = append(errs, errors.New("MAX_ROWS must be >= 0"))
	}
	if config.Output.MaxChars < 0 {
		errs = append(errs, errors.New("MAX_CHARS must be >= 0"))
	}
	switch config.Output.Format {
	case "", mdmcp.FormatJSON, mdmcp.FormatTable:
	default:
		errs = append(errs, fmt.Errorf("RESULT_FORMAT must be %q or %q, got %q", mdmcp.FormatJSON, mdmcp.FormatTable, config.Output.Format))
	}
	switch config.Server.Transport {
	case "stdio":
	case "http":
		if config.Server.Port <= 0 {
			errs = append(errs, errors.New("server.port must be > 0 for the http transport"))
		}
		if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "" {
			errs = append(errs, errors.New("health_check_path must be set when health_check_enabled is true"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRANSPORT must be stdio or http, got %q", config.Server.Transport))
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			errs = append(errs, fmt.Errorf("timeout_rules pattern %q: timeout_seconds must be > 0", rule.Pattern))
		}
	}
	return errors.Join(errs...)
}

package mdmcp

// Config is the base configuration used by library mode via New().
type Config struct {
	Connection   ConnectionConfig   `json:"connection"`
	Query        QueryConfig        `json:"query"`
	Output       OutputConfig       `json:"output"`
	ErrorPrompts []ErrorPromptRule  `json:"error_prompts"`
	Sanitization []SanitizationRule `json:"sanitization"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Server  ServerSettings `json:"server"`
	Logging LoggingConfig  `json:"logging"`
}

// ConnectionConfig describes the single backend connection owned by an instance.
type ConnectionConfig struct {
	// Path is the DuckDB database path. "md:<name>" targets MotherDuck,
	// anything else is a local file (or ":memory:").
	Path string `json:"path"`
	// Database is the catalog name used by show_tables when no name is given.
	Database string `json:"database"`
	// Token is the MotherDuck access token. Never serialized back to disk.
	Token string `json:"-"`
	// RequireToken makes an absent token a configuration error.
	RequireToken bool `json:"require_token"`
	// SaaSMode restricts the MotherDuck session (no local file or extension access).
	SaaSMode bool   `json:"saas_mode"`
	ReadOnly bool   `json:"read_only"`
	HomeDir  string `json:"home_dir"`
	// SessionHintMax is the upper bound of the session hint range.
	// Zero picks the default for the deployment mode.
	SessionHintMax int `json:"session_hint_max"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	// TimeoutSeconds bounds a single query. Zero or negative disables the timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
	// ShowTablesTimeoutSeconds bounds show_tables. Zero falls back to TimeoutSeconds.
	ShowTablesTimeoutSeconds int           `json:"show_tables_timeout_seconds"`
	MaxSQLLength             int           `json:"max_sql_length"`
	TimeoutRules             []TimeoutRule `json:"timeout_rules"`
}

// OutputConfig controls result truncation and rendering.
type OutputConfig struct {
	MaxRows  int    `json:"max_rows"`
	MaxChars int    `json:"max_chars"`
	Format   string `json:"format"` // json, table
}

// ServerSettings holds MCP server settings for CLI mode.
type ServerSettings struct {
	Transport          string `json:"transport"` // stdio, http
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// TimeoutRule maps a SQL pattern to a specific timeout.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorPromptRule maps an error message pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based field sanitization rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

const (
	DefaultDatabase       = "antm_hack"
	DefaultMaxRows        = 1024
	DefaultMaxChars       = 50000
	DefaultTimeoutSeconds = 120
	DefaultMaxSQLLength   = 100000

	// Hosted MotherDuck spreads sessions over a wider replica range.
	defaultSessionHintMaxHosted = 1000
	defaultSessionHintMaxLocal  = 100

	FormatJSON  = "json"
	FormatTable = "table"
)

// DefaultServerConfig returns the configuration used when no config file exists.
// It mirrors a hosted MotherDuck deployment: token required, SaaS mode, read-only.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Config: Config{
			Connection: ConnectionConfig{
				Path:         "md:" + DefaultDatabase,
				Database:     DefaultDatabase,
				RequireToken: true,
				SaaSMode:     true,
				ReadOnly:     true,
			},
			Query: QueryConfig{
				TimeoutSeconds: DefaultTimeoutSeconds,
				MaxSQLLength:   DefaultMaxSQLLength,
			},
			Output: OutputConfig{
				MaxRows:  DefaultMaxRows,
				MaxChars: DefaultMaxChars,
				Format:   FormatJSON,
			},
		},
		Server: ServerSettings{
			Transport: "stdio",
			Port:      8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

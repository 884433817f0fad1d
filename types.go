package mdmcp

// QueryInput is the input for the query tool.
type QueryInput struct {
	Query string `json:"query"`
}

// ShowTablesInput is the input for the show_tables tool. An empty
// DatabaseName falls back to the configured database.
type ShowTablesInput struct {
	DatabaseName string `json:"database_name"`
}

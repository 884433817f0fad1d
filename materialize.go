package mdmcp

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Column is a result column: its name and the backend's declared type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Record is one result row keyed by column name, in column declaration order.
type Record = orderedmap.OrderedMap[string, any]

// RecordSet is a size-capped query result.
type RecordSet struct {
	Columns []Column
	// Rows holds converted values positionally; Records zips them with
	// column names.
	Rows     [][]any
	Records  []*Record
	MoreRows bool
	// Limit is the row limit that was applied (0 when unbounded).
	Limit int
}

// materialize reads at most maxRows rows from rows and reports whether more
// rows existed. maxRows <= 0 reads everything. The extra row used for the
// lookahead is never scanned.
func materialize(rows *sql.Rows, maxRows int) (*RecordSet, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}
	columns := make([]Column, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	rs := &RecordSet{Columns: columns, Rows: make([][]any, 0), Limit: max(maxRows, 0)}
	for maxRows <= 0 || len(rs.Rows) < maxRows {
		if !rows.Next() {
			break
		}
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}
	if maxRows > 0 && len(rs.Rows) == maxRows {
		rs.MoreRows = rows.Next()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rs.Records = make([]*Record, len(rs.Rows))
	for i, row := range rs.Rows {
		rs.Records[i] = zipRecord(columns, row)
	}
	return rs, nil
}

func scanRow(rows *sql.Rows, columns []Column) ([]any, error) {
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	for i, v := range values {
		values[i] = convertValue(v, columns[i].Type)
	}
	return values, nil
}

func zipRecord(columns []Column, row []any) *Record {
	rec := orderedmap.New[string, any]()
	for i, col := range columns {
		rec.Set(col.Name, row[i])
	}
	return rec
}

// convertValue converts a driver value to a JSON-friendly Go value.
// dbType is the declared type of the value's column; it picks the text form
// of values whose Go shape is shared by several types (DATE and TIME are both
// time.Time, UUID and BLOB are both []byte). Anything without a natural JSON
// form is converted to its string form.
func convertValue(v any, dbType string) any {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case time.Time:
		return formatTime(val, dbType)
	case *big.Int:
		if val == nil {
			return nil
		}
		return val.String()
	case duckdb.Decimal:
		return formatDecimal(val)
	case duckdb.Interval:
		return formatInterval(val)
	case uuid.UUID:
		return val.String()
	case []byte:
		if dbType == "UUID" {
			if id, err := uuid.FromBytes(val); err == nil {
				return id.String()
			}
		}
		// BLOB: keep readable text, base64 everything else
		if utf8.Valid(val) {
			return string(val)
		}
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		// STRUCT
		fields := structFieldTypes(dbType)
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertValue(item, fields[k])
		}
		return result
	case duckdb.Map:
		return convertMap(val, dbType)
	case []any:
		// LIST / ARRAY
		elem := elementType(dbType)
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertValue(item, elem)
		}
		return result
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// convertMap converts a MAP to a JSON object. Keys are converted with the
// map's key type and then printed, since JSON objects need string keys.
func convertMap(m duckdb.Map, dbType string) map[string]any {
	keyType, valueType := mapTypes(dbType)
	result := make(map[string]any, len(m))
	for k, item := range m {
		result[fmt.Sprint(convertValue(k, keyType))] = convertValue(item, valueType)
	}
	return result
}

func formatTime(t time.Time, dbType string) string {
	switch dbType {
	case "DATE":
		return t.Format(time.DateOnly)
	case "TIME":
		return t.Format("15:04:05.999999")
	case "TIMETZ":
		return t.Format("15:04:05.999999-07")
	}
	return t.Format(time.RFC3339Nano)
}

func formatDecimal(d duckdb.Decimal) string {
	if d.Value == nil {
		return "0"
	}
	return d.String()
}

const (
	microsPerSecond = int64(1_000_000)
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
)

// formatInterval prints an INTERVAL the way DuckDB casts it to VARCHAR,
// e.g. "1 year 2 months 3 days 04:05:06.5".
func formatInterval(iv duckdb.Interval) string {
	var parts []string
	parts = appendIntervalUnit(parts, int64(iv.Months/12), "year")
	parts = appendIntervalUnit(parts, int64(iv.Months%12), "month")
	parts = appendIntervalUnit(parts, int64(iv.Days), "day")
	if iv.Micros != 0 || len(parts) == 0 {
		parts = append(parts, formatClock(iv.Micros))
	}
	return strings.Join(parts, " ")
}

func appendIntervalUnit(parts []string, n int64, unit string) []string {
	switch n {
	case 0:
		return parts
	case 1, -1:
		return append(parts, fmt.Sprintf("%d %s", n, unit))
	}
	return append(parts, fmt.Sprintf("%d %ss", n, unit))
}

func formatClock(micros int64) string {
	sign := ""
	if micros < 0 {
		sign = "-"
		micros = -micros
	}
	hours := micros / microsPerHour
	minutes := micros % microsPerHour / microsPerMinute
	seconds := micros % microsPerMinute / microsPerSecond
	out := fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
	if frac := micros % microsPerSecond; frac != 0 {
		out += strings.TrimRight(fmt.Sprintf(".%06d", frac), "0")
	}
	return out
}

// elementType returns the element type of a LIST ("T[]") or ARRAY ("T[n]")
// type name, or "" for any other type.
func elementType(dbType string) string {
	if !strings.HasSuffix(dbType, "]") {
		return ""
	}
	if i := strings.LastIndexByte(dbType, '['); i > 0 {
		return dbType[:i]
	}
	return ""
}

// mapTypes splits "MAP(K, V)" into its key and value types.
func mapTypes(dbType string) (string, string) {
	args := typeArgs(dbType, "MAP")
	if len(args) != 2 {
		return "", ""
	}
	return args[0], args[1]
}

// structFieldTypes maps each field of a STRUCT(...) type name to its type.
func structFieldTypes(dbType string) map[string]string {
	args := typeArgs(dbType, "STRUCT")
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		name, typ := splitFieldName(arg)
		fields[name] = typ
	}
	return fields
}

// typeArgs returns the top-level comma-separated arguments of a type name
// such as "MAP(VARCHAR, DECIMAL(18,3))". Quoted field names are skipped over.
func typeArgs(dbType, kind string) []string {
	inner, ok := strings.CutPrefix(dbType, kind+"(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return nil
	}
	inner = inner[:len(inner)-1]

	var args []string
	depth, quoted, start := 0, false, 0
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(inner[start:i]))
			start = i + 1
		}
	}
	return append(args, strings.TrimSpace(inner[start:]))
}

// splitFieldName splits a STRUCT member like `"my ""field""" INTEGER` into
// its unescaped name and its type.
func splitFieldName(arg string) (string, string) {
	if !strings.HasPrefix(arg, `"`) {
		name, typ, _ := strings.Cut(arg, " ")
		return name, typ
	}
	for i := 1; i < len(arg); i++ {
		if arg[i] != '"' {
			continue
		}
		if i+1 < len(arg) && arg[i+1] == '"' {
			i++
			continue
		}
		return strings.ReplaceAll(arg[1:i], `""`, `"`), strings.TrimSpace(arg[i+1:])
	}
	return arg, ""
}

func convertFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

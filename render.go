package mdmcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
)

// Renderer turns a RecordSet into the text returned to the agent. Output
// longer than maxChars characters is cut to exactly maxChars and followed by
// a notice; maxChars <= 0 disables the cut. A character-cut output may no
// longer be valid JSON.
type Renderer interface {
	Render(rs *RecordSet, maxChars int) (string, error)
}

// NewRenderer returns the renderer for format ("json" or "table").
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", FormatJSON:
		return limitedRenderer{jsonFormat{}}, nil
	case FormatTable:
		return limitedRenderer{tableFormat{}}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected %q or %q)", format, FormatJSON, FormatTable)
	}
}

// resultFormat is a serialization strategy. Limits and notices are applied
// uniformly by limitedRenderer.
type resultFormat interface {
	serialize(rs *RecordSet) (string, error)
	rowNotice(rs *RecordSet) string
	charNotice(maxChars int) string
	// embedsRowWarning is true when serialize already carries the row-limit
	// warning, so rowNotice is only needed if the body gets cut.
	embedsRowWarning() bool
}

type limitedRenderer struct {
	format resultFormat
}

func (r limitedRenderer) Render(rs *RecordSet, maxChars int) (string, error) {
	body, err := r.format.serialize(rs)
	if err != nil {
		return "", fmt.Errorf("failed to render result: %w", err)
	}
	return applyLimits(r.format, rs, body, maxChars), nil
}

// applyLimits cuts body to maxChars and appends at most one notice. The row
// notice wins over the character notice.
func applyLimits(f resultFormat, rs *RecordSet, body string, maxChars int) string {
	body, cut := truncateChars(body, maxChars)
	switch {
	case rs.MoreRows && (cut || !f.embedsRowWarning()):
		return body + f.rowNotice(rs)
	case cut:
		return body + f.charNotice(maxChars)
	default:
		return body
	}
}

// truncateChars cuts s to at most maxChars runes.
func truncateChars(s string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// --- json ---

type structuredOutput struct {
	Data      []*Record `json:"data"`
	RowCount  int       `json:"row_count"`
	Truncated bool      `json:"truncated"`
	Warning   string    `json:"warning,omitempty"`
}

type jsonFormat struct{}

func (jsonFormat) serialize(rs *RecordSet) (string, error) {
	out := structuredOutput{
		Data:      rs.Records,
		RowCount:  len(rs.Records),
		Truncated: rs.MoreRows,
	}
	if out.Data == nil {
		out.Data = []*Record{}
	}
	if rs.MoreRows {
		out.Warning = rowLimitWarning(rs.Limit)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (jsonFormat) rowNotice(rs *RecordSet) string {
	return fmt.Sprintf("\n\n\"warning\": %q", rowLimitWarning(rs.Limit))
}

func (jsonFormat) charNotice(maxChars int) string {
	return fmt.Sprintf("\n\n\"warning\": %q", charLimitWarning(maxChars))
}

func (jsonFormat) embedsRowWarning() bool { return true }

// --- table ---

type tableFormat struct{}

func (tableFormat) serialize(rs *RecordSet) (string, error) {
	data := make(pterm.TableData, 0, len(rs.Rows)+1)
	header := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = columnHeader(col)
	}
	data = append(data, header)
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = tableCell(v)
		}
		data = append(data, cells)
	}

	out, err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(true).
		WithData(data).
		Srender()
	if err != nil {
		return "", err
	}
	body := pterm.RemoveColorFromString(out)
	if len(rs.Rows) == 0 {
		body += "\n(0 rows)"
	}
	return body, nil
}

func (tableFormat) rowNotice(rs *RecordSet) string {
	return fmt.Sprintf("\n\nWarning: Showing first %s rows (more rows available)", humanize.Comma(int64(len(rs.Rows))))
}

func (tableFormat) charNotice(maxChars int) string {
	return "\n\nWarning: " + charLimitWarning(maxChars)
}

func (tableFormat) embedsRowWarning() bool { return false }

func columnHeader(col Column) string {
	if col.Type == "" {
		return col.Name
	}
	return fmt.Sprintf("%s (%s)", col.Name, col.Type)
}

func tableCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func rowLimitWarning(limit int) string {
	return fmt.Sprintf("Results limited to %s rows", humanize.Comma(int64(limit)))
}

func charLimitWarning(maxChars int) string {
	return fmt.Sprintf("Output truncated at %s characters", humanize.Comma(int64(maxChars)))
}

package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column with name and width.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Table provides styled table rendering.
type Table struct {
	columns     []Column
	rows        [][]string
	headerSep   bool
	indent      string
	headerStyle lipgloss.Style
}

// NewTable creates a new table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:     columns,
		headerSep:   true,
		indent:      "  ",
		headerStyle: Bold,
	}
}

// AutoWidth widens each column to fit its header and current rows,
// capped at max
func (t *Table) AutoWidth(max int) *Table {
	for i := range t.columns {
		width := lipgloss.Width(t.columns[i].Name)
		for _, row := range t.rows {
			if i < len(row) {
				if w := lipgloss.Width(row[i]); w > width {
					width = w
				}
			}
		}
		if max > 0 && width > max {
			width = max
		}
		t.columns[i].Width = width
	}
	return t
}

// SetIndent sets the left indent for the table.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// AddRow adds a row of values to the table.
func (t *Table) AddRow(values ...string) *Table {
	// Pad with empty strings if needed
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(t.indent)
	for i, col := range t.columns {
		sb.WriteString(t.pad(t.headerStyle.Render(col.Name), col.Name, col.Width, col.Align))
		if i < len(t.columns)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")

	if t.headerSep {
		sb.WriteString(t.indent)
		totalWidth := 0
		for i, col := range t.columns {
			totalWidth += col.Width
			if i < len(t.columns)-1 {
				totalWidth++ // space between columns
			}
		}
		sb.WriteString(Dim.Render(strings.Repeat("─", totalWidth)))
		sb.WriteString("\n")
	}

	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			// Truncate if too long
			runes := []rune(val)
			if col.Width > 3 && len(runes) > col.Width {
				val = string(runes[:col.Width-3]) + "..."
			}
			sb.WriteString(t.pad(col.Style.Render(val), val, col.Width, col.Align))
			if i < len(t.columns)-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// pad pads text to width. styledText may carry ANSI codes, plainText is
// the same text without them.
func (t *Table) pad(styledText, plainText string, width int, align Alignment) string {
	plainLen := lipgloss.Width(plainText)
	if plainLen >= width {
		return styledText
	}

	padding := strings.Repeat(" ", width-plainLen)
	if align == AlignRight {
		return padding + styledText
	}
	return styledText + padding
}

package style

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestCaret(t *testing.T) {
	if got := Caret(2, -1); got != "" {
		t.Errorf("Caret(2, -1) = %q, want empty", got)
	}
	got := Caret(2, 3)
	if !strings.HasPrefix(got, "     ") || !strings.Contains(got, "^") {
		t.Errorf("Caret(2, 3) = %q", got)
	}
	if w := lipgloss.Width(got); w != 6 {
		t.Errorf("Caret(2, 3) width = %d, want 6", w)
	}
}

func TestTableRender(t *testing.T) {
	table := NewTable(
		Column{Name: "POS", Align: AlignRight},
		Column{Name: "VALUE"},
	)
	table.AddRow("1", "SUM")
	table.AddRow("12")
	lines := strings.Split(strings.TrimSuffix(table.AutoWidth(10).Render(), "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	// header, separator, then rows padded to the widest cell
	for i, line := range lines {
		if w := lipgloss.Width(line); w != 2+3+1+5 {
			t.Errorf("line %d %q has width %d", i, line, w)
		}
	}
	if !strings.HasPrefix(lines[2], "    1 SUM") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestTableTruncates(t *testing.T) {
	table := NewTable(Column{Name: "V", Width: 6}).SetIndent("")
	table.AddRow("formula text")
	lines := strings.Split(table.Render(), "\n")
	if lines[2] != "for..." {
		t.Errorf("row = %q, want %q", lines[2], "for...")
	}
}

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func TestParseAssignments(t *testing.T) {
	row, err := parseAssignments([]string{"price=2.5", "name=widget", " active =true", "note="})
	require.NoError(t, err)
	assert.Equal(t, 2.5, row["price"])
	assert.Equal(t, "widget", row["name"])
	assert.Equal(t, true, row["active"])
	assert.Contains(t, row, "note")
	assert.Nil(t, row["note"])

	_, err = parseAssignments([]string{"novalue"})
	assert.ErrorContains(t, err, "expected key=value")
	_, err = parseAssignments([]string{"=1"})
	assert.Error(t, err)
}

func TestCompleteFunction(t *testing.T) {
	names := []string{"ROUND", "ROUNDUP", "SUM", "SQRT"}

	assert.Equal(t, []string{"=ROUND(", "=ROUNDUP("}, completeFunction("=rou", names))
	assert.Equal(t, []string{"=A + SUM("}, completeFunction("=A + su", names))
	assert.Nil(t, completeFunction("=A + ", names))
	assert.Empty(t, completeFunction("=xyz", names))
}

func newTestEngine() *formula.Engine {
	opts := formula.DefaultOptions()
	opts.Logger = formula.DiscardLogger()
	return formula.NewEngine(opts)
}

func TestHandleReplCommand(t *testing.T) {
	engine := newTestEngine()
	require.NoError(t, engine.RegisterComputedColumn(formula.ComputedColumn{Field: "total", Formula: "=price * qty"}))
	row := formula.Row{}
	var out bytes.Buffer

	handleReplCommand(engine, &out, ":set price=4 qty=3", row)
	assert.Equal(t, 4.0, row["price"])
	assert.Equal(t, 3.0, row["qty"])

	out.Reset()
	handleReplCommand(engine, &out, ":columns", row)
	assert.Contains(t, out.String(), "total = 12")

	out.Reset()
	handleReplCommand(engine, &out, ":row", row)
	assert.Contains(t, out.String(), "price = 4")

	handleReplCommand(engine, &out, ":unset qty", row)
	assert.NotContains(t, row, "qty")

	out.Reset()
	handleReplCommand(engine, &out, ":validate =SUM(", row)
	assert.Contains(t, out.String(), "unexpected end")

	out.Reset()
	handleReplCommand(engine, &out, ":functions", row)
	assert.Contains(t, out.String(), "SUM")

	out.Reset()
	handleReplCommand(engine, &out, ":tokens =A+1", row)
	assert.Contains(t, out.String(), "operator")

	out.Reset()
	handleReplCommand(engine, &out, ":bogus", row)
	assert.Contains(t, out.String(), "unknown command :bogus")
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, formula.FormulaResult{Value: formula.Text("hi"), Success: true, Cached: true})
	assert.Contains(t, out.String(), `"hi"`)
	assert.Contains(t, out.String(), "(cached)")

	out.Reset()
	printResult(&out, formula.FormulaResult{Success: false, Error: "division by zero"})
	assert.Contains(t, out.String(), "division by zero")
}

func TestPrintValidation(t *testing.T) {
	engine := newTestEngine()
	var out bytes.Buffer
	printValidation(&out, "=(A + B", engine.Validate("=(A + B"))

	lines := strings.Split(out.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "expected closing parenthesis")
	assert.Equal(t, "  =(A + B", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], strings.Repeat(" ", 9)), "caret line %q", lines[2])
	assert.Contains(t, lines[2], "^")
}

func TestTokensCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"tokens", "=SUM(a, b)"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "function")
	assert.Contains(t, out.String(), "[a b]")
	assert.Contains(t, out.String(), "SUM(a,b)")
}

func TestValidateCommandExitCode(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "=SUM("})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	var exit *exitError
	require.True(t, errors.As(err, &exit), "error = %v", err)
	assert.Equal(t, 2, exit.code)
}

package rows_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/rows"
)

const csvData = `Name, Price, Qty, Active, Note
widget, 2.5, 4, true,
gadget, 10, 1, FALSE, fragile
short, 1
`

const jsonData = `[
  {"Name": "widget", "Price": 2.5, "Qty": 4, "Active": true, "Note": null},
  {"Name": "gadget", "Price": 10, "Qty": 1, "Active": false, "Note": "fragile"}
]`

func TestRead_CSV(t *testing.T) {
	data, err := rows.Read(strings.NewReader(csvData), rows.FormatCSV)
	require.NoError(t, err)
	require.Len(t, data, 3)

	assert.Equal(t, "widget", data[0]["Name"])
	assert.Equal(t, 2.5, data[0]["Price"])
	assert.Equal(t, 4.0, data[0]["Qty"])
	assert.Equal(t, true, data[0]["Active"])
	assert.Nil(t, data[0]["Note"])

	assert.Equal(t, false, data[1]["Active"])
	assert.Equal(t, "fragile", data[1]["Note"])

	// short records fill the missing cells with nil
	assert.Equal(t, 1.0, data[2]["Price"])
	assert.Contains(t, data[2], "Qty")
	assert.Nil(t, data[2]["Qty"])
}

func TestRead_CSVEmpty(t *testing.T) {
	data, err := rows.Read(strings.NewReader(""), rows.FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRead_JSON(t *testing.T) {
	data, err := rows.Read(strings.NewReader(jsonData), rows.FormatJSON)
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, "widget", data[0]["Name"])
	assert.Equal(t, 2.5, data[0]["Price"])
	assert.Equal(t, float64(4), data[0]["Qty"])
	assert.Nil(t, data[0]["Note"])

	_, err = rows.Read(strings.NewReader(`{"not": "an array"}`), rows.FormatJSON)
	assert.ErrorContains(t, err, "decoding json rows")

	_, err = rows.Read(strings.NewReader(""), rows.Format("xml"))
	assert.Error(t, err)
}

func TestRowsFeedTheEngine(t *testing.T) {
	data, err := rows.Read(strings.NewReader(csvData), rows.FormatCSV)
	require.NoError(t, err)

	opts := formula.DefaultOptions()
	opts.Logger = formula.DiscardLogger()
	engine := formula.NewEngine(opts)

	result := engine.Calculate("=IF(Active, Price * Qty, 0)", &formula.FormulaContext{Row: data[0]})
	require.True(t, result.Success, result.Error)
	assert.True(t, result.Value.Equal(formula.Number(10)))
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"   ", nil},
		{"42", 42.0},
		{" -1.5e2 ", -150.0},
		{"TRUE", true},
		{"false", false},
		{"hello", "hello"},
		{"  padded ", "  padded "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rows.ParseCell(tt.in), "ParseCell(%q)", tt.in)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path       string
		format     rows.Format
		compressed bool
	}{
		{"data.json", rows.FormatJSON, false},
		{"data.CSV", rows.FormatCSV, false},
		{"data.csv.gz", rows.FormatCSV, true},
		{"dir/data.JSON.GZ", rows.FormatJSON, true},
	}
	for _, tt := range tests {
		format, compressed, err := rows.FormatFromPath(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.format, format, tt.path)
		assert.Equal(t, tt.compressed, compressed, tt.path)
	}

	_, _, err := rows.FormatFromPath("data.xlsx")
	assert.Error(t, err)
	_, _, err = rows.FormatFromPath("data.gz")
	assert.Error(t, err)
}

func TestLoadFile_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.json.gz")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(jsonData))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	data, err := rows.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "gadget", data[1]["Name"])
}

func TestLoadFile_PlainCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))

	data, err := rows.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 3)

	_, err = rows.LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "opening rows")
}

func TestWrite(t *testing.T) {
	data := []formula.Row{
		{"Name": "widget", "Total": formula.Number(10), "Flag": true},
		{"Name": "say \"hi\"", "Total": formula.ErrorValue(formula.NewFormulaError(formula.ErrorCodeDiv0, ""))},
	}

	var csvOut bytes.Buffer
	require.NoError(t, rows.Write(&csvOut, data, nil, rows.FormatCSV))
	assert.Equal(t, "Flag,Name,Total\nTRUE,widget,10\n,\"say \"\"hi\"\"\",#DIV/0!\n", csvOut.String())

	var ordered bytes.Buffer
	require.NoError(t, rows.Write(&ordered, data[:1], []string{"Total", "Name"}, rows.FormatCSV))
	assert.Equal(t, "Total,Name\n10,widget\n", ordered.String())

	var jsonOut bytes.Buffer
	require.NoError(t, rows.Write(&jsonOut, data[:1], nil, rows.FormatJSON))
	back, err := rows.Read(&jsonOut, rows.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 10.0, back[0]["Total"])
	assert.Equal(t, true, back[0]["Flag"])

	assert.Error(t, rows.Write(&jsonOut, data, nil, rows.Format("yaml")))
}

func TestColumns(t *testing.T) {
	cols := rows.Columns([]formula.Row{{"b": 1, "a": 2}, {"c": 3, "a": 4}})
	assert.Equal(t, []string{"a", "b", "c"}, cols)
	assert.Empty(t, rows.Columns(nil))
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/rows"
)

const replPrompt = "fx> "

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive formula shell",
	Long: `Start an interactive shell. lines are evaluated as formulas against the
current row. commands:

  :set key=value    set a field of the current row
  :unset key        remove a field
  :row              print the current row
  :tokens FORMULA   show the tokens of a formula
  :validate FORMULA validate a formula
  :columns          compute the configured computed columns
  :functions        list callable functions
  :clear            clear the result cache
  exit, quit        leave the shell`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := newEngine()
		if err != nil {
			return err
		}
		startRepl(engine, cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// startRepl starts the shell with line editing, history, and tab completion
func startRepl(engine *formula.Engine, out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()

	// Enable Ctrl+C to abort current line
	line.SetCtrlCAborts(true)

	names := engine.FunctionNames()
	line.SetCompleter(func(input string) []string {
		return completeFunction(input, names)
	})

	historyFile := filepath.Join(os.TempDir(), ".formula_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, style.Bold.Render("formula shell"))
	fmt.Fprintln(out, style.Dim.Render("Type 'exit' or Ctrl+D to quit, ':set key=value' to build a row"))

	row := formula.Row{}
	for {
		input, err := line.Prompt(replPrompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(out, "^C")
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			return
		}
		line.AppendHistory(input)

		if strings.HasPrefix(trimmed, ":") {
			handleReplCommand(engine, out, trimmed, row)
			continue
		}

		printResult(out, engine.Calculate(trimmed, &formula.FormulaContext{Row: row}))
	}
}

func handleReplCommand(engine *formula.Engine, out io.Writer, input string, row formula.Row) {
	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case ":set":
		assigned, err := parseAssignments(strings.Fields(arg))
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", style.ErrorPrefix, err)
			return
		}
		for k, v := range assigned {
			row[k] = v
		}
	case ":unset":
		delete(row, arg)
	case ":row":
		for _, k := range rows.Columns([]formula.Row{row}) {
			fmt.Fprintf(out, "  %s = %s\n", k, renderValue(formula.ValueOf(row[k])))
		}
	case ":tokens":
		fmt.Fprint(out, tokenTable(formula.Tokenize(arg)))
	case ":validate":
		printValidation(out, arg, engine.Validate(arg))
	case ":columns":
		values, err := engine.CalculateRow(row, nil)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", style.ErrorPrefix, err)
			return
		}
		fields := make([]string, 0, len(values))
		for k := range values {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		for _, k := range fields {
			fmt.Fprintf(out, "  %s = %s\n", k, renderValue(values[k]))
		}
	case ":functions":
		fmt.Fprintln(out, strings.Join(engine.FunctionNames(), " "))
	case ":clear":
		engine.ClearCache()
		fmt.Fprintf(out, "%s cache cleared\n", style.SuccessPrefix)
	default:
		fmt.Fprintf(out, "%s unknown command %s\n", style.ErrorPrefix, command)
	}
}

// completeFunction completes the function name being typed at the end of
// the line
func completeFunction(input string, names []string) []string {
	start := strings.LastIndexFunc(input, func(r rune) bool {
		return !(r == '_' || r == '.' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}) + 1
	prefix := strings.ToUpper(input[start:])
	if prefix == "" {
		return nil
	}

	var completions []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			completions = append(completions, input[:start]+name+"(")
		}
	}
	return completions
}

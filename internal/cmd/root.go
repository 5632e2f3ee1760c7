// Package cmd implements the formula command line interface.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/config"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/rows"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "formula",
	Short: "Evaluate spreadsheet-style formulas against rows",
	Long: `formula evaluates Excel-like formulas such as =SUM(price, tax) against
row records, validates them, and computes configured computed columns.

Engine options and computed columns are read from a YAML or TOML file
given with --config.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Engine config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// exitError ends the command with a status code after the command has
// already reported the problem itself
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return 0
}

// loadConfig reads --config, or returns the defaults when it is unset
func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath, os.Getenv)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newEngine builds an engine from the config, logging to stderr
func newEngine() (*formula.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	engine, err := cfg.NewEngine(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	logger, _ := cfg.Logger(os.Stderr)
	if logger != nil {
		logger.Debug("engine ready", slog.String("engine", engine.ID()), slog.Int("columns", len(cfg.Columns)))
	}
	return engine, cfg, nil
}

// parseAssignments turns k=v pairs into a row. values are converted the
// same way CSV cells are.
func parseAssignments(pairs []string) (formula.Row, error) {
	row := formula.Row{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", pair)
		}
		row[key] = rows.ParseCell(value)
	}
	return row, nil
}

// renderValue styles a result for terminal output
func renderValue(v formula.Value) string {
	switch v.Kind() {
	case formula.KindError:
		return style.Error.Render(v.String())
	case formula.KindNull:
		return style.Dim.Render("NULL")
	case formula.KindText:
		return fmt.Sprintf("%q", v.String())
	}
	return v.String()
}

func printResult(w io.Writer, result formula.FormulaResult) {
	if !result.Success {
		fmt.Fprintf(w, "%s %s\n", style.ErrorPrefix, result.Error)
		return
	}
	suffix := style.Dim.Render(fmt.Sprintf("(%s)", result.CalculationTime))
	if result.Cached {
		suffix = style.Dim.Render("(cached)")
	}
	fmt.Fprintf(w, "%s %s\n", renderValue(result.Value), suffix)
}

// Package config loads engine options and computed column definitions
// from YAML or TOML files.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Config is the root configuration document
type Config struct {
	Engine  EngineConfig   `yaml:"engine" toml:"engine"`
	Logging LoggingConfig  `yaml:"logging" toml:"logging"`
	Columns []ColumnConfig `yaml:"columns" toml:"columns"`
}

// EngineConfig mirrors formula.Options
type EngineConfig struct {
	AutoRecalculate          bool   `yaml:"auto_recalculate" toml:"auto_recalculate"`
	DetectCircularReferences bool   `yaml:"detect_circular_references" toml:"detect_circular_references"`
	MaxDepth                 int    `yaml:"max_depth" toml:"max_depth"`
	ErrorHandling            string `yaml:"error_handling" toml:"error_handling"`
	CacheResults             bool   `yaml:"cache_results" toml:"cache_results"`
	CacheSize                int    `yaml:"cache_size" toml:"cache_size"`
	ExpressionCacheSize      int    `yaml:"expression_cache_size" toml:"expression_cache_size"`
	Precision                int    `yaml:"precision" toml:"precision"`

	// Timezone is an IANA zone name used by NOW, TODAY and DATE
	Timezone string `yaml:"timezone" toml:"timezone"`
}

// LoggingConfig selects the log level and handler
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text, json
}

// ColumnConfig defines one computed column
type ColumnConfig struct {
	Field               string   `yaml:"field" toml:"field"`
	Formula             string   `yaml:"formula" toml:"formula"`
	Dependencies        []string `yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	Format              string   `yaml:"format,omitempty" toml:"format,omitempty"`
	Cache               *bool    `yaml:"cache,omitempty" toml:"cache,omitempty"`
	RecalculateOnChange bool     `yaml:"recalculate_on_change" toml:"recalculate_on_change"`
}

// Defaults returns a configuration matching formula.DefaultOptions
func Defaults() *Config {
	opts := formula.DefaultOptions()
	return &Config{
		Engine: EngineConfig{
			AutoRecalculate:          opts.AutoRecalculate,
			DetectCircularReferences: opts.DetectCircularReferences,
			MaxDepth:                 opts.MaxDepth,
			ErrorHandling:            string(opts.ErrorHandling),
			CacheResults:             opts.CacheResults,
			CacheSize:                opts.CacheSize,
			ExpressionCacheSize:      opts.ExpressionCacheSize,
			Precision:                opts.Precision,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []string

	if _, err := formula.ParseErrorHandling(c.Engine.ErrorHandling); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Engine.MaxDepth < 0 {
		errs = append(errs, fmt.Sprintf("invalid max_depth: %d", c.Engine.MaxDepth))
	}
	if c.Engine.Timezone != "" {
		if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("invalid timezone %q", c.Engine.Timezone))
		}
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err.Error())
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logging format %q", c.Logging.Format))
	}

	seen := make(map[string]struct{})
	for i, col := range c.Columns {
		if col.Field == "" {
			errs = append(errs, fmt.Sprintf("columns[%d]: field is required", i))
			continue
		}
		if _, dup := seen[col.Field]; dup {
			errs = append(errs, fmt.Sprintf("columns[%d]: duplicate field %s", i, col.Field))
		}
		seen[col.Field] = struct{}{}
		if col.Formula == "" {
			errs = append(errs, fmt.Sprintf("columns[%d]: formula is required", i))
		}
		if col.Format != "" {
			if _, err := formula.ParseFormat(col.Format); err != nil {
				errs = append(errs, fmt.Sprintf("columns[%d]: %v", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Options converts the engine section into formula.Options. the logger is
// built from the logging section and writes to w.
func (c *Config) Options(w io.Writer) (formula.Options, error) {
	eh, err := formula.ParseErrorHandling(c.Engine.ErrorHandling)
	if err != nil {
		return formula.Options{}, err
	}
	logger, err := c.Logger(w)
	if err != nil {
		return formula.Options{}, err
	}

	opts := formula.Options{
		AutoRecalculate:          c.Engine.AutoRecalculate,
		DetectCircularReferences: c.Engine.DetectCircularReferences,
		MaxDepth:                 c.Engine.MaxDepth,
		ErrorHandling:            eh,
		CacheResults:             c.Engine.CacheResults,
		CacheSize:                c.Engine.CacheSize,
		ExpressionCacheSize:      c.Engine.ExpressionCacheSize,
		Precision:                c.Engine.Precision,
		Logger:                   logger,
	}
	if c.Engine.Timezone != "" {
		loc, err := time.LoadLocation(c.Engine.Timezone)
		if err != nil {
			return formula.Options{}, fmt.Errorf("loading timezone %s: %w", c.Engine.Timezone, err)
		}
		opts.Clock = &ZonedClock{Location: loc}
	}
	return opts, nil
}

// ComputedColumns converts the columns section into engine columns
func (c *Config) ComputedColumns() ([]formula.ComputedColumn, error) {
	cols := make([]formula.ComputedColumn, 0, len(c.Columns))
	for _, cc := range c.Columns {
		col := formula.ComputedColumn{
			Field:               cc.Field,
			Formula:             cc.Formula,
			Dependencies:        cc.Dependencies,
			Cache:               cc.Cache,
			RecalculateOnChange: cc.RecalculateOnChange,
		}
		if cc.Format != "" {
			f, err := formula.ParseFormat(cc.Format)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", cc.Field, err)
			}
			col.Format = f
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// NewEngine builds an engine with every configured column registered
func (c *Config) NewEngine(w io.Writer) (*formula.Engine, error) {
	opts, err := c.Options(w)
	if err != nil {
		return nil, err
	}
	cols, err := c.ComputedColumns()
	if err != nil {
		return nil, err
	}

	engine := formula.NewEngine(opts)
	for _, col := range cols {
		if err := engine.RegisterComputedColumn(col); err != nil {
			return nil, fmt.Errorf("registering column %s: %w", col.Field, err)
		}
	}
	return engine, nil
}

// Logger builds the slog logger described by the logging section
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid logging level %q", s)
	}
	return level, nil
}

// ZonedClock reports wall-clock time in a fixed location
type ZonedClock struct {
	Location *time.Location
}

func (z *ZonedClock) Now() time.Time {
	return time.Now().In(z.Location)
}

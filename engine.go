package formula

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorHandling selects what computed columns produce when their formula
// fails
type ErrorHandling string

const (
	// ErrorHandlingThrow returns the failure as a Go error
	ErrorHandlingThrow ErrorHandling = "throw"
	// ErrorHandlingReturnError returns an error Value such as #VALUE!
	ErrorHandlingReturnError ErrorHandling = "return-error"
	// ErrorHandlingReturnNull returns Null
	ErrorHandlingReturnNull ErrorHandling = "return-null"
)

// ParseErrorHandling validates an error handling policy name
func ParseErrorHandling(s string) (ErrorHandling, error) {
	switch eh := ErrorHandling(strings.ToLower(strings.TrimSpace(s))); eh {
	case ErrorHandlingThrow, ErrorHandlingReturnError, ErrorHandlingReturnNull:
		return eh, nil
	case "":
		return ErrorHandlingReturnError, nil
	}
	return "", NewApplicationError(InvalidArgument, fmt.Sprintf("unknown error handling %q", s))
}

const (
	defaultMaxDepth            = 100
	defaultCacheSize           = 1000
	defaultExpressionCacheSize = 500
	defaultPrecision           = 10
)

// Options configures an engine. use DefaultOptions as the starting point;
// zero sizes and depths fall back to the defaults.
type Options struct {
	CustomFunctions          map[string]Function
	AutoRecalculate          bool
	DetectCircularReferences bool
	MaxDepth                 int
	ErrorHandling            ErrorHandling
	CacheResults             bool
	CacheSize                int
	ExpressionCacheSize      int

	// Precision is the number of decimals numeric results are rounded to.
	// 0 means the default of 10, a negative value disables rounding.
	Precision int

	Clock  Clock
	Logger *slog.Logger
}

// DefaultOptions returns the recommended engine configuration
func DefaultOptions() Options {
	return Options{
		AutoRecalculate:          true,
		DetectCircularReferences: true,
		MaxDepth:                 defaultMaxDepth,
		ErrorHandling:            ErrorHandlingReturnError,
		CacheResults:             true,
		CacheSize:                defaultCacheSize,
		ExpressionCacheSize:      defaultExpressionCacheSize,
		Precision:                defaultPrecision,
	}
}

func (o Options) normalized() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}
	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}
	if o.ExpressionCacheSize <= 0 {
		o.ExpressionCacheSize = defaultExpressionCacheSize
	}
	if o.Precision == 0 {
		o.Precision = defaultPrecision
	}
	if o.ErrorHandling == "" {
		o.ErrorHandling = ErrorHandlingReturnError
	}
	if o.Clock == nil {
		o.Clock = &WallClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return o
}

// DiscardLogger returns a logger that drops every record
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ComputedColumn is a column whose value is derived from a formula over
// the other fields of the same row
type ComputedColumn struct {
	Field   string
	Formula string

	// Dependencies are filled from the formula when left empty
	Dependencies []string

	// Format, when set, turns successful results into display text
	Format Formatter

	// Cache disables result caching for this column when set to false
	Cache *bool

	RecalculateOnChange bool
}

func (c *ComputedColumn) cacheEnabled() bool {
	return c.Cache == nil || *c.Cache
}

// Engine evaluates formulas against rows. an engine owns its function
// registry, caches and computed columns; it is not safe for concurrent
// mutation.
type Engine struct {
	id       string
	options  Options
	registry *FunctionRegistry
	cache    *resultCache
	columns  map[string]*ComputedColumn
	graph    *ColumnGraph
	logger   *slog.Logger
}

// NewEngine creates an engine with the given options
func NewEngine(opts Options) *Engine {
	e := &Engine{
		id:      uuid.NewString(),
		columns: make(map[string]*ComputedColumn),
		graph:   NewColumnGraph(),
	}
	e.Configure(opts)
	return e
}

// NewDefaultEngine creates an engine with DefaultOptions
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultOptions())
}

// ID returns the unique id attached to the engine's log records
func (e *Engine) ID() string {
	return e.id
}

// Options returns the active configuration
func (e *Engine) Options() Options {
	return e.options
}

// Registry returns the engine's function registry
func (e *Engine) Registry() *FunctionRegistry {
	return e.registry
}

// Configure replaces the engine policy. custom functions already
// registered are kept and opts.CustomFunctions are added on top. caches
// are rebuilt empty.
func (e *Engine) Configure(opts Options) {
	opts = opts.normalized()
	e.options = opts
	e.logger = opts.Logger.With("engine", e.id)

	previous := e.registry
	e.registry = NewFunctionRegistry(opts.Clock)
	if previous != nil {
		for name, fn := range previous.customs {
			e.registry.Register(name, fn)
		}
	}
	for name, fn := range opts.CustomFunctions {
		if fn == nil || strings.TrimSpace(name) == "" {
			e.logger.Warn("skipping invalid custom function", "name", name)
			continue
		}
		e.registry.Register(name, fn)
	}

	cache, err := newResultCache(opts.CacheSize, opts.ExpressionCacheSize)
	if err != nil {
		// sizes are normalized to be positive, so this cannot happen
		panic(err)
	}
	e.cache = cache

	e.logger.Debug("engine configured",
		"cacheResults", opts.CacheResults,
		"cacheSize", opts.CacheSize,
		"maxDepth", opts.MaxDepth,
		"errorHandling", string(opts.ErrorHandling))
}

// RegisterFunction adds or replaces a custom function. the name is
// case-insensitive and a custom function shadows a builtin of the same
// name. cached results are dropped since they may depend on the old
// definition.
func (e *Engine) RegisterFunction(name string, fn Function) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "function name cannot be empty")
	}
	if fn == nil {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("function %s cannot be nil", name))
	}

	if e.registry.Register(name, fn) {
		e.logger.Warn("custom function replaced", "name", strings.ToUpper(name))
	} else if e.registry.IsBuiltin(name) {
		e.logger.Debug("custom function shadows builtin", "name", strings.ToUpper(name))
	}
	e.cache.purgeResults()
	return nil
}

// UnregisterFunction removes a custom function
func (e *Engine) UnregisterFunction(name string) bool {
	if !e.registry.Unregister(name) {
		return false
	}
	e.cache.purgeResults()
	return true
}

// ParseFormula tokenizes and compiles a formula, reusing a cached
// expression for the same text
func (e *Engine) ParseFormula(formula string) *FormulaExpression {
	if expr, ok := e.cache.getExpression(formula); ok {
		return expr
	}
	expr := ParseFormula(formula)
	e.cache.putExpression(expr)
	return expr
}

// Calculate evaluates a formula against a context. it never panics; every
// failure is reported through the result.
func (e *Engine) Calculate(formula string, ctx *FormulaContext) FormulaResult {
	return e.calculate(formula, ctx, true)
}

func (e *Engine) calculate(formula string, ctx *FormulaContext, useCache bool) FormulaResult {
	start := time.Now()

	expr := e.ParseFormula(formula)
	if expr.Error != nil {
		e.logger.Debug("formula failed to compile", "formula", formula, "error", expr.Error.Message)
		return e.failure(expr.Error, time.Since(start))
	}
	program := expr.Compiled

	// context functions are not part of the key, so calls carrying them
	// always evaluate
	cacheable := useCache && e.options.CacheResults && !program.Volatile() &&
		(ctx == nil || len(ctx.Functions) == 0)

	var key string
	if cacheable {
		var ok bool
		key, ok = resultKey(formula, ctx)
		cacheable = ok
	}
	if cacheable {
		if v, hit := e.cache.getResult(key); hit {
			return FormulaResult{Value: v, Success: true, Cached: true}
		}
	}

	v, err := e.execute(program, ctx)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Debug("formula evaluation failed", "formula", formula, "error", err.Error())
		return e.failure(asFormulaError(err), elapsed)
	}
	if v.IsError() {
		return e.failure(v.Err(), elapsed)
	}
	v = e.applyPrecision(v)

	if cacheable {
		e.cache.putResult(key, v)
	}
	e.logger.Debug("formula evaluated", "formula", formula, "duration", elapsed)
	return FormulaResult{Value: v, Success: true, CalculationTime: elapsed}
}

// execute runs a program, turning a panic in a custom function into an
// error
func (e *Engine) execute(program *Program, ctx *FormulaContext) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("recovered panic during evaluation", "panic", fmt.Sprint(r))
			v = Null()
			err = NewFormulaError(ErrorCodeOther, fmt.Sprintf("panic during evaluation: %v", r))
		}
	}()
	return program.Evaluate(ctx, e.registry)
}

func asFormulaError(err error) *FormulaError {
	if fe, ok := err.(*FormulaError); ok && fe != nil {
		return fe
	}
	return NewFormulaError(ErrorCodeOther, err.Error())
}

func (e *Engine) failure(fe *FormulaError, elapsed time.Duration) FormulaResult {
	v := ErrorValue(fe)
	if e.options.ErrorHandling == ErrorHandlingReturnNull {
		v = Null()
	}
	return FormulaResult{
		Value:           v,
		Success:         false,
		Error:           fe.Error(),
		ErrorCode:       fe.Code,
		CalculationTime: elapsed,
	}
}

func (e *Engine) applyPrecision(v Value) Value {
	if e.options.Precision < 0 || v.Kind() != KindNumber {
		return v
	}
	return Number(roundTo(v.num, e.options.Precision))
}

// Validate checks a formula without evaluating it
func (e *Engine) Validate(formula string) FormulaValidation {
	return e.validate(e.ParseFormula(formula), nil, nil)
}

// ValidateColumn validates a registered computed column, including whether
// it takes part in a circular reference
func (e *Engine) ValidateColumn(field string) (FormulaValidation, error) {
	col, ok := e.columns[field]
	if !ok {
		return FormulaValidation{}, NewApplicationError(NotFound, fmt.Sprintf("computed column %s not found", field))
	}
	visited := map[string]struct{}{field: {}}
	return e.validate(e.ParseFormula(col.Formula), col.Dependencies, visited), nil
}

func (e *Engine) validate(expr *FormulaExpression, deps []string, visited map[string]struct{}) FormulaValidation {
	if deps == nil {
		deps = expr.Dependencies
	}
	result := FormulaValidation{
		Valid:         true,
		ErrorPosition: -1,
		Warnings:      []string{},
		Dependencies:  deps,
	}

	if expr.Error != nil {
		result.Valid = false
		result.Error = expr.Error.Message
		result.ErrorPosition = expr.Error.Position
		return result
	}

	for _, name := range expr.Compiled.Functions() {
		if _, ok := e.registry.Lookup(name); !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown function: %s", name))
		}
	}
	for _, dep := range deps {
		if e.registry.IsBuiltin(dep) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("field %s has the name of a builtin function; add parentheses to call it", dep))
		}
	}

	if e.options.DetectCircularReferences && e.graph.DetectCircular(deps, visited, e.options.MaxDepth) {
		result.Valid = false
		result.CircularReference = true
		result.Error = "circular reference detected"
	}
	return result
}

// RegisterComputedColumn adds or replaces a computed column. a column that
// closes a circular reference is still registered, but a warning is
// logged; use ValidateColumn to reject it.
func (e *Engine) RegisterComputedColumn(col ComputedColumn) error {
	if strings.TrimSpace(col.Field) == "" {
		return NewApplicationError(InvalidArgument, "computed column field cannot be empty")
	}
	if strings.TrimSpace(col.Formula) == "" {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("computed column %s has no formula", col.Field))
	}

	expr := e.ParseFormula(col.Formula)
	if expr.Error != nil {
		e.logger.Warn("computed column formula does not compile",
			"field", col.Field, "error", expr.Error.Message)
	}
	if len(col.Dependencies) == 0 {
		col.Dependencies = expr.Dependencies
	} else {
		col.Dependencies = append([]string(nil), col.Dependencies...)
	}

	volatile := expr.Compiled != nil && expr.Compiled.Volatile()
	if _, exists := e.columns[col.Field]; exists {
		e.logger.Warn("computed column replaced", "field", col.Field)
	}
	e.columns[col.Field] = &col
	e.graph.SetColumn(col.Field, col.Formula, col.Dependencies, volatile)

	if e.options.DetectCircularReferences {
		visited := map[string]struct{}{col.Field: {}}
		if e.graph.DetectCircular(col.Dependencies, visited, e.options.MaxDepth) {
			e.logger.Warn("computed column is part of a circular reference", "field", col.Field)
		}
	}
	return nil
}

// RemoveComputedColumn unregisters a computed column
func (e *Engine) RemoveComputedColumn(field string) bool {
	if _, exists := e.columns[field]; !exists {
		return false
	}
	delete(e.columns, field)
	e.graph.RemoveColumn(field)
	return true
}

// ComputedColumn returns a registered column by field
func (e *Engine) ComputedColumn(field string) (ComputedColumn, bool) {
	col, ok := e.columns[field]
	if !ok {
		return ComputedColumn{}, false
	}
	return *col, true
}

// ComputedColumns returns the registered columns sorted by field
func (e *Engine) ComputedColumns() []ComputedColumn {
	result := make([]ComputedColumn, 0, len(e.columns))
	for _, field := range sortedKeys(e.columns) {
		result = append(result, *e.columns[field])
	}
	return result
}

// Graph returns the computed column dependency graph
func (e *Engine) Graph() *ColumnGraph {
	return e.graph
}

// CalculateComputedColumn evaluates a computed column for one row.
// computed columns it depends on are evaluated first; the caller's row is
// never modified. an unknown field yields Null. failures are reported
// according to the ErrorHandling option.
func (e *Engine) CalculateComputedColumn(field string, row Row, allRows []Row) (Value, error) {
	col, ok := e.columns[field]
	if !ok {
		return Null(), nil
	}

	v, fe := e.computeColumn(col, row, allRows, NewCalculationStack())
	if fe != nil {
		return e.handleFailure(field, fe)
	}
	return e.formatColumn(col, v)
}

// CalculateRow evaluates every computed column for one row, in dependency
// order. with ErrorHandlingThrow the first failure stops the calculation.
func (e *Engine) CalculateRow(row Row, allRows []Row) (map[string]Value, error) {
	order, hasCycle := e.graph.CalculationOrder()
	if hasCycle {
		e.logger.Debug("calculating row with circular computed columns")
	}

	stack := NewCalculationStack()
	results := make(map[string]Value, len(order))
	for _, field := range order {
		col := e.columns[field]
		v, fe := e.computeColumn(col, row, allRows, stack)
		if fe != nil {
			handled, err := e.handleFailure(field, fe)
			if err != nil {
				return results, err
			}
			results[field] = handled
			continue
		}
		formatted, err := e.formatColumn(col, v)
		if err != nil {
			return results, err
		}
		results[field] = formatted
	}
	return results, nil
}

// ColumnsAffectedBy lists the computed columns that should be recalculated
// when field changes: columns marked RecalculateOnChange that depend on it
// directly or transitively. empty unless AutoRecalculate is on.
func (e *Engine) ColumnsAffectedBy(field string) []string {
	if !e.options.AutoRecalculate {
		return nil
	}
	var affected []string
	for _, dependent := range e.graph.Dependents(field) {
		if col, ok := e.columns[dependent]; ok && col.RecalculateOnChange {
			affected = append(affected, dependent)
		}
	}
	return affected
}

// computeColumn evaluates a column's raw value, computing any computed
// dependencies into a copy of the row first
func (e *Engine) computeColumn(col *ComputedColumn, row Row, allRows []Row, stack *CalculationStack) (Value, *FormulaError) {
	if v, done := stack.completedValue(col.Field); done {
		return v, nil
	}
	if stack.isProcessing(col.Field) {
		return Null(), NewFormulaError(ErrorCodeRef,
			fmt.Sprintf("circular reference: %s -> %s", strings.Join(stack.path(), " -> "), col.Field))
	}
	if stack.depth() >= e.options.MaxDepth {
		return Null(), NewFormulaError(ErrorCodeRef,
			fmt.Sprintf("computed column %s exceeds the maximum depth of %d", col.Field, e.options.MaxDepth))
	}

	stack.push(col.Field)
	defer stack.pop()

	working := row
	copied := false
	for _, dep := range col.Dependencies {
		depCol, ok := e.columns[dep]
		if !ok || dep == col.Field {
			continue
		}
		v, fe := e.computeColumn(depCol, row, allRows, stack)
		if fe != nil {
			return Null(), fe
		}
		if !copied {
			working = copyRow(row)
			copied = true
		}
		working[dep] = v
	}

	result := e.calculate(col.Formula, &FormulaContext{
		Row:      working,
		AllRows:  allRows,
		RowIndex: -1,
	}, col.cacheEnabled())
	if !result.Success {
		if fe := result.Value.Err(); fe != nil {
			return Null(), fe
		}
		return Null(), NewFormulaError(result.ErrorCode, result.Error)
	}

	stack.markCompleted(col.Field, result.Value)
	return result.Value, nil
}

func (e *Engine) formatColumn(col *ComputedColumn, v Value) (Value, error) {
	if col.Format == nil || v.IsNull() {
		return v, nil
	}
	text, err := col.Format.Format(v)
	if err != nil {
		return e.handleFailure(col.Field, asFormulaError(err))
	}
	return Text(text), nil
}

func (e *Engine) handleFailure(field string, fe *FormulaError) (Value, error) {
	e.logger.Debug("computed column failed", "field", field, "error", fe.Message)
	switch e.options.ErrorHandling {
	case ErrorHandlingThrow:
		return Null(), fmt.Errorf("computed column %s: %w", field, fe)
	case ErrorHandlingReturnNull:
		return Null(), nil
	}
	return ErrorValue(fe), nil
}

// ClearCache drops every cached result and parsed expression
func (e *Engine) ClearCache() {
	e.cache.purge()
}

// CacheStats reports the current cache occupancy
func (e *Engine) CacheStats() CacheStats {
	return e.cache.stats()
}

// FunctionNames returns every callable function name, sorted
func (e *Engine) FunctionNames() []string {
	return e.registry.Names()
}

func copyRow(row Row) Row {
	cp := make(Row, len(row)+1)
	for k, v := range row {
		cp[k] = v
	}
	return cp
}

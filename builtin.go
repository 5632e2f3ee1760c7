package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuiltInFunctions contains all engine built-in functions
type BuiltInFunctions struct {
	clock Clock
}

func newBuiltInFunctions(clock Clock) *BuiltInFunctions {
	return &BuiltInFunctions{clock: clock}
}

// table exposes the builtins keyed by upper-case name
func (bf *BuiltInFunctions) table() map[string]Function {
	return map[string]Function{
		// math
		"SUM":     bf.SUM,
		"AVERAGE": bf.AVERAGE,
		"AVG":     bf.AVERAGE,
		"MIN":     bf.MIN,
		"MAX":     bf.MAX,
		"COUNT":   bf.COUNT,
		"COUNTA":  bf.COUNTA,
		"MEDIAN":  bf.MEDIAN,
		"ROUND":   bf.ROUND,
		"FLOOR":   bf.FLOOR,
		"CEIL":    bf.CEIL,
		"CEILING": bf.CEIL,
		"ABS":     bf.ABS,
		"SQRT":    bf.SQRT,
		"POW":     bf.POW,
		"POWER":   bf.POW,
		"MOD":     bf.MOD,
		"PI":      bf.PI,

		// text
		"CONCAT":      bf.CONCAT,
		"CONCATENATE": bf.CONCAT,
		"UPPER":       bf.UPPER,
		"LOWER":       bf.LOWER,
		"PROPER":      bf.PROPER,
		"TRIM":        bf.TRIM,
		"LEFT":        bf.LEFT,
		"RIGHT":       bf.RIGHT,
		"MID":         bf.MID,
		"LEN":         bf.LEN,

		// date
		"NOW":   bf.NOW,
		"TODAY": bf.TODAY,
		"DATE":  bf.DATE,
		"YEAR":  bf.YEAR,
		"MONTH": bf.MONTH,
		"DAY":   bf.DAY,

		// logical
		"IF":      bf.IF,
		"IFERROR": bf.IFERROR,
		"AND":     bf.AND,
		"OR":      bf.OR,
		"NOT":     bf.NOT,
		"ISNULL":  bf.ISNULL,
		"ISEMPTY": bf.ISEMPTY,
	}
}

// checkArgs validates the argument count. max < 0 means variadic.
func checkArgs(name string, args []Value, min, max int) error {
	if len(args) >= min && (max < 0 || len(args) <= max) {
		return nil
	}
	switch {
	case min == max && min == 0:
		return NewFormulaError(ErrorCodeNA, fmt.Sprintf("%s takes no arguments", name))
	case min == max:
		return NewFormulaError(ErrorCodeNA, fmt.Sprintf("%s requires exactly %d argument(s)", name, min))
	case max < 0:
		return NewFormulaError(ErrorCodeNA, fmt.Sprintf("%s requires at least %d argument(s)", name, min))
	}
	return NewFormulaError(ErrorCodeNA, fmt.Sprintf("%s requires %d to %d arguments", name, min, max))
}

// numberArg coerces args[i] or fails with #VALUE!
func numberArg(name string, args []Value, i int) (float64, error) {
	num, ok := toNumber(args[i])
	if !ok || math.IsNaN(num) {
		return 0, NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s requires a numeric argument at position %d", name, i+1))
	}
	return num, nil
}

func (bf *BuiltInFunctions) SUM(args ...Value) (Value, error) {
	sum := 0.0
	for _, arg := range args {
		if num, ok := toNumber(arg); ok && !math.IsNaN(num) {
			sum += num
		}
	}
	return Number(sum), nil
}

// AVERAGE ignores arguments that do not coerce to a number, unlike SUM
// which counts them as 0. null arguments are ignored too.
func (bf *BuiltInFunctions) AVERAGE(args ...Value) (Value, error) {
	sum := 0.0
	count := 0
	for _, arg := range args {
		if arg.IsNull() {
			continue
		}
		if num, ok := toNumber(arg); ok && !math.IsNaN(num) {
			sum += num
			count++
		}
	}
	if count == 0 {
		return Number(0), nil
	}
	return Number(sum / float64(count)), nil
}

func (bf *BuiltInFunctions) MIN(args ...Value) (Value, error) {
	return bf.extreme("MIN", args, math.Min)
}

func (bf *BuiltInFunctions) MAX(args ...Value) (Value, error) {
	return bf.extreme("MAX", args, math.Max)
}

func (bf *BuiltInFunctions) extreme(name string, args []Value, pick func(a, b float64) float64) (Value, error) {
	if len(args) == 0 {
		return Number(0), nil
	}
	result, err := numberArg(name, args, 0)
	if err != nil {
		return Null(), err
	}
	for i := 1; i < len(args); i++ {
		num, err := numberArg(name, args, i)
		if err != nil {
			return Null(), err
		}
		result = pick(result, num)
	}
	return Number(result), nil
}

// COUNT returns the number of arguments, nulls included
func (bf *BuiltInFunctions) COUNT(args ...Value) (Value, error) {
	return Number(float64(len(args))), nil
}

// COUNTA counts arguments that are not null
func (bf *BuiltInFunctions) COUNTA(args ...Value) (Value, error) {
	count := 0
	for _, arg := range args {
		if !arg.IsNull() {
			count++
		}
	}
	return Number(float64(count)), nil
}

func (bf *BuiltInFunctions) MEDIAN(args ...Value) (Value, error) {
	nums := make([]float64, 0, len(args))
	for _, arg := range args {
		if arg.IsNull() {
			continue
		}
		if num, ok := toNumber(arg); ok && !math.IsNaN(num) {
			nums = append(nums, num)
		}
	}
	if len(nums) == 0 {
		return Null(), NewFormulaError(ErrorCodeNum, "MEDIAN has no numeric values")
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 0 {
		return Number((nums[mid-1] + nums[mid]) / 2), nil
	}
	return Number(nums[mid]), nil
}

func (bf *BuiltInFunctions) ROUND(args ...Value) (Value, error) {
	if err := checkArgs("ROUND", args, 1, 2); err != nil {
		return Null(), err
	}
	num, err := numberArg("ROUND", args, 0)
	if err != nil {
		return Null(), err
	}
	places := 0.0
	if len(args) == 2 {
		if places, err = numberArg("ROUND", args, 1); err != nil {
			return Null(), err
		}
	}
	return Number(roundTo(num, int(places))), nil
}

// roundTo rounds half away from zero at the given number of decimals
func roundTo(num float64, places int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return num
	}
	multiplier := math.Pow(10, float64(places))
	rounded := math.Round(num*multiplier) / multiplier
	if math.IsInf(rounded, 0) || math.IsNaN(rounded) {
		return num
	}
	return rounded
}

func (bf *BuiltInFunctions) unaryMath(name string, args []Value, fn func(float64) float64) (Value, error) {
	if err := checkArgs(name, args, 1, 1); err != nil {
		return Null(), err
	}
	num, err := numberArg(name, args, 0)
	if err != nil {
		return Null(), err
	}
	return Number(fn(num)), nil
}

func (bf *BuiltInFunctions) FLOOR(args ...Value) (Value, error) {
	return bf.unaryMath("FLOOR", args, math.Floor)
}

func (bf *BuiltInFunctions) CEIL(args ...Value) (Value, error) {
	return bf.unaryMath("CEIL", args, math.Ceil)
}

func (bf *BuiltInFunctions) ABS(args ...Value) (Value, error) {
	return bf.unaryMath("ABS", args, math.Abs)
}

func (bf *BuiltInFunctions) SQRT(args ...Value) (Value, error) {
	if err := checkArgs("SQRT", args, 1, 1); err != nil {
		return Null(), err
	}
	num, err := numberArg("SQRT", args, 0)
	if err != nil {
		return Null(), err
	}
	if num < 0 {
		return Null(), NewFormulaError(ErrorCodeNum, "SQRT requires a non-negative argument")
	}
	return Number(math.Sqrt(num)), nil
}

func (bf *BuiltInFunctions) POW(args ...Value) (Value, error) {
	if err := checkArgs("POW", args, 2, 2); err != nil {
		return Null(), err
	}
	base, err := numberArg("POW", args, 0)
	if err != nil {
		return Null(), err
	}
	exp, err := numberArg("POW", args, 1)
	if err != nil {
		return Null(), err
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return Null(), NewFormulaError(ErrorCodeNum, "POW result is not a finite number")
	}
	return Number(result), nil
}

func (bf *BuiltInFunctions) MOD(args ...Value) (Value, error) {
	if err := checkArgs("MOD", args, 2, 2); err != nil {
		return Null(), err
	}
	dividend, err := numberArg("MOD", args, 0)
	if err != nil {
		return Null(), err
	}
	divisor, err := numberArg("MOD", args, 1)
	if err != nil {
		return Null(), err
	}
	if divisor == 0 {
		return Null(), NewFormulaError(ErrorCodeDiv0, "Division by zero")
	}
	return Number(math.Mod(dividend, divisor)), nil
}

func (bf *BuiltInFunctions) PI(args ...Value) (Value, error) {
	if err := checkArgs("PI", args, 0, 0); err != nil {
		return Null(), err
	}
	return Number(math.Pi), nil
}

func (bf *BuiltInFunctions) CONCAT(args ...Value) (Value, error) {
	var result strings.Builder
	for _, arg := range args {
		result.WriteString(toText(arg))
	}
	return Text(result.String()), nil
}

func (bf *BuiltInFunctions) textFunc(name string, args []Value, fn func(string) string) (Value, error) {
	if err := checkArgs(name, args, 1, 1); err != nil {
		return Null(), err
	}
	return Text(fn(toText(args[0]))), nil
}

func (bf *BuiltInFunctions) UPPER(args ...Value) (Value, error) {
	return bf.textFunc("UPPER", args, cases.Upper(language.Und).String)
}

func (bf *BuiltInFunctions) LOWER(args ...Value) (Value, error) {
	return bf.textFunc("LOWER", args, cases.Lower(language.Und).String)
}

func (bf *BuiltInFunctions) PROPER(args ...Value) (Value, error) {
	return bf.textFunc("PROPER", args, cases.Title(language.Und).String)
}

func (bf *BuiltInFunctions) TRIM(args ...Value) (Value, error) {
	return bf.textFunc("TRIM", args, strings.TrimSpace)
}

func (bf *BuiltInFunctions) LEN(args ...Value) (Value, error) {
	if err := checkArgs("LEN", args, 1, 1); err != nil {
		return Null(), err
	}
	return Number(float64(len([]rune(toText(args[0]))))), nil
}

// lengthArg reads an optional non-negative character count, clamped to
// limit
func lengthArg(name string, args []Value, i int, def int, limit int) (int, error) {
	if i >= len(args) {
		return min(def, limit), nil
	}
	n, err := numberArg(name, args, i)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s requires a non-negative length", name))
	}
	if n >= float64(limit) {
		return limit, nil
	}
	return int(n), nil
}

func (bf *BuiltInFunctions) LEFT(args ...Value) (Value, error) {
	if err := checkArgs("LEFT", args, 1, 2); err != nil {
		return Null(), err
	}
	runes := []rune(toText(args[0]))
	n, err := lengthArg("LEFT", args, 1, 1, len(runes))
	if err != nil {
		return Null(), err
	}
	return Text(string(runes[:n])), nil
}

func (bf *BuiltInFunctions) RIGHT(args ...Value) (Value, error) {
	if err := checkArgs("RIGHT", args, 1, 2); err != nil {
		return Null(), err
	}
	runes := []rune(toText(args[0]))
	n, err := lengthArg("RIGHT", args, 1, 1, len(runes))
	if err != nil {
		return Null(), err
	}
	return Text(string(runes[len(runes)-n:])), nil
}

// MID takes a 1-based start position
func (bf *BuiltInFunctions) MID(args ...Value) (Value, error) {
	if err := checkArgs("MID", args, 3, 3); err != nil {
		return Null(), err
	}
	start, err := numberArg("MID", args, 1)
	if err != nil {
		return Null(), err
	}
	if start < 1 {
		return Null(), NewFormulaError(ErrorCodeValue, "MID requires a start position of at least 1")
	}
	runes := []rune(toText(args[0]))
	if start >= float64(len(runes)+1) {
		if _, err := lengthArg("MID", args, 2, 0, 0); err != nil {
			return Null(), err
		}
		return Text(""), nil
	}
	from := int(start) - 1
	n, err := lengthArg("MID", args, 2, 0, len(runes)-from)
	if err != nil {
		return Null(), err
	}
	return Text(string(runes[from : from+n])), nil
}

func (bf *BuiltInFunctions) NOW(args ...Value) (Value, error) {
	if err := checkArgs("NOW", args, 0, 0); err != nil {
		return Null(), err
	}
	return DateTime(bf.clock.Now()), nil
}

func (bf *BuiltInFunctions) TODAY(args ...Value) (Value, error) {
	if err := checkArgs("TODAY", args, 0, 0); err != nil {
		return Null(), err
	}
	now := bf.clock.Now()
	return DateTime(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())), nil
}

func (bf *BuiltInFunctions) DATE(args ...Value) (Value, error) {
	if err := checkArgs("DATE", args, 3, 3); err != nil {
		return Null(), err
	}
	parts := make([]int, 3)
	for i := range parts {
		num, err := numberArg("DATE", args, i)
		if err != nil {
			return Null(), err
		}
		parts[i] = int(num)
	}
	loc := bf.clock.Now().Location()
	return DateTime(time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, loc)), nil
}

// toTime interprets a value as an instant: datetimes pass through, numbers
// are Unix milliseconds and text is parsed in the clock's location.
func (bf *BuiltInFunctions) toTime(name string, v Value) (time.Time, error) {
	switch v.Kind() {
	case KindDateTime:
		return v.t, nil
	case KindNumber:
		return time.UnixMilli(int64(v.num)).In(bf.clock.Now().Location()), nil
	case KindText:
		t, err := dateparse.ParseIn(strings.TrimSpace(v.str), bf.clock.Now().Location())
		if err != nil {
			return time.Time{}, NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s: cannot parse date %q", name, v.str))
		}
		return t, nil
	}
	return time.Time{}, NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s requires a date argument", name))
}

func (bf *BuiltInFunctions) datePart(name string, args []Value, part func(time.Time) int) (Value, error) {
	if err := checkArgs(name, args, 1, 1); err != nil {
		return Null(), err
	}
	t, err := bf.toTime(name, args[0])
	if err != nil {
		return Null(), err
	}
	return Number(float64(part(t))), nil
}

func (bf *BuiltInFunctions) YEAR(args ...Value) (Value, error) {
	return bf.datePart("YEAR", args, func(t time.Time) int { return t.Year() })
}

func (bf *BuiltInFunctions) MONTH(args ...Value) (Value, error) {
	return bf.datePart("MONTH", args, func(t time.Time) int { return int(t.Month()) })
}

func (bf *BuiltInFunctions) DAY(args ...Value) (Value, error) {
	return bf.datePart("DAY", args, func(t time.Time) int { return t.Day() })
}

// IF is normally evaluated lazily by the call node; this eager form only
// runs when the function value is invoked directly.
func (bf *BuiltInFunctions) IF(args ...Value) (Value, error) {
	if err := checkArgs("IF", args, 2, 3); err != nil {
		return Null(), err
	}
	if isTruthy(args[0]) {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return Boolean(false), nil
}

func (bf *BuiltInFunctions) IFERROR(args ...Value) (Value, error) {
	if err := checkArgs("IFERROR", args, 2, 2); err != nil {
		return Null(), err
	}
	if args[0].IsError() {
		return args[1], nil
	}
	return args[0], nil
}

func (bf *BuiltInFunctions) AND(args ...Value) (Value, error) {
	for _, arg := range args {
		if !isTruthy(arg) {
			return Boolean(false), nil
		}
	}
	return Boolean(true), nil
}

func (bf *BuiltInFunctions) OR(args ...Value) (Value, error) {
	for _, arg := range args {
		if isTruthy(arg) {
			return Boolean(true), nil
		}
	}
	return Boolean(false), nil
}

func (bf *BuiltInFunctions) NOT(args ...Value) (Value, error) {
	if err := checkArgs("NOT", args, 1, 1); err != nil {
		return Null(), err
	}
	return Boolean(!isTruthy(args[0])), nil
}

func (bf *BuiltInFunctions) ISNULL(args ...Value) (Value, error) {
	if err := checkArgs("ISNULL", args, 1, 1); err != nil {
		return Null(), err
	}
	return Boolean(args[0].IsNull()), nil
}

// ISEMPTY is true for null and for the empty string
func (bf *BuiltInFunctions) ISEMPTY(args ...Value) (Value, error) {
	if err := checkArgs("ISEMPTY", args, 1, 1); err != nil {
		return Null(), err
	}
	v := args[0]
	return Boolean(v.IsNull() || (v.Kind() == KindText && v.str == "")), nil
}

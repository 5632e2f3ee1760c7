package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which member of the Value union is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindBoolean
	KindDateTime
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindDateTime:
		return "datetime"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Value is the tagged value flowing through operators and functions. the
// zero Value is Null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	t    time.Time
	err  *FormulaError
}

func Null() Value                { return Value{} }
func Number(f float64) Value     { return Value{kind: KindNumber, num: f} }
func Text(s string) Value        { return Value{kind: KindText, str: s} }
func Boolean(b bool) Value       { return Value{kind: KindBoolean, b: b} }
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// ErrorValue wraps a formula error so it can be handed back as a cell value.
func ErrorValue(err *FormulaError) Value {
	return Value{kind: KindError, err: err}
}

// ValueOf converts an arbitrary host value (typically a row field) into a
// Value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case bool:
		return Boolean(x)
	case time.Time:
		return DateTime(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return DateTime(*x)
	case *FormulaError:
		return ErrorValue(x)
	case fmt.Stringer:
		return Text(x.String())
	case error:
		var fe *FormulaError
		if errors.As(x, &fe) {
			return ErrorValue(fe)
		}
		return ErrorValue(NewFormulaError(ErrorCodeOther, x.Error()))
	default:
		return Text(fmt.Sprint(x))
	}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsError() bool { return v.kind == KindError }
func (v Value) Err() *FormulaError {
	return v.err
}

// Float returns the number held by a Number value.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Bool returns the boolean held by a Boolean value.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

// Time returns the instant held by a DateTime value.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDateTime {
		return time.Time{}, false
	}
	return v.t, true
}

// Interface unwraps the value into its natural Go representation.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.str
	case KindBoolean:
		return v.b
	case KindDateTime:
		return v.t
	case KindError:
		return v.err
	}
	return nil
}

// String renders the value the way text coercion does.
func (v Value) String() string {
	return toText(v)
}

// MarshalJSON encodes the natural JSON form: numbers, strings, booleans,
// null, RFC3339 text for datetimes and the error code text for errors.
// non-finite numbers are encoded as text.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return snapshotJSON.Marshal(formatNumber(v.num))
		}
		return []byte(strconv.FormatFloat(v.num, 'g', -1, 64)), nil
	case KindText:
		return snapshotJSON.Marshal(v.str)
	case KindBoolean:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindDateTime, KindError:
		return snapshotJSON.Marshal(toText(v))
	}
	return []byte("null"), nil
}

// Equal reports structural equality. numbers compare by value, so NaN is
// never equal to itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.str == o.str
	case KindBoolean:
		return v.b == o.b
	case KindDateTime:
		return v.t.Equal(o.t)
	case KindError:
		return v.err.Code == o.err.Code
	}
	return false
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBoolean:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindNull:
		return 0, true
	case KindText:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, true
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case KindDateTime:
		return float64(v.t.UnixMilli()), true
	}
	return 0, false
}

// toText converts value to its text form
func toText(v Value) string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindText:
		return v.str
	case KindBoolean:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindDateTime:
		return v.t.Format(time.RFC3339)
	case KindError:
		return ErrorMapper[v.err.Code]
	}
	return ""
}

// isTruthy checks if value is truthy
func isTruthy(v Value) bool {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindText:
		return v.str != ""
	case KindDateTime:
		return true
	}
	return false
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// compareValues compares two values. returns -1 if left < right, 0 if
// equal, 1 if left > right and ok=false if the values are not comparable.
func compareValues(left, right Value) (int, bool) {
	if left.kind == KindNull && right.kind == KindNull {
		return 0, true
	}

	if left.kind == KindDateTime && right.kind == KindDateTime {
		return left.t.Compare(right.t), true
	}

	if left.kind == KindBoolean && right.kind == KindBoolean {
		switch {
		case left.b == right.b:
			return 0, true
		case !left.b:
			return -1, true
		}
		return 1, true
	}

	// numeric comparison when both sides coerce. text vs text stays textual
	// so "10" < "9" behaves like a string compare.
	if !(left.kind == KindText && right.kind == KindText) {
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if lok && rok {
			switch {
			case ln < rn:
				return -1, true
			case ln > rn:
				return 1, true
			case ln == rn:
				return 0, true
			}
			return 0, false // NaN
		}
	}

	if left.kind == KindError || right.kind == KindError {
		return 0, false
	}
	return strings.Compare(toText(left), toText(right)), true
}

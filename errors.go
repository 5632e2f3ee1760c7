package formula

import "fmt"

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - null operand where a value was required
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - circular or unresolvable column reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function or field name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 7 // #N/A - wrong number of arguments for function
	ErrorCodeOther ErrorCode = 8 // #ERROR! - all other errors
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeOther: "#ERROR!",
}

// FormulaError preserves the error code for display in cells. Position is
// the rune offset in the formula text where the problem was found, or -1.
type FormulaError struct {
	Code     ErrorCode
	Message  string
	Position int
}

func (e *FormulaError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.Code]
}

func NewFormulaError(code ErrorCode, message string) *FormulaError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &FormulaError{
		Code:     code,
		Message:  message,
		Position: -1,
	}
}

func newFormulaErrorAt(code ErrorCode, pos int, format string, args ...any) *FormulaError {
	err := NewFormulaError(code, fmt.Sprintf(format, args...))
	err.Position = pos
	return err
}

// AppErrorCode represents gRPC-style error codes for application-level
// errors, as opposed to errors produced while evaluating a formula.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, such
	// as an empty function name or a column without a field.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., a computed column) was
	// not found.
	NotFound AppErrorCode = 5

	// FailedPrecondition indicates operation was rejected because the
	// engine is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means an evaluation walked past the configured maximum
	// dependency depth.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

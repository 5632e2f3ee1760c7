package formula

import (
	"strconv"
	"strings"
	"unicode"
)

// TokenType represents the lexical class of a formula token
type TokenType int

const (
	TokenFunction TokenType = iota
	TokenOperator
	TokenField
	TokenValue
	TokenParenthesis
	// TokenInvalid marks input the lexer could not classify (a stray
	// character or an unterminated string). it is kept in the stream so the
	// parser can report it with a position.
	TokenInvalid
)

func (t TokenType) String() string {
	switch t {
	case TokenFunction:
		return "function"
	case TokenOperator:
		return "operator"
	case TokenField:
		return "field"
	case TokenValue:
		return "value"
	case TokenParenthesis:
		return "parenthesis"
	case TokenInvalid:
		return "invalid"
	}
	return "unknown"
}

// character classification constants. slightly easier to read.
const (
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charUnderscore = '_'
	charExclaim    = '!'
	charPipe       = '|'
)

// twoCharOperators are checked before single characters so "<=" never
// lexes as "<" followed by "=".
var twoCharOperators = []string{"<=", ">=", "<>", "==", "!=", "&&", "||"}

// Token represents a lexical token with position information. Value holds
// the normalized text (upper-cased function names, unquoted string
// content); Literal holds the parsed value of TokenValue tokens.
type Token struct {
	Type    TokenType
	Value   string
	Literal Value
	Pos     int // rune position in input
}

// Lexer tokenizes formula expressions. it is best-effort and never fails.
type Lexer struct {
	input  string
	runes  []rune // UTF-8 aware representation
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given formula input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		runes:  []rune(input),
		tokens: []Token{},
	}
}

// Tokenize is shorthand for NewLexer(formula).Tokenize().
func Tokenize(formula string) []Token {
	return NewLexer(formula).Tokenize()
}

// Tokenize tokenizes the entire input. an optional leading '=' is skipped.
func (l *Lexer) Tokenize() []Token {
	l.pos = 0
	l.tokens = l.tokens[:0]

	l.skipWhitespace()
	if l.pos < len(l.runes) && l.runes[l.pos] == charEqual {
		l.pos++
	}

	for {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		l.tokens = append(l.tokens, l.nextToken())
	}

	return l.tokens
}

// nextToken scans one token starting at the current position
func (l *Lexer) nextToken() Token {
	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	if l.isIdentStart(ch) {
		return l.scanIdentifier()
	}

	switch ch {
	case charLParen, charRParen:
		l.pos++
		return Token{Type: TokenParenthesis, Value: string(ch), Pos: startPos}
	}

	for _, op := range twoCharOperators {
		if l.hasPrefix(op) {
			l.pos += 2
			return Token{Type: TokenOperator, Value: op, Pos: startPos}
		}
	}

	switch ch {
	case charPlus, charMinus, charAsterisk, charSlash, charComma,
		charEqual, charLess, charGreater, charExclaim, charAmpersand, charPipe:
		l.pos++
		return Token{Type: TokenOperator, Value: string(ch), Pos: startPos}
	}

	l.pos++
	return Token{Type: TokenInvalid, Value: string(ch), Pos: startPos}
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return 0
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	if l.pos+offset >= len(l.runes) {
		return 0
	}
	return l.runes[l.pos+offset]
}

func (l *Lexer) hasPrefix(s string) bool {
	i := l.pos
	for _, r := range s {
		if i >= len(l.runes) || l.runes[i] != r {
			return false
		}
		i++
	}
	return true
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.runes[l.pos] {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isIdentStart(ch rune) bool {
	return ch == charUnderscore || unicode.IsLetter(ch)
}

func (l *Lexer) isIdentPart(ch rune) bool {
	return l.isIdentStart(ch) || unicode.IsDigit(ch) || ch == charPeriod
}

// scanNumber scans digits, an optional fraction and an optional exponent.
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.isDigit(l.current()) {
		l.pos++
	}
	if l.current() == charPeriod {
		l.pos++
		for l.isDigit(l.current()) {
			l.pos++
		}
	}
	// exponent only when followed by digits, otherwise "2e" stays "2" then
	// a field named "e"
	if c := l.current(); c == 'e' || c == 'E' {
		n := 1
		if s := l.peek(1); s == charPlus || s == charMinus {
			n = 2
		}
		if l.isDigit(l.peek(n)) {
			l.pos += n
			for l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	text := string(l.runes[startPos:l.pos])
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{Type: TokenInvalid, Value: text, Pos: startPos}
	}
	return Token{Type: TokenValue, Value: text, Literal: Number(num), Pos: startPos}
}

// scanString scans a double-quoted string. a doubled quote inside the
// string is an escaped quote.
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.runes) {
		ch := l.runes[l.pos]
		if ch == charQuote {
			if l.peek(1) == charQuote {
				sb.WriteRune(charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			s := sb.String()
			return Token{Type: TokenValue, Value: s, Literal: Text(s), Pos: startPos}
		}
		sb.WriteRune(ch)
		l.pos++
	}

	// unterminated
	return Token{Type: TokenInvalid, Value: string(l.runes[startPos:]), Pos: startPos}
}

// scanIdentifier scans a name and classifies it as a function (when the
// next non-blank character is '('), a keyword literal, or a field.
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos
	for l.pos < len(l.runes) && l.isIdentPart(l.runes[l.pos]) {
		l.pos++
	}
	name := string(l.runes[startPos:l.pos])

	lookahead := l.pos
	for lookahead < len(l.runes) && unicode.IsSpace(l.runes[lookahead]) {
		lookahead++
	}
	if lookahead < len(l.runes) && l.runes[lookahead] == charLParen {
		return Token{Type: TokenFunction, Value: strings.ToUpper(name), Pos: startPos}
	}

	switch strings.ToUpper(name) {
	case "TRUE":
		return Token{Type: TokenValue, Value: "TRUE", Literal: Boolean(true), Pos: startPos}
	case "FALSE":
		return Token{Type: TokenValue, Value: "FALSE", Literal: Boolean(false), Pos: startPos}
	case "NULL":
		return Token{Type: TokenValue, Value: "NULL", Literal: Null(), Pos: startPos}
	}

	return Token{Type: TokenField, Value: name, Pos: startPos}
}

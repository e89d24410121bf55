/**
 * Copyright 2021 The LineDB Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package frontend

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

//
// This lexer is based on the design of the lexer in the Go template engine.
// For more check this presentation by Rob Pike: https://www.youtube.com/watch?v=HxaD_trXwRE
//
// The state machine is driven by nextItem instead of a goroutine so that a
// parser which stops early doesn't leave a blocked lexer behind.
//

// item represents a single token
type item struct {
	typ itemType
	val string
}

// itemType is a SQL token type
type itemType int

const (
	itemError itemType = iota
	itemEOF
	itemWhitespace
	itemSingleLineComment // --

	// literals
	itemIdentifier // field name, table name
	itemTrue
	itemFalse
	itemInteger
	itemFloat
	itemString  // "hello" or 'hello'
	itemKeyword // SELECT, INSERT, ..

	// symbols
	itemPeriod     // '.'
	itemComma      // ','
	itemLeftParen  // '('
	itemRightParen // ')'
	itemSemicolon  // ';'

	// operators
	itemEqual              // '='
	itemGreaterThan        // '>'
	itemLessThan           // '<'
	itemPlus               // '+'
	itemMinus              // '-'
	itemAsterisk           // '*'
	itemSlash              // '/'
	itemCaret              // '^'
	itemPercent            // '%'
	itemExclamation        // '!'
	itemQuestionMark       // '?'
	itemNotEqual           // "!=" or "<>"
	itemLessThanEqualTo    // "<="
	itemGreaterThanEqualTo // ">="
	itemAndAnd             // "&&"
	itemOrOr               // "||"
)

const eof = -1

// itemNames are the names of token types used in parser errors
var itemNames = map[itemType]string{
	itemError:             "error",
	itemEOF:               "end of input",
	itemWhitespace:        "whitespace",
	itemSingleLineComment: "comment",

	itemIdentifier: "identifier",
	itemTrue:       "TRUE",
	itemFalse:      "FALSE",
	itemInteger:    "integer",
	itemFloat:      "float",
	itemString:     "string",
	itemKeyword:    "keyword",

	itemPeriod:     "'.'",
	itemComma:      "','",
	itemLeftParen:  "'('",
	itemRightParen: "')'",
	itemSemicolon:  "';'",

	itemEqual:              "'='",
	itemGreaterThan:        "'>'",
	itemLessThan:           "'<'",
	itemPlus:               "'+'",
	itemMinus:              "'-'",
	itemAsterisk:           "'*'",
	itemSlash:              "'/'",
	itemCaret:              "'^'",
	itemPercent:            "'%'",
	itemExclamation:        "'!'",
	itemQuestionMark:       "'?'",
	itemNotEqual:           "'!='",
	itemLessThanEqualTo:    "'<='",
	itemGreaterThanEqualTo: "'>='",
	itemAndAnd:             "'&&'",
	itemOrOr:               "'||'",
}

func (it itemType) String() string {
	if name, ok := itemNames[it]; ok {
		return name
	}
	return fmt.Sprintf("item(%d)", int(it))
}

// String renders the token for error messages, long values are cut at 10 characters.
func (i item) String() string {
	switch i.typ {
	case itemError:
		return i.val
	case itemEOF, itemWhitespace:
		return i.typ.String()
	}

	if len(i.val) > 10 {
		return fmt.Sprintf("%s %.10q...", i.typ, i.val)
	}
	return fmt.Sprintf("%s %q", i.typ, i.val)
}

type keywordType int

const (
	keywordInvalid keywordType = iota
	keywordCreate
	keywordDrop
	keywordTruncate
	keywordAlter
	keywordDatabase
	keywordTable
	keywordSelect
	keywordDistinct
	keywordInsert
	keywordInto
	keywordValues
	keywordUpdate
	keywordSet
	keywordDelete
	keywordFrom
	keywordAs
	keywordWhere
	keywordGroup
	keywordHaving
	keywordOrder
	keywordBy
	keywordAsc
	keywordDesc
	keywordLimit
	keywordOffset
	keywordExplain
	keywordAnd
	keywordOr
	keywordNot
	keywordIs
	keywordNull
	keywordPrimary
	keywordKey
	keywordUnique
	keywordIndex
	keywordReferences
	keywordDefault

	// data types
	keywordBool
	keywordBoolean
	keywordInt
	keywordInteger
	keywordFloat
	keywordDouble
	keywordString
	keywordText
	keywordVarchar
	keywordChar
)

// set of keywords
var keywords = map[string]keywordType{
	"CREATE":     keywordCreate,
	"DROP":       keywordDrop,
	"TRUNCATE":   keywordTruncate,
	"ALTER":      keywordAlter,
	"DATABASE":   keywordDatabase,
	"TABLE":      keywordTable,
	"SELECT":     keywordSelect,
	"DISTINCT":   keywordDistinct,
	"INSERT":     keywordInsert,
	"INTO":       keywordInto,
	"VALUES":     keywordValues,
	"UPDATE":     keywordUpdate,
	"SET":        keywordSet,
	"DELETE":     keywordDelete,
	"FROM":       keywordFrom,
	"AS":         keywordAs,
	"WHERE":      keywordWhere,
	"GROUP":      keywordGroup,
	"HAVING":     keywordHaving,
	"ORDER":      keywordOrder,
	"BY":         keywordBy,
	"ASC":        keywordAsc,
	"DESC":       keywordDesc,
	"LIMIT":      keywordLimit,
	"OFFSET":     keywordOffset,
	"EXPLAIN":    keywordExplain,
	"AND":        keywordAnd,
	"OR":         keywordOr,
	"NOT":        keywordNot,
	"IS":         keywordIs,
	"NULL":       keywordNull,
	"PRIMARY":    keywordPrimary,
	"KEY":        keywordKey,
	"UNIQUE":     keywordUnique,
	"INDEX":      keywordIndex,
	"REFERENCES": keywordReferences,
	"DEFAULT":    keywordDefault,

	// data types
	"BOOL":    keywordBool,
	"BOOLEAN": keywordBoolean,
	"INT":     keywordInt,
	"INTEGER": keywordInteger,
	"FLOAT":   keywordFloat,
	"DOUBLE":  keywordDouble,
	"STRING":  keywordString,
	"TEXT":    keywordText,
	"VARCHAR": keywordVarchar,
	"CHAR":    keywordChar,
}

// lexer is the sql lexer state machine responsible for tokenizing the input.
type lexer struct {
	name  string    // for error reporting
	input string    // the string being scanned right now
	start int       // start position of the current item
	pos   int       // current position in the input
	width int       // width of last token read from the input
	state stateFn   // next state to run; nil once the input is exhausted
	items chan item // channel of scanned items. tokens are emitted via this
}

// stateFn is a function that takes a lexer and returns the new stateFn
type stateFn func(*lexer) stateFn

// predFn is a function to do predicate based filtering/traversal
type predFn func(rune) bool

//
// Helper functions
//

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width =
		utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	return r
}

// ignore skips over the pending input before this point.
func (l *lexer) ignore() {
	l.start = l.pos
}

// backup steps back one rune.
// Can be called only once per call of next.
func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) backupBy(length int) {
	if l.pos < length {
		panic(fmt.Errorf("frontend::lexer::backupBy: tried to backup by more than pos length"))
	}

	l.pos -= length
}

// peek returns but does not consume
// the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// peekBy returns but does not consume
// the next 'length' runes in the input.
func (l *lexer) peekBy(length int) (res string) {
	width := 0
	var buf []rune

	for i := 0; i < length; i++ {
		r := l.next()
		if r == eof {
			break
		}
		buf = append(buf, r)
		width += l.width
	}

	// backup by total width
	l.backupBy(width)

	res = string(buf[:])
	return res
}

// accept consumes the next rune
// if it's from the valid set.
func (l *lexer) accept(valid string) bool {
	if strings.ContainsRune(valid, l.next()) {
		return true
	}
	l.backup()
	return false
}

// acceptWhile consumes runes while the predFn returns true
// it returns the number of runes accepted
func (l *lexer) acceptWhile(p predFn) (count int) {
	for p(l.next()) {
		count++
	}
	l.backup()
	return count
}

func (l *lexer) acceptUntil(p predFn) (count int) {
	ch := l.next()
	for ch != eof && !p(ch) {
		count++
		ch = l.next()
	}
	l.backup()
	return count
}

// errorf returns an error token and terminates the scan by passing
// back a nil pointer that will be the next state, terminating l.nextItem.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items <- item{itemError, fmt.Sprintf(format, args...)}
	return nil
}

// emit passes an item back to the client.
func (l *lexer) emit(t itemType) {
	l.items <- item{t, l.input[l.start:l.pos]}
	l.start = l.pos
}

// isWhitespace checks if a rune is a whitespace
func isWhitespace(ch rune) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }

// isAlphaNumeric checks if the rune is a letter, digit or underscore.
func isAlphaNumeric(ch rune) bool { return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' }

// isDigit checks if the rune is a digit.
func isDigit(ch rune) bool { return (ch >= '0' && ch <= '9') }

// isEndOfLine checks if the char represents the end of line.
func isEndOfLine(ch rune) bool { return ch == '\n' || ch == eof || ch == '\r' }

// isOperator checks if the rune is an operator.
// note that this only considers single char operators.
func isOperator(ch rune) bool {
	return ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '=' || ch == '>' || ch == '<' || ch == '^' || ch == '%' || ch == '!' || ch == '?'
}

//
// Public functions used by the consumer of the lexer, in our case the parser.
//

// nextItem returns the next item from the input.
// Once the state machine is done it keeps returning EOF.
func (l *lexer) nextItem() item {
	for {
		select {
		case it := <-l.items:
			return it
		default:
			if l.state == nil {
				return item{itemEOF, ""}
			}
			l.state = l.state(l)
		}
	}
}

// newLexer creates a new lexer for the input
func newLexer(name, input string) *lexer {
	return &lexer{
		name:  name,
		input: input,
		state: lexWhitespace,
		items: make(chan item, 3), // a state emits at most three items
	}
}

//
// State functions - Internal
//

func lexWhitespace(l *lexer) stateFn {
	wcount := l.acceptWhile(isWhitespace)
	if wcount > 0 {
		l.emit(itemWhitespace)
	}

	next := l.peek()
	tNext := l.peekBy(2)

	switch {
	case next == eof:
		l.emit(itemEOF)
		return nil

	case tNext == "--":
		return lexSingleLineComment

	case tNext == "!=" || tNext == "<>":
		l.next()
		l.next()
		l.emit(itemNotEqual)
		return lexWhitespace

	case tNext == ">=":
		l.next()
		l.next()
		l.emit(itemGreaterThanEqualTo)
		return lexWhitespace

	case tNext == "<=":
		l.next()
		l.next()
		l.emit(itemLessThanEqualTo)
		return lexWhitespace

	case tNext == "&&":
		l.next()
		l.next()
		l.emit(itemAndAnd)
		return lexWhitespace

	case tNext == "||":
		l.next()
		l.next()
		l.emit(itemOrOr)
		return lexWhitespace

	case next == '(':
		l.next()
		l.emit(itemLeftParen)
		return lexWhitespace

	case next == ')':
		l.next()
		l.emit(itemRightParen)
		return lexWhitespace

	case next == ',':
		l.next()
		l.emit(itemComma)
		return lexWhitespace

	case next == ';':
		l.next()
		l.emit(itemSemicolon)
		return lexWhitespace

	case next == '.':
		l.next()
		l.emit(itemPeriod)
		return lexWhitespace

	case isOperator(next):
		return lexOperator

	case next == '"' || next == '\'':
		return lexString

	case isDigit(next):
		return lexNumber

	case isAlphaNumeric(next):
		return lexIdentifierOrKeyword
	}

	return l.errorf("unknown rune: %q", next)
}

func lexSingleLineComment(l *lexer) stateFn {
	l.acceptUntil(isEndOfLine)
	l.emit(itemSingleLineComment)
	return lexWhitespace
}

// lexOperator scans singe rune operators
func lexOperator(l *lexer) stateFn {
	op := l.next()

	switch op {
	case '=':
		l.emit(itemEqual)

	case '>':
		l.emit(itemGreaterThan)

	case '<':
		l.emit(itemLessThan)

	case '+':
		l.emit(itemPlus)

	case '-':
		l.emit(itemMinus)

	case '*':
		l.emit(itemAsterisk)

	case '/':
		l.emit(itemSlash)

	case '^':
		l.emit(itemCaret)

	case '%':
		l.emit(itemPercent)

	case '!':
		l.emit(itemExclamation)

	case '?':
		l.emit(itemQuestionMark)

	default:
		return l.errorf("unknown rune: %c", op)
	}

	return lexWhitespace
}

// lexString scans a quoted string. A doubled quote inside the string escapes it.
func lexString(l *lexer) stateFn {
	quote := l.next() // opening quote

	for {
		r := l.next()

		if r == eof {
			return l.errorf("unclosed string. expected an end quote")
		} else if r == quote {
			if l.peek() == quote {
				l.next()
				continue
			}

			// found matching quote
			l.emit(itemString)
			return lexWhitespace
		}
	}
}

// lexNumber scans for a number. In case, an alphabet is found, it retracts and calls identifierOrKeyword.
func lexNumber(l *lexer) stateFn {
	count := 0
	count += l.acceptWhile(isDigit)

	// floating point
	isFloat := false
	if l.accept(".") {
		isFloat = true
		count += 1 + l.acceptWhile(isDigit)
	}

	if isAlphaNumeric(l.peek()) {
		l.backupBy(count)
		return lexIdentifierOrKeyword
	}

	if isFloat {
		l.emit(itemFloat)
	} else {
		l.emit(itemInteger)
	}
	return lexWhitespace
}

func lexIdentifierOrKeyword(l *lexer) stateFn {
	l.acceptWhile(isAlphaNumeric)

	val := strings.ToUpper(l.input[l.start:l.pos])
	switch {
	case val == "TRUE":
		l.emit(itemTrue)
	case val == "FALSE":
		l.emit(itemFalse)
	case keywords[val] != keywordInvalid:
		l.emit(itemKeyword)
	default:
		l.emit(itemIdentifier)
	}

	return lexWhitespace
}

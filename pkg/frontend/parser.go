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
	"strconv"
	"strings"
)

// Parser is responsible for parsing the sql string to AST
type Parser struct {
	name  string // only for error reporting and debugging
	lexer *lexer // the lexical scanner

	items []*item // buffered tokens from the lexer for peeking
	pos   int     // next item position in the items buffer

	err error // any error encountered during the parsing process
}

//
// Public functions
//

// Parse the input to an AST
func (p *Parser) Parse() (Statement, error) {
	st, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	p.nextTokenIf(func(it *item) bool {
		return it.typ == itemSemicolon
	})
	if _, err = p.nextTokenExpect(itemEOF); err != nil {
		return nil, err
	}
	return st, nil
}

// NewParser creates a parser for the given input
func NewParser(name, input string) *Parser {
	return &Parser{
		name:  name,
		lexer: newLexer(name, input),
		items: make([]*item, 0),
	}
}

// Parse is a shorthand for NewParser(name, input).Parse()
func Parse(input string) (Statement, error) {
	return NewParser("sql", input).Parse()
}

// ParseExpression parses a standalone expression such as a WHERE predicate.
func ParseExpression(input string) (Expression, error) {
	p := NewParser("expression", input)
	ex, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err = p.nextTokenExpect(itemEOF); err != nil {
		return nil, err
	}
	return ex, nil
}

//
// Internal functions
//

// parseStatements parses a sql statement.
// starting point of the core parsing process.
func (p *Parser) parseStatement() (Statement, error) {
	it := p.peek()
	if it == nil {
		return nil, p.err
	}

	switch it.typ {
	case itemKeyword:
		keyword := keywords[strings.ToUpper(it.val)]

		switch keyword {
		case keywordCreate, keywordDrop, keywordTruncate:
			return p.parseDDL()

		case keywordInsert:
			return p.parseInsert()
		case keywordUpdate:
			return p.parseUpdate()
		case keywordDelete:
			return p.parseDelete()
		case keywordSelect:
			return p.parseSelect()

		case keywordExplain:
			return p.parseExplain()

		default:
			return nil, fmt.Errorf("frontend::parser::parseStatement: unexpected keyword token %v", it.val)
		}

	default:
		return nil, fmt.Errorf("frontend::parser::parseStatement: unexpected token %v - %v; expected a keyword token", it.typ, it.val)
	}
}

// parseDDL parses a data definition langauge query.
// It assumes that the first token is a CREATE/DROP/TRUNCATE keyword
func (p *Parser) parseDDL() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}

	action := p.nextToken() // has to be CREATE/DROP/TRUNCATE
	table := p.nextToken()

	if !isKeyword(table, keywordTable) {
		return nil, fmt.Errorf("frontend::parser::parseDDL: expected keyword \"TABLE\"")
	}

	tableName, err := p.nextTokenIdentifier()
	if err != nil {
		return nil, fmt.Errorf("frontend::parser::parseDDL: expected table name")
	}

	if isKeyword(action, keywordCreate) {
		_, err = p.nextTokenExpect(itemLeftParen)
		if err != nil {
			return nil, err
		}

		var cols []*ColumnSpec
		for {
			col, err := p.parseSingleColumnSpec()
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)

			comma := p.nextTokenIf(func(it *item) bool {
				return it.typ == itemComma
			})
			if comma == nil { // last column spec
				break
			}
		}

		_, err = p.nextTokenExpect(itemRightParen)
		if err != nil {
			return nil, err
		}

		spec := NewTableSpec(0, tableName.val, cols)
		stmt := &CreateTableStatement{
			Spec: spec,
		}
		return stmt, nil
	} else if isKeyword(action, keywordDrop) {
		stmt := &DropTableStatement{TableName: tableName.val}
		return stmt, nil
	}

	stmt := &TruncateTableStatement{TableName: tableName.val}
	return stmt, nil
}

func (p *Parser) parseSingleColumnSpec() (*ColumnSpec, error) {
	if p.err != nil {
		return nil, p.err
	}

	colName, err := p.nextTokenIdentifier()
	if err != nil {
		return nil, err
	}

	colType, err := p.nextTokenKeyword()
	if err != nil {
		return nil, err
	}

	var typ FieldType
	switch keywords[strings.ToUpper(colType.val)] {
	case keywordBool, keywordBoolean:
		typ = FieldTypeBoolean

	case keywordInt, keywordInteger:
		typ = FieldTypeInteger

	case keywordFloat, keywordDouble:
		typ = FieldTypeFloat

	case keywordString, keywordText, keywordVarchar, keywordChar:
		typ = FieldTypeString

	default:
		return nil, fmt.Errorf("frontend::parser::parseSingleColumnSpec: expected data type for the column")
	}

	// optional length such as VARCHAR(64)
	if p.nextTokenIf(func(it *item) bool { return it.typ == itemLeftParen }) != nil {
		if _, err = p.nextTokenExpect(itemInteger); err != nil {
			return nil, err
		}
		if _, err = p.nextTokenExpect(itemRightParen); err != nil {
			return nil, err
		}
	}

	cs := &ColumnSpec{
		Name:     colName.val,
		Type:     typ,
		Nullable: true, // true by default
	}

	// column constraints such as nullable, unique..
	for {
		kwd := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemKeyword
		})
		if kwd == nil {
			break
		}

		switch keywords[strings.ToUpper(kwd.val)] {
		case keywordUnique:
			cs.Unique = true

		case keywordIndex:
			cs.Index = true

		case keywordNot:
			null, err := p.nextTokenKeyword()
			if err != nil || (null != nil && keywords[strings.ToUpper(null.val)] != keywordNull) {
				return nil, fmt.Errorf("frontend::parser::parseSingleColumnSpec: expected keyword NULL after NOT")
			}
			cs.Nullable = false

		case keywordNull:
			cs.Nullable = true

		case keywordPrimary:
			key, err := p.nextTokenKeyword()
			if err != nil || (key != nil && keywords[strings.ToUpper(key.val)] != keywordKey) {
				return nil, fmt.Errorf("frontend::parser::parseSingleColumnSpec: expected keyword KEY after PRIMARY")
			}
			cs.PrimaryKey = true
			cs.Nullable = false

		case keywordReferences:
			table, err := p.nextTokenIdentifier()
			if err != nil {
				return nil, fmt.Errorf("frontend::parser::parseSingleColumnSpec: expected table identifier after REFERENCES")
			}
			cs.References = table.val

		case keywordDefault:
			exp, err := p.parseExpression()
			if err != nil {
				return nil, fmt.Errorf("frontend::parser::parseSingleColumnSpec: expected expression after keyword DEFAULT. Found err: %v", err)
			}
			cs.Default = exp

		default:
			return nil, fmt.Errorf("frontend::parser::parseSingleColumnSpec: unknown keyword %s in the column specification", kwd.val)
		}
	}

	return cs, nil
}

// parseExpression parses an expression
// Grammar is based on: http://www.craftinginterpreters.com/parsing-expressions.html#recursive-descent-parsing
func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

// OR, ||
func (p *Parser) parseOr() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	ex, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		op := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemOrOr || isKeyword(i, keywordOr)
		})
		if op == nil {
			break
		}

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		ex = &BinaryOpExpression{Op: OperatorOrOr, L: ex, R: right}
	}

	return ex, p.err
}

// AND, &&
func (p *Parser) parseAnd() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	ex, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		op := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemAndAnd || isKeyword(i, keywordAnd)
		})
		if op == nil {
			break
		}

		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		ex = &BinaryOpExpression{Op: OperatorAndAnd, L: ex, R: right}
	}

	return ex, p.err
}

// NOT
func (p *Parser) parseNot() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	not := p.nextTokenIf(func(i *item) bool {
		return isKeyword(i, keywordNot)
	})
	if not != nil {
		ex, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return &UnaryOpExpression{Op: OperatorExclamation, Exp: ex}, nil
	}

	return p.parseEquality()
}

func (p *Parser) parseEquality() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	ex, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for {
		op := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemNotEqual || i.typ == itemEqual
		})
		if op == nil {
			break
		}

		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		ex = &BinaryOpExpression{Op: itemTypeToOperator[op.typ], L: ex, R: right}
	}

	return ex, p.err
}

func (p *Parser) parseComparison() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	ex, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		op := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemGreaterThan || i.typ == itemGreaterThanEqualTo || i.typ == itemLessThan || i.typ == itemLessThanEqualTo || isKeyword(i, keywordIs)
		})
		if op == nil {
			break
		}

		if op.typ == itemKeyword { // IS [NOT] NULL
			not := p.nextTokenIf(func(i *item) bool {
				return isKeyword(i, keywordNot)
			})
			null := p.nextToken()
			if !isKeyword(null, keywordNull) {
				p.err = fmt.Errorf("frontend::parser::parseComparison: expected keyword NULL after IS")
				return nil, p.err
			}

			ex = &IsNullExpression{Expr: ex, Not: not != nil}
			continue
		}

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		ex = &BinaryOpExpression{Op: itemTypeToOperator[op.typ], L: ex, R: right}
	}

	return ex, p.err
}

func (p *Parser) parseTerm() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	ex, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for {
		op := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemMinus || i.typ == itemPlus
		})
		if op == nil {
			break
		}

		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}

		ex = &BinaryOpExpression{Op: itemTypeToOperator[op.typ], L: ex, R: right}
	}

	return ex, p.err
}

func (p *Parser) parseFactor() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	ex, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemAsterisk || i.typ == itemSlash || i.typ == itemPercent || i.typ == itemCaret
		})
		if op == nil {
			break
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		ex = &BinaryOpExpression{Op: itemTypeToOperator[op.typ], L: ex, R: right}
	}

	return ex, p.err
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	// ! or -
	op := p.nextTokenIf(func(i *item) bool {
		return i.typ == itemExclamation || i.typ == itemMinus
	})
	if op != nil {
		ex, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &UnaryOpExpression{Op: itemTypeToOperator[op.typ], Exp: ex}, nil
	}

	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	if p.err != nil {
		return nil, p.err
	}

	op := p.nextTokenIf(func(i *item) bool {
		return i.typ == itemFalse || i.typ == itemTrue || i.typ == itemInteger || i.typ == itemFloat || i.typ == itemString || i.typ == itemLeftParen || i.typ == itemIdentifier || i.typ == itemAsterisk || isKeyword(i, keywordNull)
	})
	if op == nil {
		p.err = fmt.Errorf("frontend::parser::parsePrimary: expected a primary expression, found %v", p.peek())
		return nil, p.err
	}

	switch op.typ {
	case itemLeftParen:
		in, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		_, err = p.nextTokenExpect(itemRightParen)
		if err != nil {
			return nil, err
		}

		return &GroupingExpression{InExp: in}, nil

	case itemIdentifier:
		lp := p.nextTokenIf(func(i *item) bool {
			return i.typ == itemLeftParen
		})
		if lp != nil {
			return p.parseFunctionCall(op.val)
		}
		if IsBareFunction(op.val) {
			return &FunctionCallExpression{Name: strings.ToUpper(op.val)}, nil
		}

		return &IdentifierExpression{Identifier: op.val}, nil

	case itemAsterisk:
		return &IdentifierExpression{Identifier: "*"}, nil
	}

	exp := &ValueExpression{
		Val: &Value{},
	}

	switch op.typ {
	case itemFalse, itemTrue:
		val, err := strconv.ParseBool(strings.ToLower(op.val))
		if err != nil {
			return nil, err
		}

		exp.Val.Typ = FieldTypeBoolean
		exp.Val.Val = val

	case itemInteger:
		val, err := strconv.ParseInt(op.val, 10, 64)
		if err != nil {
			return nil, err
		}

		exp.Val.Typ = FieldTypeInteger
		exp.Val.Val = val

	case itemFloat:
		val, err := strconv.ParseFloat(op.val, 64)
		if err != nil {
			return nil, err
		}

		exp.Val.Typ = FieldTypeFloat
		exp.Val.Val = val

	case itemString:
		exp.Val.Typ = FieldTypeString
		exp.Val.Val = unquote(op.val)

	default: // NULL
		exp.Val.Typ = FieldTypeNull
	}

	return exp, nil
}

// parseFunctionCall parses the arguments of a function call.
// It assumes that the name and the left paren are consumed.
func (p *Parser) parseFunctionCall(name string) (Expression, error) {
	fc := &FunctionCallExpression{Name: strings.ToUpper(name)}

	rp := p.nextTokenIf(func(i *item) bool {
		return i.typ == itemRightParen
	})
	if rp != nil {
		return fc, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		fc.Args = append(fc.Args, arg)

		comma := p.nextTokenIf(func(it *item) bool {
			return it.typ == itemComma
		})
		if comma == nil { // last argument
			break
		}
	}

	if _, err := p.nextTokenExpect(itemRightParen); err != nil {
		return nil, err
	}
	return fc, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}

	expr := &SelectStatement{}
	_ = p.nextToken() // SELECT

	distinct := p.nextTokenIf(func(it *item) bool {
		return isKeyword(it, keywordDistinct)
	})
	expr.Distinct = distinct != nil

	// get selections - list of (expr * [AS output_name])
	var selections []*SelectionItem
	for {
		exp, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		iexp, ok := exp.(*IdentifierExpression)
		if !ok {
			p.err = fmt.Errorf("frontend::parser::parseSelect: expected an identifier in selection item")
			return nil, p.err
		}
		sel := &SelectionItem{Expr: iexp, OutputName: iexp.Identifier}

		as := p.nextTokenIf(func(it *item) bool {
			return isKeyword(it, keywordAs)
		})
		if as != nil {
			outputName, err := p.nextTokenIdentifier()
			if err != nil {
				return nil, err
			}
			sel.OutputName = outputName.val
		}
		selections = append(selections, sel)

		comma := p.nextTokenIf(func(it *item) bool {
			return it.typ == itemComma
		})
		if comma == nil { // last value
			break
		}
	}
	expr.Selections = selections

	from := p.nextToken()
	if !isKeyword(from, keywordFrom) {
		p.err = fmt.Errorf("frontend::parser::parseSelect: expected keyword \"FROM\"")
		return nil, p.err
	}
	fromItem := &Table{}
	tableName, err := p.nextTokenExpect(itemIdentifier)
	if err != nil {
		return nil, err
	}
	fromItem.Name = tableName.val
	asToken := p.nextTokenIf(func(it *item) bool {
		return isKeyword(it, keywordAs)
	})
	if asToken != nil {
		outputName, err := p.nextTokenExpect(itemIdentifier)
		if err != nil {
			return nil, err
		}
		fromItem.Alias = outputName.val
	}
	expr.From = fromItem

	// WHERE clause
	if p.nextTokenIf(func(it *item) bool { return isKeyword(it, keywordWhere) }) != nil {
		whereExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Where = whereExpr
	}

	// GROUP BY clause
	if p.nextTokenIf(func(it *item) bool { return isKeyword(it, keywordGroup) }) != nil {
		if err := p.expectKeyword(keywordBy, "BY"); err != nil {
			return nil, err
		}

		for {
			col, err := p.nextTokenIdentifier()
			if err != nil {
				return nil, err
			}
			expr.GroupBy = append(expr.GroupBy, col.val)

			if p.nextTokenIf(func(it *item) bool { return it.typ == itemComma }) == nil {
				break
			}
		}
	}

	// HAVING clause
	if p.nextTokenIf(func(it *item) bool { return isKeyword(it, keywordHaving) }) != nil {
		havingExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Having = havingExpr
	}

	// ORDER BY clause
	if p.nextTokenIf(func(it *item) bool { return isKeyword(it, keywordOrder) }) != nil {
		if err := p.expectKeyword(keywordBy, "BY"); err != nil {
			return nil, err
		}

		for {
			col, err := p.nextTokenIdentifier()
			if err != nil {
				return nil, err
			}
			oi := &OrderItem{Column: col.val}

			dir := p.nextTokenIf(func(it *item) bool {
				return isKeyword(it, keywordAsc) || isKeyword(it, keywordDesc)
			})
			if dir != nil {
				oi.Desc = isKeyword(dir, keywordDesc)
			}
			expr.OrderBy = append(expr.OrderBy, oi)

			if p.nextTokenIf(func(it *item) bool { return it.typ == itemComma }) == nil {
				break
			}
		}
	}

	// LIMIT n [OFFSET m] or LIMIT m, n
	if p.nextTokenIf(func(it *item) bool { return isKeyword(it, keywordLimit) }) != nil {
		first, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Limit = first

		if p.nextTokenIf(func(it *item) bool { return it.typ == itemComma }) != nil {
			count, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			expr.Offset = first
			expr.Limit = count
		} else if p.nextTokenIf(func(it *item) bool { return isKeyword(it, keywordOffset) }) != nil {
			offset, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			expr.Offset = offset
		}
	}

	return expr, p.err
}

func (p *Parser) parseInsert() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}

	_ = p.nextToken() // has to be INSERT
	into := p.nextToken()
	if !isKeyword(into, keywordInto) {
		p.err = fmt.Errorf("frontend::parser::parseInsert: expected keyword \"INTO\" after \"INSERT\"")
		return nil, p.err
	}

	tableName, err := p.nextTokenIdentifier()
	if err != nil {
		p.err = fmt.Errorf("frontend::parser::parseInsert: expected table name")
		return nil, p.err
	}

	// column names
	leftParen := p.nextTokenIf(func(it *item) bool {
		return it.typ == itemLeftParen
	})
	var columns []string
	if leftParen != nil {
		for {
			colName, err := p.nextTokenIdentifier()
			if err != nil {
				return nil, err
			}
			columns = append(columns, colName.val)

			comma := p.nextTokenIf(func(it *item) bool {
				return it.typ == itemComma
			})
			if comma == nil { // last value
				break
			}
		}

		_, err = p.nextTokenExpect(itemRightParen)
		if err != nil {
			return nil, err
		}
	}

	values := p.nextToken()
	if !isKeyword(values, keywordValues) {
		p.err = fmt.Errorf("frontend::parser::parseInsert: expected keyword \"VALUES\" after table name")
		return nil, p.err
	}

	stmt := &InsertStatement{Table: &Table{Name: tableName.val}, Columns: columns}

	// one or more parenthesized lists of values
	for {
		_, err = p.nextTokenExpect(itemLeftParen)
		if err != nil {
			return nil, err
		}

		var vals []Expression
		for {
			exp, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			vals = append(vals, exp)

			comma := p.nextTokenIf(func(it *item) bool {
				return it.typ == itemComma
			})
			if comma == nil { // last value
				break
			}
		}
		if _, err = p.nextTokenExpect(itemRightParen); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, vals)

		if p.nextTokenIf(func(it *item) bool { return it.typ == itemComma }) == nil {
			break
		}
	}

	return stmt, p.err
}

func (p *Parser) parseUpdate() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}

	_ = p.nextToken() // has to be UPDATE
	expr := &UpdateStatement{}

	tableName, err := p.nextTokenIdentifier()
	if err != nil {
		p.err = fmt.Errorf("frontend::parser::parseUpdate: expected table name")
		return nil, p.err
	}
	expr.Table = &Table{Name: tableName.val}

	set := p.nextToken()
	if !isKeyword(set, keywordSet) {
		p.err = fmt.Errorf("frontend::parser::parseUpdate: expected keyword \"SET\" after table name")
		return nil, p.err
	}

	var vals []Expression
	for {
		exp, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		vals = append(vals, exp)

		comma := p.nextTokenIf(func(it *item) bool {
			return it.typ == itemComma
		})
		if comma == nil { // last value
			break
		}
	}
	expr.Values = vals

	// predicate - WHERE
	whereToken := p.nextTokenIf(func(it *item) bool {
		return isKeyword(it, keywordWhere)
	})
	if whereToken != nil {
		whereExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Predicate = whereExpr
	}

	return expr, p.err
}

func (p *Parser) parseDelete() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}

	_ = p.nextToken() // has to be DELETE
	expr := &DeleteStatement{}

	from := p.nextToken()
	if !isKeyword(from, keywordFrom) {
		p.err = fmt.Errorf("frontend::parser::parseDelete: expected keyword \"FROM\" after DELETE")
		return nil, p.err
	}

	tableName, err := p.nextTokenIdentifier()
	if err != nil {
		p.err = fmt.Errorf("frontend::parser::parseDelete: expected table name")
		return nil, p.err
	}
	expr.Table = &Table{Name: tableName.val}

	// predicate - WHERE
	whereToken := p.nextTokenIf(func(it *item) bool {
		return isKeyword(it, keywordWhere)
	})
	if whereToken != nil {
		whereExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Predicate = whereExpr
	}

	return expr, p.err
}

func (p *Parser) parseExplain() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}

	_ = p.nextToken() // has to be EXPLAIN
	expr := &ExplainStatement{}

	inner, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, ok := inner.(*ExplainStatement); ok {
		p.err = fmt.Errorf("frontend::parser::parseExplain: nested EXPLAIN is not allowed")
		return nil, p.err
	}

	expr.InnerStatement = inner
	return expr, nil
}

// isKeyword checks if the given item is the given keyword or not
func isKeyword(it *item, key keywordType) bool {
	if it != nil && it.typ == itemKeyword && keywords[strings.ToUpper(it.val)] == key {
		return true
	}

	return false
}

// unquote strips the surrounding quotes of a string literal and collapses doubled quotes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}

	quote := s[:1]
	return strings.ReplaceAll(s[1:len(s)-1], quote+quote, quote)
}

// expectKeyword consumes the next token which has to be the given keyword.
func (p *Parser) expectKeyword(key keywordType, name string) error {
	if p.err != nil {
		return p.err
	}

	it := p.nextToken()
	if !isKeyword(it, key) {
		p.err = fmt.Errorf("frontend::parser::expectKeyword: expected keyword %q, found %v", name, it)
	}
	return p.err
}

// nextToken returns the next item from the lexer
// it consumes the item by incrementing pos
// NOTE: It ignores the whitespace and comment tokens
func (p *Parser) nextToken() *item {
	if p.pos < len(p.items) {
		p.pos++
		return p.items[p.pos-1]
	}

	if p.pos > len(p.items) {
		panic("frontend::parser::nextToken: invalid value of pos. exceeded length of buffered entries")
	}

	var it item
	for {
		it = p.lexer.nextItem()
		if it.typ != itemWhitespace && it.typ != itemSingleLineComment {
			if it.typ == itemError && p.err == nil {
				p.err = fmt.Errorf("frontend::parser::nextToken: lexing failed: %s", it.val)
			}

			p.items = append(p.items, &it)
			p.pos++
			break
		}
	}

	return &it
}

// peek peeks the next item from the lexer but doesn't consume it.
func (p *Parser) peek() *item {
	if p.err != nil {
		return nil
	}

	it := p.nextToken()
	p.pos-- // revert change to pos
	return it
}

// nextTokenIf returns the next token if it satisfies the given predicate
// if the given predicate is satisfied, the parser is advanced otherwise not
func (p *Parser) nextTokenIf(pred func(*item) bool) *item {
	if p.err != nil {
		return nil
	}

	it := p.peek()
	if it == nil {
		return nil
	}

	if pred(it) {
		p.nextToken() // advance pos
		return it
	}

	return nil
}

// nextTokenExpect returns the next token if it's of the expected type.
// it throws an error otherwise
func (p *Parser) nextTokenExpect(expected itemType) (*item, error) {
	if p.err != nil {
		return nil, p.err
	}

	it := p.nextToken()
	if p.err != nil {
		return nil, p.err
	}
	if it.typ == expected {
		return it, nil
	}

	p.err = fmt.Errorf("frontend::parser::nextTokenExpect: Expected token %v, Found token %v", expected, it.typ)
	return nil, p.err
}

// nextTokenKeyword peeks and returns the next token if it's a keyword.
// it returns an error otherwise
func (p *Parser) nextTokenKeyword() (*item, error) {
	if p.err != nil {
		return nil, p.err
	}

	it := p.peek()
	if it != nil && it.typ == itemKeyword {
		p.nextToken()
		return it, nil
	}

	if p.err == nil {
		p.err = fmt.Errorf("frontend::parser::nextTokenKeyword: Expected keyword token, Found item %v", it)
	}
	return nil, p.err
}

func (p *Parser) nextTokenIdentifier() (*item, error) {
	if p.err != nil {
		return nil, p.err
	}

	it := p.peek()
	if it != nil && it.typ == itemIdentifier {
		p.nextToken()
		return it, nil
	}

	if p.err == nil {
		p.err = fmt.Errorf("frontend::parser::nextTokenIdentifier: Expected identifier token, Found item %v", it)
	}
	return nil, p.err
}

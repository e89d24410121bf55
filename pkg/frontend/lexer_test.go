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
	"testing"

	"github.com/stretchr/testify/assert"
)

var testName = "testLexer"

/*
	Example SQL statements to support

	DDL - Data Definition Language
	a. CREATE TABLE Students(ROLL_NO int, NAME varchar, SUBJECT varchar);
	b. DROP TABLE Students;
	c. TRUNCATE TABLE Students;

	DML - Data Manipulation Language
	a. INSERT INTO Students VALUES (1, 'a');
	b. DELETE FROM Students WHERE id <> 3;

	DQL - Data Query Language
	a. SELECT * FROM Students WHERE x = 2;
*/

// lexAll collects all the non whitespace items of the input including EOF.
func lexAll(input string) []item {
	l := newLexer(testName, input)
	var res []item
	for {
		it := l.nextItem()
		if it.typ == itemWhitespace {
			continue
		}
		res = append(res, it)
		if it.typ == itemEOF || it.typ == itemError {
			return res
		}
	}
}

func assertItems(t *testing.T, expected []item, actual []item) {
	assert.Equal(t, len(expected), len(actual), "Unexpected number of items")
	for idx := range expected {
		if idx >= len(actual) {
			return
		}
		assert.Equal(t, expected[idx].typ, actual[idx].typ, "Unexpected typ at %d", idx)
		assert.Equal(t, expected[idx].val, actual[idx].val, "Unexpected val at %d", idx)
	}
}

//
// DDL tests
//

func TestDDLLexer1(t *testing.T) {
	cmd := "CREATE TABLE Students(ROLL_NO int, NAME varchar, SUBJECT varchar);"

	expectedResult := []item{
		{typ: itemKeyword, val: "CREATE"},
		{typ: itemKeyword, val: "TABLE"},
		{typ: itemIdentifier, val: "Students"},
		{typ: itemLeftParen, val: "("},
		{typ: itemIdentifier, val: "ROLL_NO"},
		{typ: itemKeyword, val: "int"},
		{typ: itemComma, val: ","},
		{typ: itemIdentifier, val: "NAME"},
		{typ: itemKeyword, val: "varchar"},
		{typ: itemComma, val: ","},
		{typ: itemIdentifier, val: "SUBJECT"},
		{typ: itemKeyword, val: "varchar"},
		{typ: itemRightParen, val: ")"},
		{typ: itemSemicolon, val: ";"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll(cmd))
}

func TestDDLLexer2(t *testing.T) {
	cmd := "DROP TABLE Students;"

	expectedResult := []item{
		{typ: itemKeyword, val: "DROP"},
		{typ: itemKeyword, val: "TABLE"},
		{typ: itemIdentifier, val: "Students"},
		{typ: itemSemicolon, val: ";"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll(cmd))
}

func TestDDLLexer3(t *testing.T) {
	cmd := "TRUNCATE TABLE Students;"

	expectedResult := []item{
		{typ: itemKeyword, val: "TRUNCATE"},
		{typ: itemKeyword, val: "TABLE"},
		{typ: itemIdentifier, val: "Students"},
		{typ: itemSemicolon, val: ";"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll(cmd))
}

//
// DML tests
//

func TestDMLLexerInsert(t *testing.T) {
	cmd := `INSERT INTO Students VALUES (1, 'it''s', "x", 2.5, TRUE);`

	expectedResult := []item{
		{typ: itemKeyword, val: "INSERT"},
		{typ: itemKeyword, val: "INTO"},
		{typ: itemIdentifier, val: "Students"},
		{typ: itemKeyword, val: "VALUES"},
		{typ: itemLeftParen, val: "("},
		{typ: itemInteger, val: "1"},
		{typ: itemComma, val: ","},
		{typ: itemString, val: "'it''s'"},
		{typ: itemComma, val: ","},
		{typ: itemString, val: `"x"`},
		{typ: itemComma, val: ","},
		{typ: itemFloat, val: "2.5"},
		{typ: itemComma, val: ","},
		{typ: itemTrue, val: "TRUE"},
		{typ: itemRightParen, val: ")"},
		{typ: itemSemicolon, val: ";"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll(cmd))
}

func TestLexerOperators(t *testing.T) {
	cmd := "a <> b != c >= d <= e && f || g % h -- trailing comment"

	expectedResult := []item{
		{typ: itemIdentifier, val: "a"},
		{typ: itemNotEqual, val: "<>"},
		{typ: itemIdentifier, val: "b"},
		{typ: itemNotEqual, val: "!="},
		{typ: itemIdentifier, val: "c"},
		{typ: itemGreaterThanEqualTo, val: ">="},
		{typ: itemIdentifier, val: "d"},
		{typ: itemLessThanEqualTo, val: "<="},
		{typ: itemIdentifier, val: "e"},
		{typ: itemAndAnd, val: "&&"},
		{typ: itemIdentifier, val: "f"},
		{typ: itemOrOr, val: "||"},
		{typ: itemIdentifier, val: "g"},
		{typ: itemPercent, val: "%"},
		{typ: itemIdentifier, val: "h"},
		{typ: itemSingleLineComment, val: "-- trailing comment"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll(cmd))
}

func TestLexerErrors(t *testing.T) {
	items := lexAll("SELECT 'unclosed")
	assert.Equal(t, itemError, items[len(items)-1].typ, "Expected an error item for an unclosed string")

	items = lexAll("SELECT a FROM t WHERE a = #")
	assert.Equal(t, itemError, items[len(items)-1].typ, "Expected an error item for an unknown rune")
}

func TestItemNames(t *testing.T) {
	tests := []struct {
		it       item
		expected string
	}{
		{item{typ: itemEOF}, "end of input"},
		{item{typ: itemError, val: "bad rune"}, "bad rune"},
		{item{typ: itemLessThanEqualTo, val: "<="}, "'<=' \"<=\""},
		{item{typ: itemIdentifier, val: "a_very_long_name"}, "identifier \"a_very_lon\"..."},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.it.String(), "Wrong rendering of %#v", test.it)
	}

	for typ := itemError; typ <= itemOrOr; typ++ {
		assert.NotContains(t, typ.String(), "item(", "Missing name of token type %d", int(typ))
	}
}

//
// DQL tests
//

func TestDQLLexer1(t *testing.T) {
	cmd := "SELECT * FROM tablename WHERE x = 2;"

	expectedResult := []item{
		{typ: itemKeyword, val: "SELECT"},
		{typ: itemAsterisk, val: "*"},
		{typ: itemKeyword, val: "FROM"},
		{typ: itemIdentifier, val: "tablename"},
		{typ: itemKeyword, val: "WHERE"},
		{typ: itemIdentifier, val: "x"},
		{typ: itemEqual, val: "="},
		{typ: itemInteger, val: "2"},
		{typ: itemSemicolon, val: ";"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll(cmd))
}

func TestDQLLexerNumberPrefixedIdentifier(t *testing.T) {
	expectedResult := []item{
		{typ: itemIdentifier, val: "2fast"},
		{typ: itemEOF, val: ""},
	}

	assertItems(t, expectedResult, lexAll("2fast"))
}

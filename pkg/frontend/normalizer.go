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
	"strings"
)

/*
	This file contains the query normalizer used to derive cache keys
	and to classify statements before they are executed.
*/

// volatile functions return different values between calls with identical arguments.
var volatileFunctions = map[string]bool{
	"RANDOM":            true,
	"RAND":              true,
	"NOW":               true,
	"UUID":              true,
	"CURRENT_TIMESTAMP": true,
	"CURRENT_DATE":      true,
	"CURRENT_TIME":      true,
	"UNIX_TIMESTAMP":    true,
}

// bare functions may be called without parentheses.
var bareFunctions = map[string]bool{
	"CURRENT_TIMESTAMP": true,
	"CURRENT_DATE":      true,
	"CURRENT_TIME":      true,
}

// IsBareFunction checks if the identifier is a function which can be called without parentheses.
func IsBareFunction(name string) bool {
	return bareFunctions[strings.ToUpper(name)]
}

// IsVolatileFunction checks if the function with the given name is volatile.
func IsVolatileFunction(name string) bool {
	return volatileFunctions[strings.ToUpper(name)]
}

// significantTokens lexes the query and returns all the tokens except whitespace and comments.
// ok is false if the lexer ran into an error.
func significantTokens(query string) (tokens []item, ok bool) {
	l := newLexer("normalizer", query)
	for {
		it := l.nextItem()
		switch it.typ {
		case itemEOF:
			return tokens, true
		case itemError:
			return tokens, false
		case itemWhitespace, itemSingleLineComment:
			continue
		}
		tokens = append(tokens, it)
	}
}

// Canonicalize returns the normalized form of the query which is used as the cache key.
// Keywords and boolean literals are upper cased, insignificant whitespace and comments are
// dropped and trailing semicolons are removed. Identifiers and string literals are kept as is.
func Canonicalize(query string) string {
	tokens, ok := significantTokens(query)
	if !ok {
		// not lexable, fallback to whitespace normalization
		return strings.TrimRight(strings.Join(strings.Fields(query), " "), "; ")
	}

	for len(tokens) > 0 && tokens[len(tokens)-1].typ == itemSemicolon {
		tokens = tokens[:len(tokens)-1]
	}

	parts := make([]string, 0, len(tokens))
	for _, it := range tokens {
		switch it.typ {
		case itemKeyword, itemTrue, itemFalse:
			parts = append(parts, strings.ToUpper(it.val))
		default:
			parts = append(parts, it.val)
		}
	}

	return strings.Join(parts, " ")
}

// IsMutating checks if the query can change the database.
// Only SELECT and EXPLAIN statements are read only.
func IsMutating(query string) bool {
	tokens, _ := significantTokens(query)
	if len(tokens) == 0 {
		return true
	}

	first := &tokens[0]
	return !isKeyword(first, keywordSelect) && !isKeyword(first, keywordExplain)
}

// HasVolatileFunction checks if the query calls a function whose result isn't stable
// between executions, which makes the result of the query uncacheable.
func HasVolatileFunction(query string) bool {
	tokens, ok := significantTokens(query)
	if !ok {
		return true
	}

	for i, it := range tokens {
		if it.typ != itemIdentifier {
			continue
		}

		name := strings.ToUpper(it.val)
		if !volatileFunctions[name] {
			continue
		}

		if bareFunctions[name] {
			return true
		}
		if i+1 < len(tokens) && tokens[i+1].typ == itemLeftParen {
			return true
		}
	}

	return false
}

// IsVolatileExpression checks if the expression tree contains a volatile function call.
func IsVolatileExpression(ex Expression) bool {
	switch e := ex.(type) {
	case *FunctionCallExpression:
		if IsVolatileFunction(e.Name) {
			return true
		}
		for _, a := range e.Args {
			if IsVolatileExpression(a) {
				return true
			}
		}
	case *BinaryOpExpression:
		return IsVolatileExpression(e.L) || IsVolatileExpression(e.R)
	case *UnaryOpExpression:
		return IsVolatileExpression(e.Exp)
	case *GroupingExpression:
		return IsVolatileExpression(e.InExp)
	case *IsNullExpression:
		return IsVolatileExpression(e.Expr)
	}

	return false
}

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

package eval

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/frontend"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"
)

// DefaultCompileCacheSize is the number of compiled predicates kept by a Compiler.
const DefaultCompileCacheSize = 256

// Predicate is a compiled filter expression.
//
// It offers two evaluation modes: Validate checks every operand and reports faults
// as errors, Eval assumes the predicate was validated and turns every fault into a mismatch.
type Predicate struct {
	expr     frontend.Expression
	text     string
	matchAll bool
}

// Text returns the canonical text of the predicate
func (p *Predicate) Text() string {
	return p.text
}

// Expression returns the compiled expression. nil for match all predicates.
func (p *Predicate) Expression() frontend.Expression {
	return p.expr
}

// MatchAll checks if the predicate matches every row without looking at it.
func (p *Predicate) MatchAll() bool {
	return p.matchAll
}

// Validate evaluates the predicate against the row with full checking.
// Type mismatches, unknown columns, division by zero and panics are returned as EvaluatorError.
func (p *Predicate) Validate(row codec.Row) (res bool, err error) {
	if p.matchAll {
		return true, nil
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = false, icommon.NewEvaluatorError("eval::predicate::Validate; evaluating %s panicked: %v", p.text, r)
		}
	}()

	ev := &evaluator{row: row, strict: true}
	v := ev.evaluate(p.expr)
	if ev.err != nil {
		return false, ev.err
	}

	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	}
	return false, icommon.NewEvaluatorError("eval::predicate::Validate; predicate %s evaluates to %s instead of a boolean", p.text, typeOf(v))
}

// Eval evaluates the predicate against the row. Any fault yields false.
func (p *Predicate) Eval(row codec.Row) (res bool) {
	if p.matchAll {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			res = false
		}
	}()

	ev := &evaluator{row: row}
	b, ok := ev.evaluate(p.expr).(bool)
	return ok && ev.err == nil && b
}

// NewEvaluator returns a two phase evaluator of the predicate.
func (p *Predicate) NewEvaluator() *Evaluator {
	return &Evaluator{p: p}
}

// Evaluator evaluates a predicate over a sequence of rows.
// The first row goes through the validating path, once that succeeds
// every following row uses the fast path.
type Evaluator struct {
	p         *Predicate
	validated bool
}

// Match evaluates the predicate against the next row of the sequence.
func (e *Evaluator) Match(row codec.Row) (bool, error) {
	if e.validated {
		return e.p.Eval(row), nil
	}

	ok, err := e.p.Validate(row)
	if err != nil {
		return false, err
	}
	e.validated = true
	return ok, nil
}

// Validated reports whether the evaluator switched to the fast path.
func (e *Evaluator) Validated() bool {
	return e.validated
}

// IsMatchAll checks if the expression is the literal "match everything" predicate.
func IsMatchAll(expr frontend.Expression) bool {
	switch e := expr.(type) {
	case nil:
		return true
	case *frontend.GroupingExpression:
		return IsMatchAll(e.InExp)
	case *frontend.ValueExpression:
		return e.Val != nil && e.Val.Typ == frontend.FieldTypeBoolean && e.Val.GetAsBoolean()
	}
	return false
}

// Compiler compiles expressions to predicates and memoizes the result.
type Compiler struct {
	cache *lru.Cache
}

type cacheEntry struct {
	text string
	p    *Predicate
}

// NewCompiler creates a compiler which remembers up to size predicates.
func NewCompiler(size int) (*Compiler, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("eval::predicate::NewCompiler; %v", err)
	}
	return &Compiler{cache: c}, nil
}

// Compile compiles the expression. A nil expression matches every row.
func (c *Compiler) Compile(expr frontend.Expression) *Predicate {
	if IsMatchAll(expr) {
		return &Predicate{text: "TRUE", matchAll: true}
	}

	text := expr.String()
	key := xxhash.Sum64String(text)
	if v, ok := c.cache.Get(key); ok {
		if ce := v.(*cacheEntry); ce.text == text {
			return ce.p
		}
	}

	p := &Predicate{expr: expr, text: text}
	c.cache.Add(key, &cacheEntry{text: text, p: p})
	log.WithFields(log.Fields{"predicate": text}).Trace("eval::predicate::Compile; compiled predicate")
	return p
}

// CompileString parses and compiles a standalone predicate such as "a = 2".
func (c *Compiler) CompileString(predicate string) (*Predicate, error) {
	expr, err := frontend.ParseExpression(predicate)
	if err != nil {
		return nil, err
	}
	return c.Compile(expr), nil
}

// Value evaluates an expression which isn't a predicate, eg. a value of an INSERT statement.
// Identifiers are resolved against row which may be nil.
func Value(expr frontend.Expression, row codec.Row) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, icommon.NewEvaluatorError("eval::predicate::Value; evaluating %s panicked: %v", expr, r)
		}
	}()

	ev := &evaluator{row: row, strict: true}
	v := ev.evaluate(expr)
	if ev.err != nil {
		return nil, ev.err
	}
	return v, nil
}

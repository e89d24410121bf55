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
	"math"
	"strings"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/frontend"
)

// evaluator walks an expression tree against a single row.
// In strict mode every fault is reported as an error with a description.
// Otherwise faults only set the sticky err to errFault, which skips formatting.
type evaluator struct {
	row    codec.Row
	strict bool
	err    error
}

var errFault = fmt.Errorf("eval::evaluate; fault")

func (ev *evaluator) faultf(format string, args ...interface{}) interface{} {
	if ev.err != nil {
		return nil
	}

	if ev.strict {
		ev.err = icommon.NewEvaluatorError("eval::evaluate; "+format, args...)
	} else {
		ev.err = errFault
	}
	return nil
}

// evaluate evaluates the expression and returns a value of the row value domain:
// int64, float64, string, bool or nil.
func (ev *evaluator) evaluate(expr frontend.Expression) interface{} {
	if ev.err != nil {
		return nil
	}

	switch e := expr.(type) {
	case *frontend.ValueExpression:
		return e.Val.Interface()

	case *frontend.IdentifierExpression:
		v, ok := ev.row[e.Identifier]
		if !ok {
			return ev.faultf("unknown column %s", e.Identifier)
		}
		return v

	case *frontend.GroupingExpression:
		return ev.evaluate(e.InExp)

	case *frontend.UnaryOpExpression:
		return ev.evaluateUnaryOp(e)

	case *frontend.BinaryOpExpression:
		return ev.evaluateBinaryOp(e)

	case *frontend.IsNullExpression:
		v := ev.evaluate(e.Expr)
		if ev.err != nil {
			return nil
		}
		return (v == nil) != e.Not

	case *frontend.FunctionCallExpression:
		return ev.evaluateFunctionCall(e)
	}

	return ev.faultf("unsupported expression %T", expr)
}

func (ev *evaluator) evaluateUnaryOp(expr *frontend.UnaryOpExpression) interface{} {
	v := ev.evaluate(expr.Exp)
	if ev.err != nil || v == nil {
		return nil
	}

	switch expr.Op {
	case frontend.OperatorMinus:
		switch t := v.(type) {
		case int64:
			return -t
		case float64:
			return -t
		}
		return ev.faultf("unary operator '-' cannot be used with operand of type %s", typeOf(v))

	case frontend.OperatorExclamation:
		if b, ok := v.(bool); ok {
			return !b
		}
		return ev.faultf("unary operator '!' cannot be used with operand of type %s", typeOf(v))
	}

	return ev.faultf("unexpected operator %s in unary operator expression", expr.Op)
}

func (ev *evaluator) evaluateBinaryOp(expr *frontend.BinaryOpExpression) interface{} {
	switch expr.Op {
	case frontend.OperatorAndAnd, frontend.OperatorOrOr:
		return ev.evaluateLogicalOp(expr)
	}

	lv := ev.evaluate(expr.L)
	rv := ev.evaluate(expr.R)
	if ev.err != nil {
		return nil
	}

	// comparisons and arithmetic with NULL are unknown
	if lv == nil || rv == nil {
		return nil
	}

	switch expr.Op {
	case frontend.OperatorEqual, frontend.OperatorNotEqual:
		eq, ok := equal(lv, rv)
		if !ok {
			return ev.faultf("binary operator '%s' cannot compare %s with %s", expr.Op, typeOf(lv), typeOf(rv))
		}
		return eq == (expr.Op == frontend.OperatorEqual)

	case frontend.OperatorGreaterThan, frontend.OperatorGreaterThanEqualTo, frontend.OperatorLessThan, frontend.OperatorLessThanEqualTo:
		if !frontend.OperatorComparisonOperandTypes[typeOf(lv)] {
			return ev.faultf("binary operator '%s' cannot be used with operand of type %s", expr.Op, typeOf(lv))
		}
		c, ok := compare(lv, rv)
		if !ok {
			return ev.faultf("binary operator '%s' cannot compare %s with %s", expr.Op, typeOf(lv), typeOf(rv))
		}

		switch expr.Op {
		case frontend.OperatorGreaterThan:
			return c > 0
		case frontend.OperatorGreaterThanEqualTo:
			return c >= 0
		case frontend.OperatorLessThan:
			return c < 0
		}
		return c <= 0
	}

	return ev.evaluateArithmeticOp(expr.Op, lv, rv)
}

// evaluateLogicalOp implements AND/OR with three valued logic and short circuiting.
func (ev *evaluator) evaluateLogicalOp(expr *frontend.BinaryOpExpression) interface{} {
	isAnd := expr.Op == frontend.OperatorAndAnd

	lv := ev.evaluate(expr.L)
	if ev.err != nil {
		return nil
	}
	lb, lok := lv.(bool)
	if lv != nil && !lok {
		return ev.faultf("binary operator '%s' cannot be used with operand of type %s", expr.Op, typeOf(lv))
	}
	if lok && lb != isAnd { // false AND x, true OR x
		return lb
	}

	rv := ev.evaluate(expr.R)
	if ev.err != nil {
		return nil
	}
	rb, rok := rv.(bool)
	if rv != nil && !rok {
		return ev.faultf("binary operator '%s' cannot be used with operand of type %s", expr.Op, typeOf(rv))
	}
	if rok && rb != isAnd {
		return rb
	}

	if lv == nil || rv == nil {
		return nil
	}
	return isAnd
}

func (ev *evaluator) evaluateArithmeticOp(op frontend.Operator, lv, rv interface{}) interface{} {
	var allowed map[frontend.FieldType]bool
	switch op {
	case frontend.OperatorPlus:
		allowed = frontend.OperatorPlusOperandTypes
	case frontend.OperatorMinus:
		allowed = frontend.OperatorMinusOperandTypes
	case frontend.OperatorAsterisk:
		allowed = frontend.OperatorAsteriskOperandTypes
	case frontend.OperatorSlash:
		allowed = frontend.OperatorSlashOperandTypes
	case frontend.OperatorPercent:
		allowed = frontend.OperatorPercentOperandTypes
	case frontend.OperatorCaret:
		allowed = frontend.OperatorCaretOperandTypes
	default:
		return ev.faultf("unexpected operator %s in binary operator expression", op)
	}

	lt, rt := typeOf(lv), typeOf(rv)
	if !allowed[lt] || !allowed[rt] {
		return ev.faultf("binary operator '%s' cannot be used with operands of type %s and %s", op, lt, rt)
	}

	if lt == frontend.FieldTypeString || rt == frontend.FieldTypeString {
		if lt != rt {
			return ev.faultf("binary operator '%s' cannot be used with operands of type %s and %s", op, lt, rt)
		}
		return lv.(string) + rv.(string)
	}

	if op == frontend.OperatorCaret {
		return math.Pow(toFloat(lv), toFloat(rv))
	}

	if lt == frontend.FieldTypeInteger && rt == frontend.FieldTypeInteger {
		l, r := lv.(int64), rv.(int64)
		switch op {
		case frontend.OperatorPlus:
			return l + r
		case frontend.OperatorMinus:
			return l - r
		case frontend.OperatorAsterisk:
			return l * r
		case frontend.OperatorSlash:
			if r == 0 {
				return ev.faultf("invalid divisor in division operation: cannot divide by zero")
			}
			return l / r
		}
		if r == 0 {
			return ev.faultf("invalid divisor in modulo operation: cannot divide by zero")
		}
		return l % r
	}

	l, r := toFloat(lv), toFloat(rv)
	switch op {
	case frontend.OperatorPlus:
		return l + r
	case frontend.OperatorMinus:
		return l - r
	case frontend.OperatorAsterisk:
		return l * r
	}
	if r == 0 {
		return ev.faultf("invalid divisor in division operation: cannot divide by zero")
	}
	return l / r
}

//
// helpers over the row value domain
//

func typeOf(v interface{}) frontend.FieldType {
	switch v.(type) {
	case bool:
		return frontend.FieldTypeBoolean
	case int64:
		return frontend.FieldTypeInteger
	case float64:
		return frontend.FieldTypeFloat
	case string:
		return frontend.FieldTypeString
	}
	return frontend.FieldTypeNull
}

func isNumeric(v interface{}) bool {
	t := typeOf(v)
	return t == frontend.FieldTypeInteger || t == frontend.FieldTypeFloat
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	}
	panic("programming error: expected a numeric value")
}

// equal compares two non nil values. ok is false if the types can't be compared.
func equal(lv, rv interface{}) (eq bool, ok bool) {
	if isNumeric(lv) && isNumeric(rv) {
		c, _ := compare(lv, rv)
		return c == 0, true
	}
	if typeOf(lv) != typeOf(rv) {
		return false, false
	}
	return lv == rv, true
}

// compare orders two non nil values of a comparable type.
func compare(lv, rv interface{}) (int, bool) {
	if li, ok := lv.(int64); ok {
		if ri, ok := rv.(int64); ok {
			switch {
			case li < ri:
				return -1, true
			case li > ri:
				return 1, true
			}
			return 0, true
		}
	}

	if isNumeric(lv) && isNumeric(rv) {
		l, r := toFloat(lv), toFloat(rv)
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		}
		return 0, true
	}

	ls, lok := lv.(string)
	rs, rok := rv.(string)
	if lok && rok {
		return strings.Compare(ls, rs), true
	}

	return 0, false
}

// Compare orders two row values for sorting. NULL sorts first and
// values of incomparable types are ordered by their type.
func Compare(lv, rv interface{}) int {
	switch {
	case lv == nil && rv == nil:
		return 0
	case lv == nil:
		return -1
	case rv == nil:
		return 1
	}

	if c, ok := compare(lv, rv); ok {
		return c
	}

	if lb, ok := lv.(bool); ok {
		if rb, ok := rv.(bool); ok {
			switch {
			case lb == rb:
				return 0
			case !lb:
				return -1
			}
			return 1
		}
	}

	lt, rt := typeOf(lv), typeOf(rv)
	switch {
	case lt < rt:
		return -1
	case lt > rt:
		return 1
	}
	return 0
}

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

import "strings"

var (
	_ Expression = (*BinaryOpExpression)(nil)
	_ Expression = (*GroupingExpression)(nil)
	_ Expression = (*ValueExpression)(nil)
	_ Expression = (*UnaryOpExpression)(nil)
	_ Expression = (*IdentifierExpression)(nil)
	_ Expression = (*FunctionCallExpression)(nil)
	_ Expression = (*IsNullExpression)(nil)
)

type ExpressionNode struct {
	// Typ is the type of the final result of the expression
	Typ FieldType
}

func (e *ExpressionNode) expression() {}

type BinaryOpExpression struct {
	ExpressionNode

	Op Operator

	L, R Expression
}

func (boe *BinaryOpExpression) String() string {
	return "(" + boe.L.String() + " " + boe.Op.String() + " " + boe.R.String() + ")"
}

type GroupingExpression struct {
	ExpressionNode

	InExp Expression
}

func (ge *GroupingExpression) String() string {
	return "(" + ge.InExp.String() + ")"
}

type UnaryOpExpression struct {
	ExpressionNode

	Op Operator

	Exp Expression
}

func (uoe *UnaryOpExpression) String() string {
	return uoe.Op.String() + uoe.Exp.String()
}

type ValueExpression struct {
	ExpressionNode

	Val *Value
}

func (ve *ValueExpression) String() string {
	return ve.Val.String()
}

type IdentifierExpression struct {
	ExpressionNode

	Identifier string
}

func (ie *IdentifierExpression) String() string {
	return ie.Identifier
}

// FunctionCallExpression is a call of a builtin function such as UPPER(name).
// Name is always upper case.
type FunctionCallExpression struct {
	ExpressionNode

	Name string
	Args []Expression
}

func (fce *FunctionCallExpression) String() string {
	args := make([]string, 0, len(fce.Args))
	for _, a := range fce.Args {
		args = append(args, a.String())
	}
	return fce.Name + "(" + strings.Join(args, ", ") + ")"
}

// IsNullExpression is `Expr IS NULL` or `Expr IS NOT NULL`
type IsNullExpression struct {
	ExpressionNode

	Expr Expression
	Not  bool
}

func (ine *IsNullExpression) String() string {
	if ine.Not {
		return "(" + ine.Expr.String() + " IS NOT NULL)"
	}
	return "(" + ine.Expr.String() + " IS NULL)"
}

//
// Builders used to assemble expressions programmatically.
//

// Ident creates an identifier expression
func Ident(name string) *IdentifierExpression {
	return &IdentifierExpression{Identifier: name}
}

// Literal creates a value expression out of a go value.
// It panics for unsupported types.
func Literal(v interface{}) *ValueExpression {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return &ValueExpression{Val: val}
}

// Binary creates a binary operation expression
func Binary(op Operator, l, r Expression) *BinaryOpExpression {
	return &BinaryOpExpression{Op: op, L: l, R: r}
}

// And joins the given expressions with AND. nil entries are skipped.
func And(exprs ...Expression) Expression {
	var res Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if res == nil {
			res = e
			continue
		}
		res = Binary(OperatorAndAnd, res, e)
	}
	return res
}

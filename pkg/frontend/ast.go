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

/*
	This file contains the common defs and utilities of the AST
*/

var (
	_ Statement = (*ExplainStatement)(nil)
)

// Statement is a single parsed sql statement.
type Statement interface {
	statement()
}

// Expression is a node of an expression tree.
// String renders the expression in a canonical form: two structurally equal
// expressions always render to the same text.
type Expression interface {
	expression()
	String() string
}

// Table is the target of a statement
type Table struct {
	Name  string
	Alias string
}

type SelectionItem struct {
	OutputName string
	Expr       Expression
}

// ExplainStatement wraps a statement whose plan should be reported instead of executed.
type ExplainStatement struct {
	InnerStatement Statement
}

func (es *ExplainStatement) statement() {}

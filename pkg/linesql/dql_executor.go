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


package linesql

import (
	"sort"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/scanner"
	log "github.com/sirupsen/logrus"
)

// selectExecutor is the executor for the select query.
//
// The planner returns the rows matching WHERE. The remaining clauses are applied
// in this order: GROUP BY, HAVING, ORDER BY, projection, DISTINCT, OFFSET/LIMIT.
type selectExecutor struct {
	db   *DB
	stmt *frontend.SelectStatement
}

var _ executor = (*selectExecutor)(nil)

func (ex *selectExecutor) execute() (*Result, error) {
	log.WithFields(log.Fields{"table": ex.stmt.From.Name}).Debug("linesql::dql_executor::selectExecutor.execute; start;")

	args, err := scanner.ArgsFromSelect(ex.stmt)
	if err != nil {
		return nil, err
	}
	plan, err := ex.db.planner.Plan(args)
	if err != nil {
		return nil, err
	}
	if err = ex.check(plan.Meta); err != nil {
		return nil, err
	}

	rows, err := ex.db.planner.Execute(plan)
	if err != nil {
		return nil, err
	}

	rows = groupRows(rows, args.Group)
	if rows, err = ex.having(rows, args.Having); err != nil {
		return nil, err
	}
	ex.order(rows, args.Order)

	cols := outputColumns(ex.stmt.Selections, plan.Meta)
	out := project(rows, ex.stmt.Selections, plan.Meta)
	if ex.stmt.Distinct {
		if out, err = distinct(out); err != nil {
			return nil, err
		}
	}
	out = applyLimit(out, args.Limit)

	return &Result{Columns: cols, Rows: out}, nil
}

// check verifies that every referenced column exists.
func (ex *selectExecutor) check(meta *codec.TableMeta) error {
	var names []string
	for _, sel := range ex.stmt.Selections {
		if id := selectionColumn(sel); id != "*" {
			names = append(names, id)
		}
	}
	names = append(names, ex.stmt.GroupBy...)
	if err := checkColumns(meta, names); err != nil {
		return err
	}

	for _, o := range ex.stmt.OrderBy {
		if ex.sourceColumn(o.Column) == "" && meta.Column(o.Column) == nil {
			return icommon.NewInvalidQueryError("linesql::dql_executor::check; unknown ORDER BY column %s", o.Column)
		}
	}
	return nil
}

func (ex *selectExecutor) having(rows []codec.Row, having frontend.Expression) ([]codec.Row, error) {
	if eval.IsMatchAll(having) {
		return rows, nil
	}

	ev := ex.db.compiler.Compile(having).NewEvaluator()
	res := rows[:0]
	for _, r := range rows {
		ok, err := ev.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, r)
		}
	}
	return res, nil
}

// order sorts the source rows. An ORDER BY name is either a column or an output name.
func (ex *selectExecutor) order(rows []codec.Row, items []*frontend.OrderItem) {
	if len(items) == 0 {
		return
	}

	keys := make([]string, len(items))
	for i, o := range items {
		keys[i] = o.Column
		if src := ex.sourceColumn(o.Column); src != "" {
			keys[i] = src
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for k, o := range items {
			c := eval.Compare(rows[i][keys[k]], rows[j][keys[k]])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// sourceColumn resolves an output name to the column it selects, empty if there is none.
func (ex *selectExecutor) sourceColumn(name string) string {
	for _, sel := range ex.stmt.Selections {
		if sel.OutputName == name {
			if id := selectionColumn(sel); id != "*" {
				return id
			}
		}
	}
	return ""
}

// explainExecutor reports the access path of a SELECT without scanning
type explainExecutor struct {
	db   *DB
	stmt *frontend.ExplainStatement
}

var _ executor = (*explainExecutor)(nil)

func (ex *explainExecutor) execute() (*Result, error) {
	st, ok := ex.stmt.InnerStatement.(*frontend.SelectStatement)
	if !ok {
		return nil, icommon.NewInvalidQueryError("linesql::dql_executor::explainExecutor.execute; only SELECT can be explained, found %T", ex.stmt.InnerStatement)
	}

	args, err := scanner.ArgsFromSelect(st)
	if err != nil {
		return nil, err
	}
	plan, err := ex.db.planner.Plan(args)
	if err != nil {
		return nil, err
	}

	return &Result{
		Columns: []string{"table", "strategy"},
		Rows:    []codec.Row{{"table": plan.Table, "strategy": plan.Strategy.String()}},
	}, nil
}

//
// Clause helpers
//

// groupRows keeps the first row of every group.
func groupRows(rows []codec.Row, group []string) []codec.Row {
	if len(group) == 0 {
		return rows
	}

	seen := make(map[string]bool)
	res := rows[:0]
	for _, r := range rows {
		key := make(codec.Row, len(group))
		for _, g := range group {
			key[g] = r[g]
		}
		token, err := codec.EncodeRow(key)
		if err != nil {
			// values come from decoded rows and always encode
			panic(err)
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		res = append(res, r)
	}
	return res
}

func project(rows []codec.Row, selections []*frontend.SelectionItem, meta *codec.TableMeta) []codec.Row {
	res := make([]codec.Row, 0, len(rows))
	for _, r := range rows {
		out := make(codec.Row, len(selections))
		for _, sel := range selections {
			id := selectionColumn(sel)
			if id == "*" {
				for _, c := range meta.Columns {
					out[c.Name] = r[c.Name]
				}
				continue
			}
			out[sel.OutputName] = r[id]
		}
		res = append(res, out)
	}
	return res
}

func distinct(rows []codec.Row) ([]codec.Row, error) {
	seen := make(map[string]bool, len(rows))
	res := rows[:0]
	for _, r := range rows {
		token, err := codec.EncodeRow(r)
		if err != nil {
			return nil, err
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		res = append(res, r)
	}
	return res, nil
}

func applyLimit(rows []codec.Row, l *scanner.Limit) []codec.Row {
	if l.Offset >= int64(len(rows)) {
		return []codec.Row{}
	}
	rows = rows[l.Offset:]
	if l.Count >= 0 && l.Count < int64(len(rows)) {
		rows = rows[:l.Count]
	}
	return rows
}

// outputColumns lists the result columns of the selections in order.
func outputColumns(selections []*frontend.SelectionItem, meta *codec.TableMeta) []string {
	var cols []string
	for _, sel := range selections {
		if selectionColumn(sel) == "*" {
			cols = append(cols, meta.ColumnNames()...)
			continue
		}
		cols = append(cols, sel.OutputName)
	}
	return cols
}

func selectionColumn(sel *frontend.SelectionItem) string {
	return sel.Expr.(*frontend.IdentifierExpression).Identifier
}

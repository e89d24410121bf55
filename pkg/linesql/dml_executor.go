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
	"fmt"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	log "github.com/sirupsen/logrus"
)

// insertExecutor is the executor for the insert query
type insertExecutor struct {
	db   *DB
	stmt *frontend.InsertStatement
}

var _ executor = (*insertExecutor)(nil)

func (ex *insertExecutor) execute() (*Result, error) {
	table := ex.stmt.Table.Name
	log.WithFields(log.Fields{"table": table, "rows": len(ex.stmt.Rows)}).Info("linesql::dml_executor::insertExecutor.execute; start;")

	if err := reservedTable(table); err != nil {
		return nil, err
	}

	n := 0
	err := ex.db.exclusive(func() error {
		meta, at, err := ex.db.catalog.read(table)
		if err != nil {
			return err
		}

		rows, err := ex.buildRows(meta)
		if err != nil {
			return err
		}

		existing, err := ex.db.readTable(table)
		if err != nil {
			return err
		}
		all := make([]codec.Row, 0, len(existing)+len(rows))
		for _, tl := range existing {
			all = append(all, tl.row)
		}
		if err = checkUnique(meta, append(all, rows...)); err != nil {
			return err
		}

		lines, err := encodeRows(table, rows)
		if err != nil {
			return err
		}
		if err = ex.db.store.Append(lines...); err != nil {
			return err
		}
		n = len(rows)

		return ex.db.catalog.touch(meta, at)
	})
	if err != nil {
		return nil, err
	}
	return affected(n), nil
}

// buildRows evaluates the value tuples into complete rows of the table.
func (ex *insertExecutor) buildRows(meta *codec.TableMeta) ([]codec.Row, error) {
	cols := ex.stmt.Columns
	if len(cols) == 0 {
		cols = meta.ColumnNames()
	}
	if err := checkColumns(meta, cols); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return nil, icommon.NewInvalidQueryError("linesql::dml_executor::buildRows; column %s is listed twice", c)
		}
		seen[c] = true
	}

	rows := make([]codec.Row, 0, len(ex.stmt.Rows))
	for i, tuple := range ex.stmt.Rows {
		if len(tuple) != len(cols) {
			return nil, icommon.NewInvalidQueryError("linesql::dml_executor::buildRows; row %d has %d values for %d columns", i+1, len(tuple), len(cols))
		}

		row := make(codec.Row, len(meta.Columns))
		for j, expr := range tuple {
			v, err := eval.Value(expr, nil)
			if err != nil {
				return nil, icommon.NewInvalidQueryError("linesql::dml_executor::buildRows; invalid value for column %s: %v", cols[j], err)
			}
			row[cols[j]] = v
		}

		for k := range meta.Columns {
			col := &meta.Columns[k]
			v, ok := row[col.Name]
			if !ok && col.Default != "" {
				var err error
				if v, err = defaultValue(col); err != nil {
					return nil, err
				}
			}

			cv, err := coerce(col, v)
			if err != nil {
				return nil, err
			}
			row[col.Name] = cv
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func defaultValue(col *codec.ColumnMeta) (interface{}, error) {
	expr, err := frontend.ParseExpression(col.Default)
	if err != nil {
		return nil, icommon.NewUnknownError(fmt.Sprintf("linesql::dml_executor::defaultValue; corrupt default of column %s: %v", col.Name, err))
	}
	return eval.Value(expr, nil)
}

// assignment is a single `column = expression` of an UPDATE
type assignment struct {
	col  *codec.ColumnMeta
	expr frontend.Expression
}

// updateExecutor is the executor for the update query.
// Updated rows are tombstoned and appended again with the new values.
type updateExecutor struct {
	db   *DB
	stmt *frontend.UpdateStatement
}

var _ executor = (*updateExecutor)(nil)

func (ex *updateExecutor) execute() (*Result, error) {
	table := ex.stmt.Table.Name
	log.WithFields(log.Fields{"table": table}).Info("linesql::dml_executor::updateExecutor.execute; start;")

	if err := reservedTable(table); err != nil {
		return nil, err
	}

	n := 0
	err := ex.db.exclusive(func() error {
		meta, at, err := ex.db.catalog.read(table)
		if err != nil {
			return err
		}

		assignments, err := ex.assignments(meta)
		if err != nil {
			return err
		}

		existing, err := ex.db.readTable(table)
		if err != nil {
			return err
		}

		ev := ex.db.compiler.Compile(ex.stmt.Predicate).NewEvaluator()
		var (
			all     []codec.Row
			updated []codec.Row
			dead    = make(map[int]bool)
		)
		for _, tl := range existing {
			ok, err := ev.Match(tl.row)
			if err != nil {
				return err
			}
			if !ok {
				all = append(all, tl.row)
				continue
			}

			row := tl.row.Clone()
			for _, a := range assignments {
				v, err := eval.Value(a.expr, tl.row)
				if err != nil {
					return icommon.NewInvalidQueryError("linesql::dml_executor::updateExecutor.execute; invalid value for column %s: %v", a.col.Name, err)
				}
				if row[a.col.Name], err = coerce(a.col, v); err != nil {
					return err
				}
			}
			updated = append(updated, row)
			dead[tl.line] = true
		}

		if len(updated) == 0 {
			// nothing changed on disk but the statement still counts as a modification
			return ex.db.catalog.touch(meta, at)
		}

		if err = checkUnique(meta, append(all, updated...)); err != nil {
			return err
		}

		lines, err := encodeRows(table, updated)
		if err != nil {
			return err
		}
		if err = tombstoneLines(ex.db.store, dead); err != nil {
			return err
		}
		if err = ex.db.store.Append(lines...); err != nil {
			return err
		}
		n = len(updated)

		return ex.db.catalog.touch(meta, at)
	})
	if err != nil {
		return nil, err
	}
	return affected(n), nil
}

func (ex *updateExecutor) assignments(meta *codec.TableMeta) ([]assignment, error) {
	res := make([]assignment, 0, len(ex.stmt.Values))
	for _, v := range ex.stmt.Values {
		be, ok := v.(*frontend.BinaryOpExpression)
		if !ok || be.Op != frontend.OperatorEqual {
			return nil, icommon.NewInvalidQueryError("linesql::dml_executor::assignments; expected column = value, found %s", v)
		}
		id, ok := be.L.(*frontend.IdentifierExpression)
		if !ok {
			return nil, icommon.NewInvalidQueryError("linesql::dml_executor::assignments; expected a column name, found %s", be.L)
		}

		col := meta.Column(id.Identifier)
		if col == nil {
			return nil, icommon.NewInvalidQueryError("linesql::dml_executor::assignments; unknown column %s in table %s", id.Identifier, meta.Name)
		}
		res = append(res, assignment{col: col, expr: be.R})
	}
	return res, nil
}

// deleteExecutor is the executor for the delete query
type deleteExecutor struct {
	db   *DB
	stmt *frontend.DeleteStatement
}

var _ executor = (*deleteExecutor)(nil)

func (ex *deleteExecutor) execute() (*Result, error) {
	table := ex.stmt.Table.Name
	log.WithFields(log.Fields{"table": table}).Info("linesql::dml_executor::deleteExecutor.execute; start;")

	if err := reservedTable(table); err != nil {
		return nil, err
	}

	n := 0
	err := ex.db.exclusive(func() error {
		meta, at, err := ex.db.catalog.read(table)
		if err != nil {
			return err
		}

		existing, err := ex.db.readTable(table)
		if err != nil {
			return err
		}

		ev := ex.db.compiler.Compile(ex.stmt.Predicate).NewEvaluator()
		dead := make(map[int]bool)
		for _, tl := range existing {
			ok, err := ev.Match(tl.row)
			if err != nil {
				return err
			}
			if ok {
				dead[tl.line] = true
			}
		}

		if err = tombstoneLines(ex.db.store, dead); err != nil {
			return err
		}
		n = len(dead)

		return ex.db.catalog.touch(meta, at)
	})
	if err != nil {
		return nil, err
	}
	return affected(n), nil
}

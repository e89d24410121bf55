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
	"io"
	"strings"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/pkg/errors"
)

// executor executes a single statement
type executor interface {
	execute() (*Result, error)
}

func (db *DB) getExecutor(stmt frontend.Statement) (executor, error) {
	switch st := stmt.(type) {
	case *frontend.CreateTableStatement:
		return &createTableExecutor{db: db, spec: st.Spec}, nil
	case *frontend.DropTableStatement:
		return &dropTableExecutor{db: db, table: st.TableName}, nil
	case *frontend.TruncateTableStatement:
		return &truncateTableExecutor{db: db, table: st.TableName}, nil
	case *frontend.InsertStatement:
		return &insertExecutor{db: db, stmt: st}, nil
	case *frontend.UpdateStatement:
		return &updateExecutor{db: db, stmt: st}, nil
	case *frontend.DeleteStatement:
		return &deleteExecutor{db: db, stmt: st}, nil
	case *frontend.SelectStatement:
		return &selectExecutor{db: db, stmt: st}, nil
	case *frontend.ExplainStatement:
		return &explainExecutor{db: db, stmt: st}, nil
	}

	return nil, icommon.NewInvalidQueryError("linesql::executor::getExecutor; unsupported statement %T", stmt)
}

//
// Utility functions for all executors
//

// exclusive runs fn while holding the exclusive lock.
func (db *DB) exclusive(fn func() error) (err error) {
	if err = db.locker.AcquireExclusive(); err != nil {
		return err
	}
	defer func() {
		if rerr := db.locker.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return fn()
}

// tableLine is a live data line of a table
type tableLine struct {
	line int
	row  codec.Row
}

// readTable returns the live rows of the table in file order. The caller holds the lock.
func (db *DB) readTable(table string) ([]tableLine, error) {
	h, err := db.store.Open(linestore.ModeRead)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	if err = h.SeekToLine(linestore.HeaderLines); err != nil && err != io.EOF {
		return nil, err
	}

	prefix := codec.Prefix(table, codec.DelimData)
	var res []tableLine
	for {
		line, err := h.ReadLine()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return nil, err
		}

		payload, ok := codec.Payload(line, prefix)
		if !ok {
			continue
		}
		row, err := codec.DecodeRow(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "linesql::executor::readTable; decoding line %d of %s", h.Line()-1, table)
		}
		res = append(res, tableLine{line: h.Line() - 1, row: row})
	}
}

// coerce converts v to the type of the column and checks the NOT NULL constraint.
func coerce(col *codec.ColumnMeta, v interface{}) (interface{}, error) {
	if v == nil {
		if !col.Nullable {
			return nil, icommon.NewInvalidQueryError("linesql::executor::coerce; column %s can't be NULL", col.Name)
		}
		return nil, nil
	}

	switch col.Type {
	case frontend.FieldTypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case frontend.FieldTypeInteger:
		switch t := v.(type) {
		case int64:
			return t, nil
		case float64:
			if t == float64(int64(t)) {
				return int64(t), nil
			}
		}
	case frontend.FieldTypeFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int64:
			return float64(t), nil
		}
	case frontend.FieldTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}

	return nil, icommon.NewInvalidQueryError("linesql::executor::coerce; value %v can't be stored in %s column %s", v, col.Type, col.Name)
}

// checkUnique verifies the primary key and unique constraints over the complete set of rows of a table.
func checkUnique(meta *codec.TableMeta, rows []codec.Row) error {
	for _, col := range meta.Columns {
		if !col.Primary && !col.Unique {
			continue
		}

		seen := make(map[interface{}]bool, len(rows))
		for _, r := range rows {
			v := r[col.Name]
			if v == nil {
				continue
			}
			if seen[v] {
				return icommon.NewInvalidQueryError("linesql::executor::checkUnique; duplicate value %v of unique column %s", v, col.Name)
			}
			seen[v] = true
		}
	}
	return nil
}

// checkColumns verifies that every name is a column of the table.
func checkColumns(meta *codec.TableMeta, names []string) error {
	var unknown []string
	for _, n := range names {
		if meta.Column(n) == nil {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return icommon.NewInvalidQueryError("linesql::executor::checkColumns; unknown columns %s in table %s", strings.Join(unknown, ", "), meta.Name)
	}
	return nil
}

// encodeRows formats rows as data lines of the table.
func encodeRows(table string, rows []codec.Row) ([][]byte, error) {
	lines := make([][]byte, 0, len(rows))
	for _, r := range rows {
		token, err := codec.EncodeRow(r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, codec.FormatLine(table, codec.DelimData, token))
	}
	return lines, nil
}

func reservedTable(name string) error {
	if strings.HasPrefix(name, "__") {
		return icommon.NewInvalidQueryError("linesql::executor::reservedTable; table names starting with __ are reserved, found %s", name)
	}
	return nil
}

func affected(n int) *Result {
	return &Result{Affected: int64(n)}
}

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
	"github.com/dr0pdb/linedb/pkg/linestore"
	log "github.com/sirupsen/logrus"
)

// createTableExecutor is the executor for the create table query
type createTableExecutor struct {
	db   *DB
	spec *frontend.TableSpec
}

var _ executor = (*createTableExecutor)(nil)

func (ex *createTableExecutor) execute() (*Result, error) {
	log.WithFields(log.Fields{"table": ex.spec.TableName}).Info("linesql::ddl_executor::createTableExecutor.execute; start;")

	if err := ex.validate(); err != nil {
		return nil, err
	}

	err := ex.db.exclusive(func() error {
		_, _, err := ex.db.catalog.read(ex.spec.TableName)
		if err == nil {
			return icommon.NewInvalidQueryError("linesql::ddl_executor::createTableExecutor.execute; table %s already exists", ex.spec.TableName)
		}
		if _, ok := err.(icommon.NotFoundError); !ok {
			return err
		}

		return ex.db.catalog.write(codec.MetaFromSpec(ex.spec, timeNow().UnixNano()), -1)
	})
	if err != nil {
		return nil, err
	}
	return affected(0), nil
}

func (ex *createTableExecutor) validate() error {
	if err := reservedTable(ex.spec.TableName); err != nil {
		return err
	}

	seen := make(map[string]bool)
	primary := 0
	for _, c := range ex.spec.Columns {
		if seen[c.Name] {
			return icommon.NewInvalidQueryError("linesql::ddl_executor::validate; duplicate column %s", c.Name)
		}
		seen[c.Name] = true

		if c.PrimaryKey {
			primary++
		}

		if c.Default != nil {
			v, err := eval.Value(c.Default, nil)
			if err != nil {
				return icommon.NewInvalidQueryError("linesql::ddl_executor::validate; invalid default of column %s: %v", c.Name, err)
			}
			col := codec.ColumnMeta{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
			if _, err = coerce(&col, v); err != nil {
				return err
			}
		}
	}

	if primary > 1 {
		return icommon.NewInvalidQueryError("linesql::ddl_executor::validate; table %s has %d primary keys", ex.spec.TableName, primary)
	}
	return nil
}

// dropTableExecutor is the executor for the drop table query.
// It tombstones the metadata, the rows and the cache records of the table.
type dropTableExecutor struct {
	db    *DB
	table string
}

var _ executor = (*dropTableExecutor)(nil)

func (ex *dropTableExecutor) execute() (*Result, error) {
	log.WithFields(log.Fields{"table": ex.table}).Info("linesql::ddl_executor::dropTableExecutor.execute; start;")

	n := 0
	err := ex.db.exclusive(func() error {
		if _, _, err := ex.db.catalog.read(ex.table); err != nil {
			return err
		}

		metaPrefix := codec.Prefix(ex.table, codec.DelimMeta)
		dataPrefix := codec.Prefix(ex.table, codec.DelimData)
		cachePrefix := codec.Prefix(codec.CacheTable, codec.DelimCache)

		var err error
		n, err = ex.db.store.Rewrite(func(line string) ([]byte, bool, error) {
			if _, ok := codec.Payload(line, metaPrefix); ok {
				return []byte(linestore.Tombstone(line)), false, nil
			}
			if _, ok := codec.Payload(line, dataPrefix); ok {
				return []byte(linestore.Tombstone(line)), false, nil
			}
			if payload, ok := codec.Payload(line, cachePrefix); ok {
				rec, err := codec.DecodeRecord(payload)
				if err != nil {
					return nil, false, err
				}
				if rec.Table == ex.table {
					return []byte(linestore.Tombstone(line)), false, nil
				}
			}
			return nil, false, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"table": ex.table, "lines": n}).Debug("linesql::ddl_executor::dropTableExecutor.execute; dropped table")
	return affected(0), nil
}

// truncateTableExecutor is the executor for the truncate table query
type truncateTableExecutor struct {
	db    *DB
	table string
}

var _ executor = (*truncateTableExecutor)(nil)

func (ex *truncateTableExecutor) execute() (*Result, error) {
	log.WithFields(log.Fields{"table": ex.table}).Info("linesql::ddl_executor::truncateTableExecutor.execute; start;")

	n := 0
	err := ex.db.exclusive(func() error {
		meta, at, err := ex.db.catalog.read(ex.table)
		if err != nil {
			return err
		}

		prefix := codec.Prefix(ex.table, codec.DelimData)
		n, err = ex.db.store.Rewrite(func(line string) ([]byte, bool, error) {
			if _, ok := codec.Payload(line, prefix); ok {
				return []byte(linestore.Tombstone(line)), false, nil
			}
			return nil, false, nil
		})
		if err != nil {
			return fmt.Errorf("linesql::ddl_executor::truncateTableExecutor.execute; %v", err)
		}

		return ex.db.catalog.touch(meta, at)
	})
	if err != nil {
		return nil, err
	}
	return affected(n), nil
}

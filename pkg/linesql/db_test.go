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
	"testing"
	"time"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDbPath = "/data/linesql.db"

type dbTestHarness struct {
	fs   afero.Fs
	conf *common.Config
	db   *DB
}

func newDbTestHarness(t *testing.T) *dbTestHarness {
	conf := common.NewDefaultConfig()
	conf.DbPath = testDbPath
	conf.Cache.MaxEntries = 4
	conf.Lock.WaitTimeout = 100 * time.Millisecond
	conf.Lock.PollInterval = 5 * time.Millisecond

	fs := afero.NewMemMapFs()
	db, err := Open(conf, fs)
	require.Nil(t, err, "Unexpected error in opening the database")

	h := &dbTestHarness{fs: fs, conf: conf, db: db}
	h.exec(t, "CREATE TABLE T (id INT PRIMARY KEY, a INT, name VARCHAR DEFAULT 'none');")
	h.exec(t, "INSERT INTO T (id, a) VALUES (1, 1), (2, 2), (3, 3);")
	return h
}

func (h *dbTestHarness) exec(t *testing.T, sql string) *Result {
	res, err := h.db.Execute(sql)
	require.Nil(t, err, "Unexpected error in executing %s", sql)
	return res
}

func (h *dbTestHarness) execErr(t *testing.T, sql string) error {
	_, err := h.db.Execute(sql)
	require.NotNil(t, err, "Unexpected success in executing %s", sql)
	return err
}

func TestCreateInsertSelect(t *testing.T) {
	h := newDbTestHarness(t)

	res := h.exec(t, "SELECT * FROM T WHERE a >= 2 ORDER BY a DESC")
	assert.Equal(t, []string{"id", "a", "name"}, res.Columns, "Wrong result columns")
	assert.Equal(t, []codec.Row{
		{"id": int64(3), "a": int64(3), "name": "none"},
		{"id": int64(2), "a": int64(2), "name": "none"},
	}, res.Rows, "Wrong result rows")
	assert.False(t, res.Hit, "Unexpected cache hit on the first select")

	res = h.exec(t, "SELECT id AS num, a FROM T WHERE id = 1")
	assert.Equal(t, []string{"num", "a"}, res.Columns, "Wrong result columns with alias")
	assert.Equal(t, []codec.Row{{"num": int64(1), "a": int64(1)}}, res.Rows, "Wrong projected rows")
}

func TestClearThenRescan(t *testing.T) {
	h := newDbTestHarness(t)
	query := "SELECT a FROM T WHERE a = 2"

	res := h.exec(t, query)
	assert.False(t, res.Hit, "Unexpected cache hit on a miss")
	assert.Equal(t, []codec.Row{{"a": int64(2)}}, res.Rows, "Wrong rows on miss")

	res = h.exec(t, query)
	assert.True(t, res.Hit, "Expected a cache hit on the repeated query")
	assert.Equal(t, []string{"a"}, res.Columns, "Columns are missing on a cache hit")
	assert.Equal(t, []codec.Row{{"a": int64(2)}}, res.Rows, "Wrong rows on hit")

	n, err := h.db.ClearCache()
	require.Nil(t, err, "Unexpected error in clearing the cache")
	assert.Equal(t, 1, n, "Wrong number of removed records")

	res = h.exec(t, query)
	assert.False(t, res.Hit, "Unexpected cache hit after clearing the cache")
	assert.Equal(t, []codec.Row{{"a": int64(2)}}, res.Rows, "Wrong rows after clearing the cache")
}

func TestMutationInvalidatesCachedResult(t *testing.T) {
	h := newDbTestHarness(t)
	query := "SELECT id FROM T WHERE a > 1 ORDER BY id"

	h.exec(t, query)
	require.True(t, h.exec(t, query).Hit, "Expected a cache hit on the repeated query")

	res := h.exec(t, "INSERT INTO T VALUES (4, 4, 'd');")
	assert.Equal(t, int64(1), res.Affected, "Wrong affected count of insert")

	res = h.exec(t, query)
	assert.False(t, res.Hit, "Unexpected hit of a stale record")
	assert.Equal(t, []codec.Row{{"id": int64(2)}, {"id": int64(3)}, {"id": int64(4)}}, res.Rows, "Wrong rows after insert")

	count, err := h.db.Cache().Count("T", query)
	require.Nil(t, err, "Unexpected error in counting cache records")
	assert.Equal(t, 1, count, "Expected a single record of the query")
}

func TestInsertConstraints(t *testing.T) {
	h := newDbTestHarness(t)
	h.exec(t, "CREATE TABLE U (id INT PRIMARY KEY, email VARCHAR UNIQUE, score DOUBLE, ok BOOL NOT NULL DEFAULT true);")

	res := h.exec(t, "INSERT INTO U (id, email, score) VALUES (1, 'a@x', 2);")
	assert.Equal(t, int64(1), res.Affected, "Wrong affected count")

	res = h.exec(t, "SELECT * FROM U")
	assert.Equal(t, []codec.Row{{"id": int64(1), "email": "a@x", "score": float64(2), "ok": true}}, res.Rows, "Int wasn't converted or default wasn't applied")

	invalid := []string{
		"INSERT INTO U (id, email) VALUES (1, 'b@x');",
		"INSERT INTO U (id, email) VALUES (2, 'a@x');",
		"INSERT INTO U (id, email) VALUES (2, 'b@x'), (3, 'b@x');",
		"INSERT INTO U (id, ok) VALUES (2, NULL);",
		"INSERT INTO U (id, email) VALUES ('two', 'b@x');",
		"INSERT INTO U (id, missing) VALUES (2, 1);",
		"INSERT INTO U (id, email) VALUES (2);",
		"INSERT INTO U (id, id) VALUES (2, 3);",
		"INSERT INTO V (id) VALUES (2);",
		"INSERT INTO U (score) VALUES (1.5);",
	}
	for _, sql := range invalid {
		h.execErr(t, sql)
	}

	res = h.exec(t, "SELECT id FROM U")
	assert.Equal(t, 1, len(res.Rows), "A failed insert modified the table")
}

func TestUpdateAndDelete(t *testing.T) {
	h := newDbTestHarness(t)

	res := h.exec(t, "UPDATE T SET a = a + 10, name = 'big' WHERE id >= 2")
	assert.Equal(t, int64(2), res.Affected, "Wrong affected count of update")

	res = h.exec(t, "SELECT * FROM T ORDER BY id")
	assert.Equal(t, []codec.Row{
		{"id": int64(1), "a": int64(1), "name": "none"},
		{"id": int64(2), "a": int64(12), "name": "big"},
		{"id": int64(3), "a": int64(13), "name": "big"},
	}, res.Rows, "Wrong rows after update")

	err := h.execErr(t, "UPDATE T SET id = 1 WHERE id = 2")
	assert.IsType(t, icommon.InvalidQueryError{}, err, "Expected a unique violation")
	h.execErr(t, "UPDATE T SET missing = 1")
	h.execErr(t, "UPDATE T SET a = 'x' WHERE id = 1")

	res = h.exec(t, "DELETE FROM T WHERE name = 'big'")
	assert.Equal(t, int64(2), res.Affected, "Wrong affected count of delete")

	res = h.exec(t, "SELECT id FROM T")
	assert.Equal(t, []codec.Row{{"id": int64(1)}}, res.Rows, "Wrong rows after delete")

	res = h.exec(t, "DELETE FROM T WHERE id = 42")
	assert.Equal(t, int64(0), res.Affected, "Unexpected rows deleted")
}

func TestFaultOnFirstRowFailsStatement(t *testing.T) {
	h := newDbTestHarness(t)

	err := h.execErr(t, "SELECT id FROM T WHERE a / 0 = 1")
	assert.IsType(t, icommon.EvaluatorError{}, errors.Cause(err), "Expected an evaluator error")

	err = h.execErr(t, "DELETE FROM T WHERE a / 0 = 1")
	assert.IsType(t, icommon.EvaluatorError{}, errors.Cause(err), "Expected an evaluator error")

	res := h.exec(t, "SELECT id FROM T")
	assert.Equal(t, 3, len(res.Rows), "A failed delete modified the table")
}

func TestGroupHavingDistinctLimit(t *testing.T) {
	h := newDbTestHarness(t)
	h.exec(t, "INSERT INTO T (id, a, name) VALUES (4, 1, 'x'), (5, 2, 'y');")

	res := h.exec(t, "SELECT a, id FROM T GROUP BY a ORDER BY a")
	assert.Equal(t, []codec.Row{
		{"a": int64(1), "id": int64(1)},
		{"a": int64(2), "id": int64(2)},
		{"a": int64(3), "id": int64(3)},
	}, res.Rows, "Expected the first row of every group")

	res = h.exec(t, "SELECT a FROM T GROUP BY a HAVING a > 1 ORDER BY a DESC")
	assert.Equal(t, []codec.Row{{"a": int64(3)}, {"a": int64(2)}}, res.Rows, "Wrong rows with having")

	res = h.exec(t, "SELECT DISTINCT name AS n FROM T ORDER BY n")
	assert.Equal(t, []codec.Row{{"n": "none"}, {"n": "x"}, {"n": "y"}}, res.Rows, "Wrong distinct rows")

	res = h.exec(t, "SELECT id FROM T ORDER BY id LIMIT 2 OFFSET 1")
	assert.Equal(t, []codec.Row{{"id": int64(2)}, {"id": int64(3)}}, res.Rows, "Wrong rows with limit and offset")

	res = h.exec(t, "SELECT id FROM T ORDER BY id LIMIT 2 OFFSET 10")
	assert.Equal(t, 0, len(res.Rows), "Expected no rows past the end")

	h.execErr(t, "SELECT id FROM T ORDER BY missing")
	h.execErr(t, "SELECT missing FROM T")
	h.execErr(t, "SELECT id FROM T LIMIT -1")
}

func TestExplain(t *testing.T) {
	h := newDbTestHarness(t)

	tests := []struct {
		sql      string
		strategy string
	}{
		{"EXPLAIN SELECT * FROM T WHERE id = 2", "scan_once"},
		{"EXPLAIN SELECT * FROM T LIMIT 1", "scan_once"},
		{"EXPLAIN SELECT * FROM T WHERE a = 2", "full_scan"},
		{"EXPLAIN SELECT * FROM T", "full_scan"},
	}
	for _, test := range tests {
		res := h.exec(t, test.sql)
		assert.Equal(t, []string{"table", "strategy"}, res.Columns, "Wrong explain columns")
		assert.Equal(t, []codec.Row{{"table": "T", "strategy": test.strategy}}, res.Rows, "Wrong plan for %s", test.sql)
	}

	h.execErr(t, "EXPLAIN DELETE FROM T")
}

func TestDDL(t *testing.T) {
	h := newDbTestHarness(t)

	err := h.execErr(t, "CREATE TABLE T (id INT);")
	assert.IsType(t, icommon.InvalidQueryError{}, err, "Expected an error for an existing table")
	h.execErr(t, "CREATE TABLE __hidden (id INT);")
	h.execErr(t, "CREATE TABLE D (id INT, id INT);")
	h.execErr(t, "CREATE TABLE D (id INT PRIMARY KEY, b INT PRIMARY KEY);")
	h.execErr(t, "CREATE TABLE D (id INT DEFAULT 'x');")

	res := h.exec(t, "TRUNCATE TABLE T;")
	assert.Equal(t, int64(3), res.Affected, "Wrong affected count of truncate")
	res = h.exec(t, "SELECT * FROM T")
	assert.Equal(t, 0, len(res.Rows), "Rows left after truncate")

	h.exec(t, "INSERT INTO T (id) VALUES (7);")
	h.exec(t, "SELECT id FROM T")
	h.exec(t, "DROP TABLE T;")

	count, err := h.db.Cache().Count("T", "")
	require.Nil(t, err, "Unexpected error in counting cache records")
	assert.Equal(t, 0, count, "Cache records of a dropped table are left")

	err = h.execErr(t, "SELECT id FROM T")
	assert.IsType(t, icommon.NotFoundError{}, errors.Cause(err), "Expected a not found error for a dropped table")
	h.execErr(t, "DROP TABLE T;")

	h.exec(t, "CREATE TABLE T (id INT);")
	res = h.exec(t, "SELECT * FROM T")
	assert.Equal(t, 0, len(res.Rows), "A recreated table has rows")
}

func TestTombstonesKeepFileSize(t *testing.T) {
	h := newDbTestHarness(t)

	before, err := h.db.store.Size()
	require.Nil(t, err, "Unexpected error in reading the file size")

	h.exec(t, "DELETE FROM T WHERE id = 1")

	after, err := h.db.store.Size()
	require.Nil(t, err, "Unexpected error in reading the file size")

	// the only growth is the new metadata line
	meta, _, err := h.db.catalog.read("T")
	require.Nil(t, err, "Unexpected error in reading the metadata")
	line := codec.FormatLine("T", codec.DelimMeta, codec.EncodeMeta(meta))
	assert.Equal(t, before+int64(len(line)), after, "Tombstones changed the file size")
}

func TestErrorsAreRecorded(t *testing.T) {
	h := newDbTestHarness(t)

	h.execErr(t, "SELEC id FROM T")
	h.execErr(t, "SELECT id FROM Missing")

	errs := h.db.Errors()
	require.Equal(t, 2, len(errs), "Wrong number of recorded errors")
	assert.IsType(t, icommon.InvalidQueryError{}, errs[0], "Expected a parse error first")

	h.db.ClearErrors()
	assert.Equal(t, 0, len(h.db.Errors()), "Errors left after clearing")
}

func TestReopenKeepsData(t *testing.T) {
	h := newDbTestHarness(t)

	db, err := Open(h.conf, h.fs)
	require.Nil(t, err, "Unexpected error in reopening the database")

	res, err := db.Execute("SELECT id FROM T WHERE id = 3")
	require.Nil(t, err, "Unexpected error in select after reopening")
	assert.Equal(t, []codec.Row{{"id": int64(3)}}, res.Rows, "Wrong rows after reopening")
}

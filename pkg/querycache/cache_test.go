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

package querycache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/dr0pdb/linedb/pkg/lock"
	"github.com/dr0pdb/linedb/pkg/scanner"
	"github.com/dr0pdb/linedb/test"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDbPath = "/db/querycache.db"
	testQuery  = "SELECT * FROM T WHERE a = 2"
)

var testLockConfig = common.LockConfig{
	WaitTimeout:     50 * time.Millisecond,
	DeadlockTimeout: 30 * time.Second,
	PollInterval:    5 * time.Millisecond,
}

type testMetas struct {
	mu      sync.Mutex
	lastMod map[string]int64
}

func (m *testMetas) LastMod(table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lm, ok := m.lastMod[table]
	if !ok {
		return 0, icommon.NewNotFoundError(fmt.Sprintf("table %s not found", table))
	}
	return lm, nil
}

func (m *testMetas) set(table string, lastMod int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMod[table] = lastMod
}

// testRunner executes SELECTs with the table scanner and counts mutations.
type testRunner struct {
	h *cacheTestHarness

	calls         int
	enabledDuring []bool
	afterRunFn    func()
}

func (r *testRunner) Run(query string) (*Result, error) {
	r.calls++
	r.enabledDuring = append(r.enabledDuring, r.h.cache.Enabled())

	if frontend.IsMutating(query) {
		r.h.metas.set(test.TestTable, time.Now().UnixNano())
		return &Result{Affected: 1}, nil
	}

	st, err := frontend.Parse(query)
	if err != nil {
		return nil, err
	}
	sel := st.(*frontend.SelectStatement)

	rows, err := r.h.scanner.ScanFullTables(sel.From.Name, sel.Where)
	if err != nil {
		return nil, err
	}

	if r.afterRunFn != nil {
		r.afterRunFn()
		r.afterRunFn = nil
	}
	return &Result{Rows: rows}, nil
}

type cacheTestHarness struct {
	fs      afero.Fs
	store   *linestore.Store
	locker  *lock.Manager
	scanner *scanner.Scanner
	metas   *testMetas
	runner  *testRunner
	errs    *common.ErrorStack
	cache   *QueryCache
}

func newCacheTestHarness(t *testing.T, maxEntries int) *cacheTestHarness {
	fs := afero.NewMemMapFs()
	store := linestore.NewStore(fs, testDbPath)
	require.Nil(t, store.Init(), "Unexpected error in initializing the store")

	locker := lock.NewManager(store, testLockConfig)
	compiler, err := eval.NewCompiler(eval.DefaultCompileCacheSize)
	require.Nil(t, err, "Unexpected error in creating the compiler")

	h := &cacheTestHarness{
		fs:      fs,
		store:   store,
		locker:  locker,
		scanner: scanner.NewScanner(store, locker, compiler),
		metas:   &testMetas{lastMod: map[string]int64{test.TestTable: 0, "U": 0}},
		errs:    &common.ErrorStack{},
	}
	h.runner = &testRunner{h: h}
	h.cache = New(common.CacheConfig{Enabled: true, MaxEntries: maxEntries}, Deps{
		Store:    store,
		Locker:   locker,
		Compiler: compiler,
		Runner:   h.runner,
		Metas:    h.metas,
		Errors:   h.errs,
	})

	for _, v := range test.TestValues {
		token, err := codec.EncodeRow(codec.Row{"a": v})
		require.Nil(t, err, "Unexpected error in encoding row")
		require.Nil(t, store.Append(codec.FormatLine(test.TestTable, codec.DelimData, token)), "Unexpected error in appending row")
	}
	return h
}

func (h *cacheTestHarness) size(t *testing.T) int64 {
	size, err := h.store.Size()
	require.Nil(t, err, "Unexpected error in reading the size")
	return size
}

func (h *cacheTestHarness) count(t *testing.T, table, query string) int {
	n, err := h.cache.Count(table, query)
	require.Nil(t, err, "Unexpected error in counting records")
	return n
}

// fakeClock makes record times deterministic and strictly increasing.
func fakeClock() (restore func()) {
	var tick int64 = 1000
	timeNow = func() time.Time {
		tick++
		return time.Unix(0, tick)
	}
	return func() { timeNow = time.Now }
}

func TestSaveLoadRoundTrip(t *testing.T) {
	h := newCacheTestHarness(t, 8)
	rows := []codec.Row{
		{"a": int64(2), "f": 1.5, "s": "x:y#z", "b": true, "n": nil},
		{"a": int64(-7), "f": 0.0, "s": "", "b": false, "n": nil},
	}

	require.Nil(t, h.cache.Save(test.TestTable, testQuery, rows), "Unexpected error in saving")

	loaded, ok, err := h.cache.LoadRows(test.TestTable, "select *   from T where a = 2;")
	assert.Nil(t, err, "Unexpected error in loading")
	assert.True(t, ok, "Expected a valid record")
	assert.Equal(t, rows, loaded, "Loaded rows differ from the saved ones")

	entries, err := h.cache.Load(test.TestTable, testQuery)
	assert.Nil(t, err, "Unexpected error in loading entries")
	require.Equal(t, 1, len(entries), "Wrong number of entries")
	assert.Equal(t, frontend.Canonicalize(testQuery), entries[0].Query, "Wrong normalized query")
	assert.Equal(t, test.TestTable, entries[0].Table, "Wrong table")
	assert.True(t, entries[0].PayloadLen > 0, "Payload length should be reported")

	_, ok, err = h.cache.LoadRows(test.TestTable, "SELECT * FROM T WHERE a = 3")
	assert.Nil(t, err, "Unexpected error in loading")
	assert.False(t, ok, "Unknown query should not be found")

	_, ok, err = h.cache.LoadRows("U", testQuery)
	assert.Nil(t, err, "Unexpected error in loading")
	assert.False(t, ok, "Records are scoped to their table")
}

func TestApplyClearThenRescan(t *testing.T) {
	h := newCacheTestHarness(t, 8)
	expected := []codec.Row{{"a": int64(2)}}

	res, err := h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	assert.False(t, res.Hit, "First execution should be a miss")
	assert.Equal(t, expected, res.Rows, "Wrong rows")
	assert.Equal(t, 1, h.runner.calls, "Miss should execute the query")
	assert.Equal(t, []bool{false}, h.runner.enabledDuring, "Caching should be suspended during execution")
	assert.True(t, h.cache.Enabled(), "Caching should be restored")

	res, err = h.cache.Apply(test.TestTable, "SELECT * FROM T WHERE a = 2;")
	require.Nil(t, err, "Unexpected error in applying")
	assert.True(t, res.Hit, "Second execution should be a hit")
	assert.Equal(t, expected, res.Rows, "Wrong cached rows")
	assert.Equal(t, 1, h.runner.calls, "Hit should not execute the query")

	n, err := h.cache.Clear()
	assert.Nil(t, err, "Unexpected error in clearing")
	assert.Equal(t, 1, n, "Wrong number of cleared records")

	res, err = h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	assert.False(t, res.Hit, "Cleared cache should miss")
	assert.Equal(t, expected, res.Rows, "Wrong rows after rescan")
	assert.Equal(t, 2, h.runner.calls, "Query should be executed again")
}

func TestSingleRecordPerQuery(t *testing.T) {
	h := newCacheTestHarness(t, 8)

	for i := 0; i < 4; i++ {
		_, err := h.cache.Apply(test.TestTable, testQuery)
		require.Nil(t, err, "Unexpected error in applying")

		// invalidate so that the next apply inserts again
		entries, err := h.cache.Load(test.TestTable, testQuery)
		require.Nil(t, err, "Unexpected error in loading entries")
		require.Equal(t, 1, len(entries), "Exactly one record per query")
		h.metas.set(test.TestTable, entries[0].Time)
	}
	assert.Equal(t, 4, h.runner.calls, "Every apply should miss")

	require.Nil(t, h.cache.Save(test.TestTable, testQuery, nil), "Unexpected error in saving")
	require.Nil(t, h.cache.Save(test.TestTable, testQuery, nil), "Unexpected error in saving")
	assert.Equal(t, 1, h.count(t, test.TestTable, testQuery), "Save should replace the existing record")
}

func TestStaleRecordIsNotAHit(t *testing.T) {
	h := newCacheTestHarness(t, 8)

	_, err := h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	entries, err := h.cache.Load(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in loading entries")
	require.Equal(t, 1, len(entries), "Expected a record")

	h.metas.set(test.TestTable, entries[0].Time-1)
	_, ok, err := h.cache.LoadRows(test.TestTable, testQuery)
	assert.Nil(t, err, "Unexpected error in loading")
	assert.True(t, ok, "Record written after the modification is valid")

	h.metas.set(test.TestTable, entries[0].Time)
	_, ok, err = h.cache.LoadRows(test.TestTable, testQuery)
	assert.Nil(t, err, "Unexpected error in loading")
	assert.False(t, ok, "Record must be strictly newer than the modification")
	assert.Equal(t, 1, h.count(t, test.TestTable, testQuery), "Stale records are not removed by lookups")

	res, err := h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	assert.False(t, res.Hit, "Stale record should not be a hit")
	assert.Equal(t, 2, h.runner.calls, "Stale record should cause a rescan")
}

func TestMutationAdvancesStaleness(t *testing.T) {
	h := newCacheTestHarness(t, 8)

	_, err := h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")

	res, err := h.cache.Apply(test.TestTable, "INSERT INTO T (a) VALUES (2)")
	require.Nil(t, err, "Unexpected error in applying a mutation")
	assert.Equal(t, int64(1), res.Affected, "Mutation result should be returned unchanged")

	res, err = h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	assert.False(t, res.Hit, "Mutation should invalidate the record")
}

func TestRecordStaleAtBirthIsNeverAHit(t *testing.T) {
	// a coarse clock stuck at one tick while Touch bumped lastmod past it
	timeNow = func() time.Time { return time.Unix(0, 5000) }
	defer func() { timeNow = time.Now }()

	h := newCacheTestHarness(t, 8)
	h.metas.set(test.TestTable, 5001)

	res, err := h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	assert.False(t, res.Hit, "Unexpected hit on an empty cache")
	assert.Equal(t, 1, h.count(t, test.TestTable, testQuery), "Result should still be recorded")

	res, err = h.cache.Apply(test.TestTable, testQuery)
	require.Nil(t, err, "Unexpected error in applying")
	assert.False(t, res.Hit, "A record not newer than lastmod must not be a hit")
	assert.Equal(t, []codec.Row{{"a": int64(2)}}, res.Rows, "Rows should come from a rescan")
	assert.Equal(t, 2, h.runner.calls, "Expected a rescan")
	assert.Equal(t, 1, h.count(t, test.TestTable, testQuery), "Expected a single record of the query")
}

func TestEvictionBound(t *testing.T) {
	defer fakeClock()()
	const maxEntries = 3
	h := newCacheTestHarness(t, maxEntries)

	require.Nil(t, h.cache.Save("U", "SELECT * FROM U", nil), "Unexpected error in saving")

	var queries []string
	for i := 0; i < 2*maxEntries; i++ {
		q := fmt.Sprintf("SELECT * FROM T WHERE a = %d", i)
		queries = append(queries, frontend.Canonicalize(q))

		_, err := h.cache.Apply(test.TestTable, q)
		require.Nil(t, err, "Unexpected error in applying %q", q)
		assert.True(t, h.count(t, test.TestTable, "") <= maxEntries, "Too many records after %q", q)
	}

	entries, err := h.cache.Load(test.TestTable, "")
	require.Nil(t, err, "Unexpected error in loading entries")
	require.Equal(t, maxEntries, len(entries), "Table should be at capacity")
	for i, e := range entries {
		assert.Equal(t, queries[len(queries)-maxEntries+i], e.Query, "Oldest records should be evicted first")
	}
	assert.Equal(t, 1, h.count(t, "U", ""), "Eviction must not touch other tables")
}

func TestEvictionOrderUsesPayloadLength(t *testing.T) {
	h := newCacheTestHarness(t, 2)

	big := []codec.Row{{"s": "a long string value that makes the payload larger"}}
	for _, r := range []*codec.CacheRecord{
		mustRecord(t, 10, test.TestTable, "Q BIG", big),
		mustRecord(t, 10, test.TestTable, "Q SMALL", nil),
	} {
		require.Nil(t, h.store.Append(codec.FormatLine(codec.CacheTable, codec.DelimCache, codec.EncodeRecord(r))), "Unexpected error in appending")
	}

	require.Nil(t, h.cache.Save(test.TestTable, "Q NEW", nil), "Unexpected error in saving")

	assert.Equal(t, 1, h.count(t, test.TestTable, "Q BIG"), "Larger record of the same age should survive")
	assert.Equal(t, 0, h.count(t, test.TestTable, "Q SMALL"), "Smaller record of the same age should be evicted first")
	assert.Equal(t, 1, h.count(t, test.TestTable, "Q NEW"), "New record should be inserted")
}

func TestEvictionFallbackStaysInTable(t *testing.T) {
	h := newCacheTestHarness(t, 2)

	for _, r := range []*codec.CacheRecord{
		mustRecord(t, 1, "U", "SELECT * FROM U", nil),
		mustRecord(t, 2, test.TestTable, "", nil),
		mustRecord(t, 3, test.TestTable, "Q3", nil),
	} {
		require.Nil(t, h.store.Append(codec.FormatLine(codec.CacheTable, codec.DelimCache, codec.EncodeRecord(r))), "Unexpected error in appending")
	}

	require.Nil(t, h.cache.Save(test.TestTable, "Q4", nil), "Unexpected error in saving")

	entries, err := h.cache.Load(test.TestTable, "")
	require.Nil(t, err, "Unexpected error in loading entries")
	require.Equal(t, 2, len(entries), "Table should be at capacity")
	assert.Equal(t, "Q3", entries[0].Query, "Record without a query key should be evicted")
	assert.Equal(t, "Q4", entries[1].Query, "New record should be inserted")
	assert.Equal(t, 1, h.count(t, "U", ""), "Fallback must not evict another table")
}

func mustRecord(t *testing.T, time int64, table, query string, rows []codec.Row) *codec.CacheRecord {
	r, err := codec.NewCacheRecord(time, table, query, rows)
	require.Nil(t, err, "Unexpected error in creating record")
	return r
}

func TestVolatileQueryIsNotCached(t *testing.T) {
	h := newCacheTestHarness(t, 8)
	queries := []string{
		"SELECT * FROM T WHERE a < RANDOM()",
		"SELECT * FROM T WHERE a < NOW()",
		"SELECT * FROM T WHERE CURRENT_DATE = CURRENT_DATE",
	}

	for _, q := range queries {
		res, err := h.cache.Apply(test.TestTable, q)
		require.Nil(t, err, "Unexpected error in applying %q", q)
		assert.False(t, res.Hit, "Volatile query %q can't be a hit", q)

		_, ok, err := h.cache.LoadRows(test.TestTable, q)
		assert.Nil(t, err, "Unexpected error in loading")
		assert.False(t, ok, "Volatile query %q should not be cached", q)
	}
	assert.Equal(t, 0, h.count(t, test.TestTable, ""), "No record should be written")
}

func TestMutationBypassesCache(t *testing.T) {
	h := newCacheTestHarness(t, 8)
	require.Nil(t, h.cache.Save(test.TestTable, "DELETE FROM T", nil), "Unexpected error in saving")

	for _, q := range []string{"INSERT INTO T (a) VALUES (4)", "UPDATE T SET a = 1", "DELETE FROM T"} {
		before := h.runner.calls
		res, err := h.cache.Apply(test.TestTable, q)
		require.Nil(t, err, "Unexpected error in applying %q", q)
		assert.False(t, res.Hit, "Mutation %q must not read the cache", q)
		assert.Equal(t, before+1, h.runner.calls, "Mutation %q should always execute", q)
		assert.False(t, h.runner.enabledDuring[len(h.runner.enabledDuring)-1], "Caching should be suspended during %q", q)
	}

	assert.True(t, h.cache.Enabled(), "Caching should be restored")
	assert.Equal(t, 1, h.count(t, test.TestTable, ""), "Mutations must not create records")
}

func TestDisabledCacheIsPassThrough(t *testing.T) {
	h := newCacheTestHarness(t, 8)
	h.cache.SetEnabled(false)

	for i := 0; i < 2; i++ {
		res, err := h.cache.Apply(test.TestTable, testQuery)
		require.Nil(t, err, "Unexpected error in applying")
		assert.False(t, res.Hit, "Disabled cache can't hit")
	}
	assert.Equal(t, 2, h.runner.calls, "Every apply should execute")
	assert.Equal(t, 0, h.count(t, test.TestTable, ""), "Disabled cache should not store")
	assert.False(t, h.cache.Enabled(), "Pass through should not enable the cache")
}

func TestSuspendNests(t *testing.T) {
	h := newCacheTestHarness(t, 8)

	outer := h.cache.Suspend()
	inner := h.cache.Suspend()
	assert.False(t, h.cache.Enabled(), "Suspended cache should be disabled")
	inner()
	assert.False(t, h.cache.Enabled(), "Inner resume should keep the outer suspension")
	outer()
	assert.True(t, h.cache.Enabled(), "Outer resume should restore the cache")
}

func TestRemove(t *testing.T) {
	h := newCacheTestHarness(t, 16)
	for i := 0; i < 4; i++ {
		require.Nil(t, h.cache.Save(test.TestTable, fmt.Sprintf("SELECT * FROM T WHERE a = %d", i), nil), "Unexpected error in saving")
	}
	require.Nil(t, h.cache.Save("U", "SELECT * FROM U", nil), "Unexpected error in saving")
	size := h.size(t)

	n, err := h.cache.Remove("select * from T where a = 1", nil, 0)
	assert.Nil(t, err, "Unexpected error in removing")
	assert.Equal(t, 1, n, "Only the record of the query should be removed")
	assert.Equal(t, 0, h.count(t, test.TestTable, "SELECT * FROM T WHERE a = 1"), "Record should be removed")

	// TABLE is a keyword so the field is referenced through the builders
	byTable := frontend.Binary(frontend.OperatorEqual, frontend.Ident(fieldTable), frontend.Literal("U"))
	n, err = h.cache.Remove("", byTable, 0)
	assert.Nil(t, err, "Unexpected error in removing")
	assert.Equal(t, 1, n, "Only the records of U should be removed")

	n, err = h.cache.Remove("", nil, 2)
	assert.Nil(t, err, "Unexpected error in removing")
	assert.Equal(t, 2, n, "Removal should stop at the limit")
	assert.Equal(t, 1, h.count(t, test.TestTable, ""), "One record should be left")

	expr, err := frontend.ParseExpression("nosuch = 1")
	require.Nil(t, err, "Unexpected error in parsing")
	n, err = h.cache.Remove("", expr, 0)
	assert.IsType(t, icommon.EvaluatorError{}, err, "Faulty predicate should abort the removal")
	assert.Equal(t, 0, n, "Nothing should be removed")
	assert.Equal(t, 1, h.count(t, test.TestTable, ""), "Record should survive a failed removal")

	assert.Equal(t, size, h.size(t), "Tombstones must preserve the file size")
	assert.Equal(t, lock.Unlocked, h.locker.Held(), "Lock should be released")
}

func TestInsertFailureDegradesToUncached(t *testing.T) {
	h := newCacheTestHarness(t, 8)

	// another process grabs the lock between the scan and the insertion
	other := lock.NewManager(h.store, testLockConfig)
	h.runner.afterRunFn = func() {
		require.Nil(t, other.AcquireExclusive(), "Unexpected error in acquiring the lock")
	}

	res, err := h.cache.Apply(test.TestTable, testQuery)
	assert.Nil(t, err, "Failed insertion should not fail the read")
	require.NotNil(t, res, "Expected a result")
	assert.Equal(t, []codec.Row{{"a": int64(2)}}, res.Rows, "Rows should be returned")
	assert.True(t, h.errs.Pending(), "Failed insertion should be recorded")
	assert.IsType(t, icommon.LockTimeoutError{}, errors.Cause(h.errs.Last()), "Wrong recorded error")

	res, err = h.cache.Apply(test.TestTable, testQuery)
	assert.IsType(t, icommon.LockTimeoutError{}, err, "Lookup should fail while the lock is held elsewhere")
	assert.Nil(t, res, "No result without the lock")

	require.Nil(t, other.Release(), "Unexpected error in releasing the lock")
	assert.Equal(t, 0, h.count(t, test.TestTable, ""), "Nothing should be cached")
}

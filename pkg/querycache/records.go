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
	"io"

	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/dr0pdb/linedb/pkg/metrics"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Names of the record fields visible to predicates
const (
	fieldTime  = "time"
	fieldTable = "table"
	fieldQuery = "query"
)

// Entry describes a cache record without its result set.
type Entry struct {
	Time       int64
	Table      string
	Query      string
	PayloadLen int
}

// Save stores rows as the result of query on table, replacing an existing record of the query.
func (qc *QueryCache) Save(table, query string, rows []codec.Row) error {
	return qc.withLock(qc.locker.AcquireExclusive, func() error {
		return qc.save(table, frontend.Canonicalize(query), timeNow().UnixNano(), rows)
	})
}

// Count returns the number of records of the query on table, stale ones included.
// An empty query counts every record of the table.
func (qc *QueryCache) Count(table, query string) (n int, err error) {
	err = qc.withLock(qc.locker.AcquireShared, func() error {
		n, err = qc.count(table, canonicalize(query))
		return err
	})
	return n, err
}

// Load returns the records of the query on table with the result sets replaced by their size.
// An empty query loads every record of the table.
func (qc *QueryCache) Load(table, query string) (entries []Entry, err error) {
	err = qc.withLock(qc.locker.AcquireShared, func() error {
		entries, err = qc.load(table, canonicalize(query))
		return err
	})
	return entries, err
}

// LoadRows returns the result set of the first valid record of the query on table.
// ok is false if there is no record or every record is stale.
func (qc *QueryCache) LoadRows(table, query string) (rows []codec.Row, ok bool, err error) {
	err = qc.withLock(qc.locker.AcquireShared, func() error {
		rows, ok, err = qc.loadRows(table, frontend.Canonicalize(query))
		return err
	})
	return rows, ok, err
}

func canonicalize(query string) string {
	if query == "" {
		return ""
	}
	return frontend.Canonicalize(query)
}

//
// The functions below assume that the caller holds the lock.
//

// recordFilter builds the predicate selecting the records of a table and optionally a query.
func recordFilter(table, query string) frontend.Expression {
	expr := []frontend.Expression{
		frontend.Binary(frontend.OperatorEqual, frontend.Ident(fieldTable), frontend.Literal(table)),
	}
	if query != "" {
		expr = append(expr, frontend.Binary(frontend.OperatorEqual, frontend.Ident(fieldQuery), frontend.Literal(query)))
	}
	return frontend.And(expr...)
}

// scan calls fn with every record matching expr until fn returns false.
// The first record is evaluated by the validating evaluator, later records by the fast one.
func (qc *QueryCache) scan(expr frontend.Expression, fn func(rec *codec.CacheRecord) bool) error {
	ev := qc.compiler.Compile(expr).NewEvaluator()
	prefix := codec.Prefix(codec.CacheTable, codec.DelimCache)

	h, err := qc.store.Open(linestore.ModeRead)
	if err != nil {
		return err
	}
	defer h.Close()

	if err = h.SeekToLine(linestore.HeaderLines); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	for {
		line, err := h.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		payload, ok := codec.Payload(line, prefix)
		if !ok {
			continue
		}

		rec, err := codec.DecodeRecord(payload)
		if err != nil {
			return errors.Wrapf(err, "querycache::records::scan; decoding line %d", h.Line()-1)
		}

		match, err := ev.Match(rec.Fields())
		if err != nil {
			return err
		}
		if match && !fn(rec) {
			return nil
		}
	}
}

func (qc *QueryCache) count(table, query string) (int, error) {
	n := 0
	err := qc.scan(recordFilter(table, query), func(*codec.CacheRecord) bool {
		n++
		return true
	})
	return n, err
}

func (qc *QueryCache) load(table, query string) ([]Entry, error) {
	entries := []Entry{}
	err := qc.scan(recordFilter(table, query), func(rec *codec.CacheRecord) bool {
		entries = append(entries, Entry{Time: rec.Time, Table: rec.Table, Query: rec.Query, PayloadLen: rec.PayloadLen()})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (qc *QueryCache) loadRows(table, query string) ([]codec.Row, bool, error) {
	lastMod, err := qc.metas.LastMod(table)
	if err != nil {
		return nil, false, err
	}

	fresh := frontend.Binary(frontend.OperatorGreaterThan, frontend.Ident(fieldTime), frontend.Literal(lastMod))
	var found *codec.CacheRecord
	err = qc.scan(frontend.And(recordFilter(table, query), fresh), func(rec *codec.CacheRecord) bool {
		found = rec
		return false
	})
	if err != nil || found == nil {
		return nil, false, err
	}

	rows, err := found.DecodeRows()
	if err != nil {
		return nil, false, errors.Wrapf(err, "querycache::records::loadRows; decoding rows of %s", query)
	}
	return rows, true, nil
}

// remove tombstones up to limit records matching expr. limit < 1 is unlimited.
// The caller holds the exclusive lock.
func (qc *QueryCache) remove(expr frontend.Expression, limit int) (int, error) {
	ev := qc.compiler.Compile(expr).NewEvaluator()
	prefix := codec.Prefix(codec.CacheTable, codec.DelimCache)

	matched := 0
	n, err := qc.store.Rewrite(func(line string) ([]byte, bool, error) {
		payload, ok := codec.Payload(line, prefix)
		if !ok {
			return nil, false, nil
		}

		rec, err := codec.DecodeRecord(payload)
		if err != nil {
			return nil, false, errors.Wrap(err, "querycache::records::remove; decoding record")
		}

		match, err := ev.Match(rec.Fields())
		if err != nil || !match {
			return nil, false, err
		}

		matched++
		return []byte(linestore.Tombstone(line)), limit > 0 && matched >= limit, nil
	})

	metrics.CacheTombstonesTotal.Add(float64(n))
	if err != nil {
		return n, err
	}

	log.WithFields(log.Fields{"removed": n, "limit": limit}).Debug("querycache::records::remove; tombstoned records")
	return n, nil
}

// save inserts a record under the exclusive lock held by the caller.
// It evicts the oldest records of the table if the table is at capacity and
// drops any existing record of the same query first.
func (qc *QueryCache) save(table, query string, time int64, rows []codec.Row) error {
	rec, err := codec.NewCacheRecord(time, table, query, rows)
	if err != nil {
		return err
	}

	if err = qc.evict(table); err != nil {
		return err
	}

	if _, err = qc.remove(recordFilter(table, query), 0); err != nil {
		return err
	}

	if err = qc.store.Append(codec.FormatLine(codec.CacheTable, codec.DelimCache, codec.EncodeRecord(rec))); err != nil {
		return err
	}

	metrics.CacheInsertsTotal.Inc()
	log.WithFields(log.Fields{
		"table": table,
		"query": query,
		"rows":  len(rows),
		"size":  humanize.Bytes(uint64(rec.PayloadLen())),
	}).Debug("querycache::records::save; cached result")
	return nil
}

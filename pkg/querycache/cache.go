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
	"time"

	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/dr0pdb/linedb/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

var timeNow = time.Now

// Locker is the whole database lock
type Locker interface {
	AcquireShared() error
	AcquireExclusive() error
	Release() error
}

// Runner executes a statement without consulting the cache.
type Runner interface {
	Run(query string) (*Result, error)
}

// MetaSource provides the last modification time of tables.
// It is called while the cache holds the database lock.
type MetaSource interface {
	LastMod(table string) (int64, error)
}

// Result is the outcome of a statement.
type Result struct {
	Columns  []string
	Rows     []codec.Row
	Affected int64

	// Hit is set if the rows were served from the cache
	Hit bool
}

// Deps are the collaborators of the query cache.
type Deps struct {
	Store    *linestore.Store
	Locker   Locker
	Compiler *eval.Compiler
	Runner   Runner
	Metas    MetaSource

	// Errors receives the failures which don't fail the statement, eg. a failed insertion.
	Errors *common.ErrorStack
}

// QueryCache maps (table, normalized query) to a previously computed result set.
// Records live as lines of the hidden cache table in the database file.
//
// A record is a valid hit only if it was written after the last modification of its table.
// Stale records are ignored on lookup and only removed by eviction or invalidation.
type QueryCache struct {
	store    *linestore.Store
	locker   Locker
	compiler *eval.Compiler
	runner   Runner
	metas    MetaSource
	errs     *common.ErrorStack

	maxEntries int
	enabled    *common.ProtectedBool
}

// New creates a new query cache
func New(conf common.CacheConfig, deps Deps) *QueryCache {
	errs := deps.Errors
	if errs == nil {
		errs = &common.ErrorStack{}
	}

	return &QueryCache{
		store:      deps.Store,
		locker:     deps.Locker,
		compiler:   deps.Compiler,
		runner:     deps.Runner,
		metas:      deps.Metas,
		errs:       errs,
		maxEntries: conf.MaxEntries,
		enabled:    common.NewProtectedBool(conf.Enabled),
	}
}

// Enabled reports whether caching is currently active.
func (qc *QueryCache) Enabled() bool {
	return qc.enabled.Get()
}

// SetEnabled turns caching on or off.
func (qc *QueryCache) SetEnabled(enabled bool) {
	qc.enabled.Set(enabled)
}

// Suspend disables caching until the returned function is called.
// The previous state is restored, so suspensions nest.
func (qc *QueryCache) Suspend() (resume func()) {
	prev := qc.enabled.Swap(false)
	return func() {
		qc.enabled.Set(prev)
	}
}

// Apply executes the query through the cache.
//
// Mutating statements and statements executed while caching is disabled run directly.
// Read queries are answered from a valid record when one exists, otherwise they run
// with caching suspended and the result is stored unless the query calls a volatile function.
// Failures to store the result are logged and pushed on the error stack, the rows are returned anyway.
func (qc *QueryCache) Apply(table, query string) (*Result, error) {
	if !qc.Enabled() {
		metrics.CacheBypassesTotal.WithLabelValues("disabled").Inc()
		return qc.runner.Run(query)
	}

	if frontend.IsMutating(query) {
		metrics.CacheBypassesTotal.WithLabelValues("mutation").Inc()
		return qc.run(query)
	}

	normalized := frontend.Canonicalize(query)
	var (
		rows []codec.Row
		hit  bool
	)
	err := qc.withLock(qc.locker.AcquireShared, func() error {
		var err error
		rows, hit, err = qc.loadRows(table, normalized)
		return err
	})
	if err != nil {
		return nil, err
	}

	if hit {
		metrics.CacheHitsTotal.Inc()
		log.WithFields(log.Fields{"table": table, "query": normalized}).Debug("querycache::cache::Apply; hit")
		return &Result{Rows: rows, Hit: true}, nil
	}
	metrics.CacheMissesTotal.Inc()

	// results computed from a table modified after this point are stale.
	// On a coarse clock start may not exceed a lastmod bumped by Touch within
	// the same tick; the record is then stale at birth and never a wrong hit.
	start := timeNow().UnixNano()
	res, err := qc.run(query)
	if err != nil {
		return nil, err
	}

	if frontend.HasVolatileFunction(query) {
		metrics.CacheBypassesTotal.WithLabelValues("volatile").Inc()
		log.WithFields(log.Fields{"query": normalized}).Debug("querycache::cache::Apply; not caching a volatile query")
		return res, nil
	}

	err = qc.withLock(qc.locker.AcquireExclusive, func() error {
		return qc.save(table, normalized, start, res.Rows)
	})
	if err != nil {
		log.WithFields(log.Fields{"table": table, "query": normalized, "err": err}).Warn("querycache::cache::Apply; failed to cache result")
		qc.errs.Pushf(err, "querycache::cache::Apply; caching %s", normalized)
	}

	return res, nil
}

// run executes the query with caching suspended.
func (qc *QueryCache) run(query string) (*Result, error) {
	resume := qc.Suspend()
	defer resume()

	return qc.runner.Run(query)
}

// Clear tombstones every record of the cache.
func (qc *QueryCache) Clear() (int, error) {
	return qc.Remove("", nil, 0)
}

// Remove tombstones the records matching expr and returns their number.
//
// expr is evaluated against the fields time, table, query and size of each record.
// A non empty query restricts the removal to the records of that query.
// Removal stops after limit records, limit < 1 is unlimited.
func (qc *QueryCache) Remove(query string, expr frontend.Expression, limit int) (n int, err error) {
	if query != "" {
		byQuery := frontend.Binary(frontend.OperatorEqual, frontend.Ident(fieldQuery), frontend.Literal(frontend.Canonicalize(query)))
		if eval.IsMatchAll(expr) {
			expr = byQuery
		} else {
			expr = frontend.And(expr, byQuery)
		}
	}

	err = qc.withLock(qc.locker.AcquireExclusive, func() error {
		n, err = qc.remove(expr, limit)
		return err
	})
	return n, err
}

// withLock runs fn while holding the lock taken by acquire.
func (qc *QueryCache) withLock(acquire func() error, fn func() error) (err error) {
	if err = acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := qc.locker.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return fn()
}

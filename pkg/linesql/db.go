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
	"path/filepath"
	"sync"
	"time"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/dr0pdb/linedb/pkg/lock"
	"github.com/dr0pdb/linedb/pkg/metrics"
	"github.com/dr0pdb/linedb/pkg/querycache"
	"github.com/dr0pdb/linedb/pkg/scanner"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var timeNow = time.Now

// Result is the outcome of a statement.
type Result = querycache.Result

// DB is a linedb database stored in a single file.
// A DB is safe for concurrent use; statements of one process are serialized.
// Other processes coordinate through the lock stored in the file.
type DB struct {
	conf *common.Config

	store    *linestore.Store
	locker   *lock.Manager
	compiler *eval.Compiler
	catalog  *catalog
	scanner  *scanner.Scanner
	planner  *scanner.Planner
	cache    *querycache.QueryCache

	mu   sync.Mutex
	errs *common.ErrorStack
}

// Open opens the database at conf.DbPath, creating it if needed.
// A nil fs uses the OS file system.
func Open(conf *common.Config, fs afero.Fs) (*DB, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(filepath.Dir(conf.DbPath), 0755); err != nil {
		return nil, errors.Wrapf(err, "linesql::db::Open; creating directory of %s", conf.DbPath)
	}

	store := linestore.NewStore(fs, conf.DbPath)
	if err := store.Init(); err != nil {
		return nil, err
	}

	compiler, err := eval.NewCompiler(eval.DefaultCompileCacheSize)
	if err != nil {
		return nil, err
	}

	db := &DB{
		conf:     conf,
		store:    store,
		locker:   lock.NewManager(store, conf.Lock),
		compiler: compiler,
		errs:     &common.ErrorStack{},
	}
	db.catalog = &catalog{store: store, locker: db.locker}
	db.scanner = scanner.NewScanner(store, db.locker, compiler)
	db.planner = scanner.NewPlanner(db.scanner, db.catalog)
	db.cache = querycache.New(conf.Cache, querycache.Deps{
		Store:    store,
		Locker:   db.locker,
		Compiler: compiler,
		Runner:   &directRunner{db: db},
		Metas:    db.catalog,
		Errors:   db.errs,
	})

	log.WithFields(log.Fields{"path": conf.DbPath, "owner": db.locker.Owner(), "cache": conf.Cache.Enabled}).Info("linesql::db::Open; opened database")
	return db, nil
}

// Execute executes a single sql statement.
// Every statement goes through the query cache which answers repeated SELECTs
// and runs everything else directly.
func (db *DB) Execute(sql string) (*Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.execute(sql)
	if err != nil {
		metrics.StatementErrorsTotal.Inc()
		db.errs.Push(err)
		log.WithFields(log.Fields{"sql": sql, "err": err}).Debug("linesql::db::Execute; statement failed")
		return nil, err
	}
	return res, nil
}

func (db *DB) execute(sql string) (*Result, error) {
	stmt, err := frontend.Parse(sql)
	if err != nil {
		return nil, icommon.NewInvalidQueryError("linesql::db::execute; %v", err)
	}
	metrics.StatementsTotal.WithLabelValues(statementKind(stmt)).Inc()

	switch stmt.(type) {
	case *frontend.SelectStatement:
	case *frontend.ExplainStatement:
		return db.run(stmt)
	default:
		return db.cache.Apply(targetTable(stmt), sql)
	}

	st := stmt.(*frontend.SelectStatement)
	res, err := db.cache.Apply(st.From.Name, sql)
	if err != nil {
		return nil, err
	}
	if res.Hit {
		meta, err := db.catalog.TableMeta(st.From.Name)
		if err != nil {
			return nil, err
		}
		res.Columns = outputColumns(st.Selections, meta)
	}
	return res, nil
}

// run executes the parsed statement without the query cache.
func (db *DB) run(stmt frontend.Statement) (*Result, error) {
	ex, err := db.getExecutor(stmt)
	if err != nil {
		return nil, err
	}
	return ex.execute()
}

// ClearCache removes every record of the query cache.
func (db *DB) ClearCache() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n, err := db.cache.Clear()
	if err != nil {
		db.errs.Push(err)
		return 0, err
	}
	log.WithFields(log.Fields{"removed": n}).Info("linesql::db::ClearCache; cleared query cache")
	return n, nil
}

// Cache returns the query cache of the database
func (db *DB) Cache() *querycache.QueryCache {
	return db.cache
}

// Errors returns the errors recorded by the database, oldest first.
// This includes failures which didn't fail a statement, eg. a result which couldn't be cached.
func (db *DB) Errors() []error {
	return db.errs.Errors()
}

// ClearErrors empties the error stack
func (db *DB) ClearErrors() {
	db.errs.Clear()
}

// directRunner executes statements for the query cache.
// It is called while DB.Execute holds the mutex.
type directRunner struct {
	db *DB
}

func (r *directRunner) Run(sql string) (*Result, error) {
	stmt, err := frontend.Parse(sql)
	if err != nil {
		return nil, icommon.NewInvalidQueryError("linesql::db::Run; %v", err)
	}
	return r.db.run(stmt)
}

func statementKind(stmt frontend.Statement) string {
	switch stmt.(type) {
	case *frontend.CreateTableStatement:
		return "create"
	case *frontend.DropTableStatement:
		return "drop"
	case *frontend.TruncateTableStatement:
		return "truncate"
	case *frontend.InsertStatement:
		return "insert"
	case *frontend.UpdateStatement:
		return "update"
	case *frontend.DeleteStatement:
		return "delete"
	case *frontend.SelectStatement:
		return "select"
	case *frontend.ExplainStatement:
		return "explain"
	}
	return "unknown"
}

func targetTable(stmt frontend.Statement) string {
	switch st := stmt.(type) {
	case *frontend.CreateTableStatement:
		return st.Spec.TableName
	case *frontend.DropTableStatement:
		return st.TableName
	case *frontend.TruncateTableStatement:
		return st.TableName
	case *frontend.InsertStatement:
		return st.Table.Name
	case *frontend.UpdateStatement:
		return st.Table.Name
	case *frontend.DeleteStatement:
		return st.Table.Name
	case *frontend.ExplainStatement:
		return targetTable(st.InnerStatement)
	case *frontend.SelectStatement:
		if st.From != nil {
			return st.From.Name
		}
	}
	return ""
}

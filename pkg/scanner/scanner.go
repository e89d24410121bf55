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

package scanner

import (
	"io"

	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/eval"
	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/dr0pdb/linedb/pkg/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Locker is the whole database lock taken by the scanner.
type Locker interface {
	AcquireShared() error
	Release() error
}

// Scanner performs linear scans over the data lines of a table.
type Scanner struct {
	store    *linestore.Store
	locker   Locker
	compiler *eval.Compiler
}

// NewScanner creates a new table scanner.
func NewScanner(store *linestore.Store, locker Locker, compiler *eval.Compiler) *Scanner {
	return &Scanner{
		store:    store,
		locker:   locker,
		compiler: compiler,
	}
}

// ScanFullTables returns every row of the table matching expr.
// A nil expr or the literal TRUE matches every row.
func (s *Scanner) ScanFullTables(table string, expr frontend.Expression) ([]codec.Row, error) {
	return s.scanShared(table, expr, false)
}

// ScanFullTablesOnce returns the first row of the table matching expr, if any.
func (s *Scanner) ScanFullTablesOnce(table string, expr frontend.Expression) ([]codec.Row, error) {
	return s.scanShared(table, expr, true)
}

func (s *Scanner) scanShared(table string, expr frontend.Expression, once bool) (rows []codec.Row, err error) {
	if err = s.locker.AcquireShared(); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := s.locker.Release(); rerr != nil && err == nil {
			rows, err = nil, rerr
		}
	}()

	return s.Scan(table, expr, once)
}

// Scan scans the table without taking the lock. The caller must hold at least the shared lock.
//
// The first decoded row is evaluated by the validating evaluator, later rows by the fast one.
// A fault on the first row aborts the scan and no rows are returned.
func (s *Scanner) Scan(table string, expr frontend.Expression, once bool) ([]codec.Row, error) {
	ev := s.compiler.Compile(expr).NewEvaluator()
	prefix := codec.Prefix(table, codec.DelimData)

	h, err := s.store.Open(linestore.ModeRead)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	if err = h.SeekToLine(linestore.HeaderLines); err != nil {
		if err == io.EOF {
			return []codec.Row{}, nil
		}
		return nil, err
	}

	rows := []codec.Row{}
	scanned := 0
	for {
		line, err := h.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		scanned++

		payload, ok := codec.Payload(line, prefix)
		if !ok {
			continue
		}

		row, err := codec.DecodeRow(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "scanner::scanner::Scan; decoding line %d of table %s", h.Line()-1, table)
		}

		match, err := ev.Match(row)
		if err != nil {
			log.WithFields(log.Fields{"table": table, "line": h.Line() - 1, "err": err}).Debug("scanner::scanner::Scan; predicate failed validation")
			return nil, err
		}
		if !match {
			continue
		}

		rows = append(rows, row)
		if once {
			break
		}
	}

	metrics.ScannedLinesTotal.Add(float64(scanned))
	metrics.MatchedRowsTotal.Add(float64(len(rows)))
	log.WithFields(log.Fields{
		"table":   table,
		"scanned": scanned,
		"matched": len(rows),
		"once":    once,
	}).Trace("scanner::scanner::Scan; done")

	return rows, nil
}

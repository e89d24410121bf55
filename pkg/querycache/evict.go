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
	"sort"

	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/dr0pdb/linedb/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

// evict removes the oldest records of the table until there is room for one more.
// Candidates are ordered by (time, payload length); each one is removed by its own query key.
// A candidate without a query key falls back to the oldest record of the same table.
// The caller holds the exclusive lock.
func (qc *QueryCache) evict(table string) error {
	n, err := qc.count(table, "")
	if err != nil || n < qc.maxEntries {
		return err
	}

	candidates, err := qc.load(table, "")
	if err != nil {
		return err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Time != candidates[j].Time {
			return candidates[i].Time < candidates[j].Time
		}
		return candidates[i].PayloadLen < candidates[j].PayloadLen
	})

	evicted := 0
	for _, c := range candidates {
		if n < qc.maxEntries {
			break
		}

		var removed int
		if c.Query != "" {
			removed, err = qc.remove(recordFilter(table, c.Query), 0)
		} else {
			oldest := frontend.Binary(frontend.OperatorEqual, frontend.Ident(fieldTime), frontend.Literal(c.Time))
			removed, err = qc.remove(frontend.And(recordFilter(table, ""), oldest), 1)
		}
		if err != nil {
			return err
		}

		n -= removed
		evicted += removed
	}

	metrics.CacheEvictionsTotal.Add(float64(evicted))
	log.WithFields(log.Fields{"table": table, "evicted": evicted, "remaining": n}).Debug("querycache::evict::evict; evicted records")
	return nil
}

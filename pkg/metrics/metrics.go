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

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Key constants are exported primarily for documentation reasons. Typically,
// they will not be used programmatically outside of defining the collectors.

// Keys for query cache metrics.
const (
	CacheHitsTotalKey       = "linedb_cache_hits_total"
	CacheMissesTotalKey     = "linedb_cache_misses_total"
	CacheInsertsTotalKey    = "linedb_cache_inserts_total"
	CacheEvictionsTotalKey  = "linedb_cache_evictions_total"
	CacheTombstonesTotalKey = "linedb_cache_tombstones_total"
	CacheBypassesTotalKey   = "linedb_cache_bypasses_total"
)

// Collectors for query cache metrics.
var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: CacheHitsTotalKey,
		Help: "Cumulative number of queries answered from the query cache.",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: CacheMissesTotalKey,
		Help: "Cumulative number of read queries without a valid cache record.",
	})
	CacheInsertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: CacheInsertsTotalKey,
		Help: "Cumulative number of cache records written.",
	})
	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: CacheEvictionsTotalKey,
		Help: "Cumulative number of cache records removed to respect the capacity bound.",
	})
	CacheTombstonesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: CacheTombstonesTotalKey,
		Help: "Cumulative number of cache lines tombstoned.",
	})
	CacheBypassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: CacheBypassesTotalKey,
		Help: "Cumulative number of queries executed without consulting the cache.",
	}, []string{"reason"})
)

// QueryCacheCollectors returns the collectors of the query cache.
func QueryCacheCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		CacheHitsTotal,
		CacheMissesTotal,
		CacheInsertsTotal,
		CacheEvictionsTotal,
		CacheTombstonesTotal,
		CacheBypassesTotal,
	}
}

// Keys for table scanner metrics.
const (
	ScannedLinesTotalKey = "linedb_scanned_lines_total"
	MatchedRowsTotalKey  = "linedb_matched_rows_total"
	ScanStrategyTotalKey = "linedb_scan_strategy_total"
)

// Collectors for table scanner metrics.
var (
	ScannedLinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: ScannedLinesTotalKey,
		Help: "Cumulative number of database lines read by table scans.",
	})
	MatchedRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: MatchedRowsTotalKey,
		Help: "Cumulative number of rows returned by table scans.",
	})
	ScanStrategyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ScanStrategyTotalKey,
		Help: "Cumulative number of SELECT plans per chosen strategy.",
	}, []string{"strategy"})
)

// ScannerCollectors returns the collectors of the table scanner.
func ScannerCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		ScannedLinesTotal,
		MatchedRowsTotal,
		ScanStrategyTotal,
	}
}

// Keys for lock manager metrics.
const (
	LockWaitSecondsKey      = "linedb_lock_wait_seconds"
	LockTimeoutsTotalKey    = "linedb_lock_timeouts_total"
	LockBreaksTotalKey      = "linedb_lock_breaks_total"
	StatementsTotalKey      = "linedb_statements_total"
	StatementErrorsTotalKey = "linedb_statement_errors_total"
)

// Collectors for lock manager and statement metrics.
var (
	LockWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: LockWaitSecondsKey,
		Help: "Time spent waiting for the database lock.",
	}, []string{"mode"})
	LockTimeoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: LockTimeoutsTotalKey,
		Help: "Cumulative number of lock acquisitions which timed out.",
	}, []string{"mode"})
	LockBreaksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: LockBreaksTotalKey,
		Help: "Cumulative number of stale locks broken after the deadlock timeout.",
	})
	StatementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: StatementsTotalKey,
		Help: "Cumulative number of executed statements per kind.",
	}, []string{"kind"})
	StatementErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: StatementErrorsTotalKey,
		Help: "Cumulative number of statements which failed.",
	})
)

// EngineCollectors returns the collectors of the lock manager and the statement api.
func EngineCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		LockWaitSeconds,
		LockTimeoutsTotal,
		LockBreaksTotal,
		StatementsTotal,
		StatementErrorsTotal,
	}
}

// Register registers all the linedb collectors with the registerer.
func Register(reg prometheus.Registerer) error {
	var all []prometheus.Collector
	all = append(all, QueryCacheCollectors()...)
	all = append(all, ScannerCollectors()...)
	all = append(all, EngineCollectors()...)

	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

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

package codec

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

/*
	record := time (field 1, varint) table (field 2, bytes) query (field 3, bytes)
	          rows (field 4, bytes, a marshalled result set)
*/

const (
	fieldRecordTime  protowire.Number = 1
	fieldRecordTable protowire.Number = 2
	fieldRecordQuery protowire.Number = 3
	fieldRecordRows  protowire.Number = 4
)

// CacheRecord is a single cached query result.
type CacheRecord struct {
	Time  int64  // unix nanos at which the result was computed
	Table string // owning table
	Query string // normalized query text
	Rows  []byte // marshalled result set
}

// NewCacheRecord creates a record out of a decoded result set.
func NewCacheRecord(time int64, table, query string, rows []Row) (*CacheRecord, error) {
	b, err := MarshalRows(rows)
	if err != nil {
		return nil, err
	}

	return &CacheRecord{Time: time, Table: table, Query: query, Rows: b}, nil
}

// PayloadLen is the size of the encoded result set.
func (cr *CacheRecord) PayloadLen() int {
	return len(cr.Rows)
}

// DecodeRows decodes the cached result set.
func (cr *CacheRecord) DecodeRows() ([]Row, error) {
	return UnmarshalRows(cr.Rows)
}

// Fields exposes the record as a row so that predicates can be evaluated against it.
// The result set is represented by its length only.
func (cr *CacheRecord) Fields() Row {
	return Row{
		"time":  cr.Time,
		"table": cr.Table,
		"query": cr.Query,
		"size":  int64(len(cr.Rows)),
	}
}

// EncodeRecord serializes the record to a line token.
func EncodeRecord(cr *CacheRecord) string {
	var b []byte
	b = protowire.AppendTag(b, fieldRecordTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cr.Time))
	b = protowire.AppendTag(b, fieldRecordTable, protowire.BytesType)
	b = protowire.AppendString(b, cr.Table)
	b = protowire.AppendTag(b, fieldRecordQuery, protowire.BytesType)
	b = protowire.AppendString(b, cr.Query)
	b = protowire.AppendTag(b, fieldRecordRows, protowire.BytesType)
	b = protowire.AppendBytes(b, cr.Rows)

	return base64.RawStdEncoding.EncodeToString(b)
}

// DecodeRecord is the inverse of EncodeRecord
func DecodeRecord(token string) (*CacheRecord, error) {
	b, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("codec::record::DecodeRecord: %v", err)
	}

	cr := &CacheRecord{}
	err = rangeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldRecordTime && typ == protowire.VarintType:
			cr.Time = int64(x)
		case num == fieldRecordTable && typ == protowire.BytesType:
			cr.Table = string(v)
		case num == fieldRecordQuery && typ == protowire.BytesType:
			cr.Query = string(v)
		case num == fieldRecordRows && typ == protowire.BytesType:
			cr.Rows = append([]byte(nil), v...)
		default:
			return fmt.Errorf("unexpected field %d in cache record", num)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("codec::record::DecodeRecord: %v", err)
	}
	return cr, nil
}

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
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

/*
	Rows are serialized with the protobuf wire format and then base64 encoded so that
	a token never contains a delimiter or a line terminator.

	row    := repeated column (field 1, bytes)
	column := name (field 1, bytes) value
	value  := int (field 2, zigzag) | float (field 3, fixed64) | string (field 4, bytes)
	        | bool (field 5, varint) | null (field 6, varint)
	rows   := repeated row (field 1, bytes)
*/

// Row is a single decoded row: column name to value.
// Values are int64, float64, string, bool or nil.
type Row map[string]interface{}

const (
	fieldColumn protowire.Number = 1
	fieldName   protowire.Number = 1
	fieldInt    protowire.Number = 2
	fieldFloat  protowire.Number = 3
	fieldString protowire.Number = 4
	fieldBool   protowire.Number = 5
	fieldNull   protowire.Number = 6
	fieldRow    protowire.Number = 1
)

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Columns returns the column names of the row in sorted order
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Normalize converts the go values of the row to the supported set of types.
func Normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, int64, float64, string, bool:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	}

	return nil, fmt.Errorf("codec::row::Normalize: unsupported value type %T", v)
}

func appendValue(b []byte, v interface{}) ([]byte, error) {
	v, err := Normalize(v)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case nil:
		b = protowire.AppendTag(b, fieldNull, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	case int64:
		b = protowire.AppendTag(b, fieldInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(t))
	case float64:
		b = protowire.AppendTag(b, fieldFloat, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(t))
	case string:
		b = protowire.AppendTag(b, fieldString, protowire.BytesType)
		b = protowire.AppendString(b, t)
	case bool:
		b = protowire.AppendTag(b, fieldBool, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(t))
	}
	return b, nil
}

// MarshalRow serializes the row to the wire format.
func MarshalRow(r Row) ([]byte, error) {
	var b []byte
	for _, col := range r.Columns() {
		var c []byte
		c = protowire.AppendTag(c, fieldName, protowire.BytesType)
		c = protowire.AppendString(c, col)

		c, err := appendValue(c, r[col])
		if err != nil {
			return nil, fmt.Errorf("codec::row::MarshalRow: column %s: %v", col, err)
		}

		b = protowire.AppendTag(b, fieldColumn, protowire.BytesType)
		b = protowire.AppendBytes(b, c)
	}
	return b, nil
}

// UnmarshalRow is the inverse of MarshalRow
func UnmarshalRow(b []byte) (Row, error) {
	row := make(Row)
	err := rangeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if num != fieldColumn || typ != protowire.BytesType {
			return fmt.Errorf("unexpected field %d in row", num)
		}

		name, val, err := unmarshalColumn(v)
		if err != nil {
			return err
		}
		row[name] = val
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("codec::row::UnmarshalRow: %v", err)
	}
	return row, nil
}

func unmarshalColumn(b []byte) (name string, val interface{}, err error) {
	seenName := false
	err = rangeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldName && typ == protowire.BytesType:
			name = string(v)
			seenName = true
		case num == fieldInt && typ == protowire.VarintType:
			val = protowire.DecodeZigZag(x)
		case num == fieldFloat && typ == protowire.Fixed64Type:
			val = math.Float64frombits(x)
		case num == fieldString && typ == protowire.BytesType:
			val = string(v)
		case num == fieldBool && typ == protowire.VarintType:
			val = protowire.DecodeBool(x)
		case num == fieldNull && typ == protowire.VarintType:
			val = nil
		default:
			return fmt.Errorf("unexpected field %d in column", num)
		}
		return nil
	})
	if err == nil && !seenName {
		err = fmt.Errorf("column without a name")
	}
	return name, val, err
}

// rangeFields iterates over the top level fields of a message.
// v holds the bytes of length delimited fields and x the value of varint and fixed fields.
func rangeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			x, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			return fmt.Errorf("unsupported wire type %d", typ)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

// EncodeRow serializes the row to a line token.
func EncodeRow(r Row) (string, error) {
	b, err := MarshalRow(r)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

// DecodeRow is the inverse of EncodeRow
func DecodeRow(token string) (Row, error) {
	b, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("codec::row::DecodeRow: %v", err)
	}
	return UnmarshalRow(b)
}

// MarshalRows serializes an ordered result set.
func MarshalRows(rows []Row) ([]byte, error) {
	var b []byte
	for _, r := range rows {
		rb, err := MarshalRow(r)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldRow, protowire.BytesType)
		b = protowire.AppendBytes(b, rb)
	}
	return b, nil
}

// UnmarshalRows is the inverse of MarshalRows. An empty input is an empty result set.
func UnmarshalRows(b []byte) ([]Row, error) {
	rows := make([]Row, 0)
	err := rangeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if num != fieldRow || typ != protowire.BytesType {
			return fmt.Errorf("unexpected field %d in result set", num)
		}

		r, err := UnmarshalRow(v)
		if err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("codec::row::UnmarshalRows: %v", err)
	}
	return rows, nil
}

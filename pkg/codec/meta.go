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

	"github.com/dr0pdb/linedb/pkg/frontend"
	"google.golang.org/protobuf/encoding/protowire"
)

/*
	meta   := name (field 1, bytes) repeated column (field 2, bytes) lastmod (field 3, varint)
	column := name (field 1, bytes) type (field 2, varint) flags (field 3, varint) default (field 4, bytes)
*/

const (
	fieldMetaName    protowire.Number = 1
	fieldMetaColumn  protowire.Number = 2
	fieldMetaLastMod protowire.Number = 3

	fieldColName    protowire.Number = 1
	fieldColType    protowire.Number = 2
	fieldColFlags   protowire.Number = 3
	fieldColDefault protowire.Number = 4
)

const (
	flagPrimary uint64 = 1 << iota
	flagUnique
	flagNullable
)

// ColumnMeta is the persisted definition of a column
type ColumnMeta struct {
	Name     string
	Type     frontend.FieldType
	Primary  bool
	Unique   bool
	Nullable bool
	Default  string // canonical text of the default expression, empty if none
}

// TableMeta is the persisted definition of a table along with its last modification time.
type TableMeta struct {
	Name    string
	Columns []ColumnMeta
	LastMod int64 // unix nanos
}

// MetaFromSpec creates the metadata of a freshly created table
func MetaFromSpec(spec *frontend.TableSpec, lastMod int64) *TableMeta {
	m := &TableMeta{Name: spec.TableName, LastMod: lastMod}
	for _, c := range spec.Columns {
		var def string
		if c.Default != nil {
			def = c.Default.String()
		}
		m.Columns = append(m.Columns, ColumnMeta{
			Name:     c.Name,
			Type:     c.Type,
			Primary:  c.PrimaryKey,
			Unique:   c.Unique,
			Nullable: c.Nullable,
			Default:  def,
		})
	}
	return m
}

// Column returns the column with the given name or nil
func (m *TableMeta) Column(name string) *ColumnMeta {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i]
		}
	}
	return nil
}

// IsUniqueColumn checks if at most one row can hold a given value of the column.
func (m *TableMeta) IsUniqueColumn(name string) bool {
	c := m.Column(name)
	return c != nil && (c.Primary || c.Unique)
}

// ColumnNames returns the names of the columns in declaration order
func (m *TableMeta) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Touch advances the last modification time. It strictly increases even if the clock doesn't.
func (m *TableMeta) Touch(now int64) {
	if now <= m.LastMod {
		now = m.LastMod + 1
	}
	m.LastMod = now
}

// EncodeMeta serializes the metadata to a line token.
func EncodeMeta(m *TableMeta) string {
	var b []byte
	b = protowire.AppendTag(b, fieldMetaName, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)

	for _, c := range m.Columns {
		var flags uint64
		if c.Primary {
			flags |= flagPrimary
		}
		if c.Unique {
			flags |= flagUnique
		}
		if c.Nullable {
			flags |= flagNullable
		}

		var cb []byte
		cb = protowire.AppendTag(cb, fieldColName, protowire.BytesType)
		cb = protowire.AppendString(cb, c.Name)
		cb = protowire.AppendTag(cb, fieldColType, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(c.Type))
		cb = protowire.AppendTag(cb, fieldColFlags, protowire.VarintType)
		cb = protowire.AppendVarint(cb, flags)
		if c.Default != "" {
			cb = protowire.AppendTag(cb, fieldColDefault, protowire.BytesType)
			cb = protowire.AppendString(cb, c.Default)
		}

		b = protowire.AppendTag(b, fieldMetaColumn, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	}

	b = protowire.AppendTag(b, fieldMetaLastMod, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.LastMod))

	return base64.RawStdEncoding.EncodeToString(b)
}

// DecodeMeta is the inverse of EncodeMeta
func DecodeMeta(token string) (*TableMeta, error) {
	b, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("codec::meta::DecodeMeta: %v", err)
	}

	m := &TableMeta{}
	err = rangeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldMetaName && typ == protowire.BytesType:
			m.Name = string(v)
		case num == fieldMetaLastMod && typ == protowire.VarintType:
			m.LastMod = int64(x)
		case num == fieldMetaColumn && typ == protowire.BytesType:
			var c ColumnMeta
			err := rangeFields(v, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
				switch num {
				case fieldColName:
					c.Name = string(v)
				case fieldColType:
					c.Type = frontend.FieldType(x)
				case fieldColFlags:
					c.Primary = x&flagPrimary != 0
					c.Unique = x&flagUnique != 0
					c.Nullable = x&flagNullable != 0
				case fieldColDefault:
					c.Default = string(v)
				default:
					return fmt.Errorf("unexpected field %d in column", num)
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.Columns = append(m.Columns, c)
		default:
			return fmt.Errorf("unexpected field %d in table meta", num)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("codec::meta::DecodeMeta: %v", err)
	}
	return m, nil
}

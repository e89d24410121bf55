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

package frontend

var (
	_ Statement = (*CreateTableStatement)(nil)
	_ Statement = (*DropTableStatement)(nil)
	_ Statement = (*TruncateTableStatement)(nil)
)

type CreateTableStatement struct {
	Spec *TableSpec
}

func (cts *CreateTableStatement) statement() {}

type DropTableStatement struct {
	TableName string
}

func (dts *DropTableStatement) statement() {}

type TruncateTableStatement struct {
	TableName string
}

func (tts *TruncateTableStatement) statement() {}

// TableSpec defines the specification of a table
type TableSpec struct {
	TableId   uint64 // internal id of the table. unique
	TableName string
	Columns   []*ColumnSpec
}

// NewTableSpec creates a new table spec
func NewTableSpec(id uint64, name string, cols []*ColumnSpec) *TableSpec {
	return &TableSpec{
		TableId:   id,
		TableName: name,
		Columns:   cols,
	}
}

// Column returns the spec of the column with the given name or nil.
func (ts *TableSpec) Column(name string) *ColumnSpec {
	for _, c := range ts.Columns {
		if c.Name == name {
			return c
		}
	}

	return nil
}

// PrimaryKey returns the primary key column or nil if the table has none.
func (ts *TableSpec) PrimaryKey() *ColumnSpec {
	for _, c := range ts.Columns {
		if c.PrimaryKey {
			return c
		}
	}

	return nil
}

// ColumnNames returns the names of the columns in declaration order.
func (ts *TableSpec) ColumnNames() []string {
	names := make([]string, 0, len(ts.Columns))
	for _, c := range ts.Columns {
		names = append(names, c.Name)
	}
	return names
}

// ColumnSpec defines a single column of a table
type ColumnSpec struct {
	Name       string
	Type       FieldType
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Index      bool
	References string // the foreign key reference
	Default    Expression
}

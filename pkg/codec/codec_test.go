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
	"strings"
	"testing"

	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAlphabetExcludesDelimiters(t *testing.T) {
	names := []string{"T", "users", CacheTable, "a:b!c#d@e%f", "ütf-8 name", ""}
	for _, name := range names {
		key := EncodeKey(name)
		assert.False(t, strings.ContainsAny(key, ":!#@%\n "), "Key %q of %q contains a delimiter", key, name)

		decoded, err := DecodeKey(key)
		assert.Nil(t, err, "Unexpected error in decoding key")
		assert.Equal(t, name, decoded, "Wrong decoded name")
	}

	assert.NotEqual(t, Prefix("ab", DelimData), Prefix("abc", DelimData)[:len(Prefix("ab", DelimData))], "Prefix of a table must not be a prefix of another table")
}

func TestPayload(t *testing.T) {
	line := string(FormatLine("T", DelimData, "xyz"))
	assert.True(t, strings.HasSuffix(line, "\n"), "Line should be terminated")

	payload, ok := Payload(line, Prefix("T", DelimData))
	assert.True(t, ok, "Expected the prefix to match")
	assert.Equal(t, "xyz", payload, "Wrong payload")

	_, ok = Payload(line, Prefix("T", DelimCache))
	assert.False(t, ok, "Prefix of another subsystem should not match")

	_, ok = Payload(strings.Repeat(" ", len(line)-1)+"\n", Prefix("T", DelimData))
	assert.False(t, ok, "Tombstone should not match")
}

func TestRowTypesArePreserved(t *testing.T) {
	row := Row{
		"int":    int64(-42),
		"small":  7,
		"float":  2.5,
		"string": "hello: #world!\n",
		"bool":   true,
		"null":   nil,
	}

	token, err := EncodeRow(row)
	require.Nil(t, err, "Unexpected error in encoding row")
	assert.False(t, strings.ContainsAny(token, ":!#@%\n"), "Token contains a delimiter")

	decoded, err := DecodeRow(token)
	require.Nil(t, err, "Unexpected error in decoding row")

	expected := row.Clone()
	expected["small"] = int64(7)
	assert.Equal(t, expected, decoded, "Wrong decoded row")
}

func TestRowEncodingIsDeterministic(t *testing.T) {
	a, err := EncodeRow(Row{"a": int64(1), "b": "x", "c": false})
	require.Nil(t, err)
	b, err := EncodeRow(Row{"c": false, "b": "x", "a": int64(1)})
	require.Nil(t, err)

	assert.Equal(t, a, b, "Encoding should not depend on map iteration order")
}

func TestRowUnsupportedType(t *testing.T) {
	_, err := EncodeRow(Row{"a": []int{1}})
	assert.NotNil(t, err, "Expected an error for an unsupported type")

	_, err = DecodeRow("!!not base64!!")
	assert.NotNil(t, err, "Expected an error for a malformed token")
}

func TestResultSetOrderIsPreserved(t *testing.T) {
	rows := []Row{{"a": int64(3)}, {"a": int64(1)}, {}, {"a": int64(2)}}

	b, err := MarshalRows(rows)
	require.Nil(t, err, "Unexpected error in marshalling rows")

	decoded, err := UnmarshalRows(b)
	require.Nil(t, err, "Unexpected error in unmarshalling rows")
	assert.Equal(t, rows, decoded, "Wrong decoded rows")

	empty, err := UnmarshalRows(nil)
	require.Nil(t, err)
	assert.Equal(t, []Row{}, empty, "Empty payload is an empty result set")
}

func TestCacheRecord(t *testing.T) {
	rows := []Row{{"a": int64(2)}}
	cr, err := NewCacheRecord(100, "T", "SELECT * FROM T WHERE a = 2", rows)
	require.Nil(t, err, "Unexpected error in creating record")

	decoded, err := DecodeRecord(EncodeRecord(cr))
	require.Nil(t, err, "Unexpected error in decoding record")
	assert.Equal(t, cr, decoded, "Wrong decoded record")
	assert.Equal(t, len(cr.Rows), decoded.PayloadLen(), "Wrong payload length")

	decodedRows, err := decoded.DecodeRows()
	require.Nil(t, err)
	assert.Equal(t, rows, decodedRows, "Wrong cached rows")

	fields := decoded.Fields()
	assert.Equal(t, "T", fields["table"], "Wrong table field")
	assert.Equal(t, int64(100), fields["time"], "Wrong time field")
}

func TestTableMeta(t *testing.T) {
	spec := frontend.NewTableSpec(0, "T", []*frontend.ColumnSpec{
		{Name: "id", Type: frontend.FieldTypeInteger, PrimaryKey: true},
		{Name: "email", Type: frontend.FieldTypeString, Unique: true, Nullable: true},
		{Name: "age", Type: frontend.FieldTypeFloat, Nullable: true, Default: frontend.Literal(1.5)},
	})

	m := MetaFromSpec(spec, 10)
	assert.Equal(t, "1.5", m.Column("age").Default, "Default should be kept as canonical text")
	decoded, err := DecodeMeta(EncodeMeta(m))
	require.Nil(t, err, "Unexpected error in decoding meta")
	assert.Equal(t, m, decoded, "Wrong decoded meta")

	assert.True(t, decoded.IsUniqueColumn("id"), "Primary key should be unique")
	assert.True(t, decoded.IsUniqueColumn("email"), "Unique column should be unique")
	assert.False(t, decoded.IsUniqueColumn("age"), "Plain column should not be unique")
	assert.False(t, decoded.IsUniqueColumn("missing"), "Missing column should not be unique")
	assert.Equal(t, []string{"id", "email", "age"}, decoded.ColumnNames(), "Wrong column order")

	decoded.Touch(5)
	assert.Equal(t, int64(11), decoded.LastMod, "Last modification time must strictly increase")
	decoded.Touch(50)
	assert.Equal(t, int64(50), decoded.LastMod, "Last modification time should follow the clock")
}

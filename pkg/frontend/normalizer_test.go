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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"select * from t where a=2;", "SELECT * FROM t WHERE a = 2"},
		{"SELECT  *\n FROM t\tWHERE a = 2", "SELECT * FROM t WHERE a = 2"},
		{"SELECT * FROM t WHERE a = 2 -- comment\n;;", "SELECT * FROM t WHERE a = 2"},
		{"select Name from T where name = 'Bob'", "SELECT Name FROM T WHERE name = 'Bob'"},
		{"select * from t where flag = true", "SELECT * FROM t WHERE flag = TRUE"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Canonicalize(tt.query), "Wrong canonical form of %q", tt.query)
	}

	// formatting variance maps to the same key while literals stay significant
	assert.Equal(t, Canonicalize("SELECT * FROM t WHERE a=2"), Canonicalize("select *   from t where a = 2;"), "Expected equal keys")
	assert.NotEqual(t, Canonicalize("SELECT * FROM t WHERE name='a'"), Canonicalize("SELECT * FROM t WHERE name='A'"), "Expected different keys")

	// unlexable input falls back to whitespace normalization
	assert.Equal(t, "SELECT 'broken", Canonicalize("  SELECT   'broken ;"), "Wrong fallback canonical form")
}

func TestIsMutating(t *testing.T) {
	readOnly := []string{
		"SELECT * FROM t",
		"  select a from t",
		"-- leading comment\nSELECT a FROM t",
		"EXPLAIN SELECT a FROM t",
	}
	for _, q := range readOnly {
		assert.False(t, IsMutating(q), "Expected %q to be read only", q)
	}

	mutating := []string{
		"INSERT INTO t VALUES (1)",
		"update t set a = 1",
		"DELETE FROM t",
		"CREATE TABLE t (a int)",
		"DROP TABLE t",
		"",
	}
	for _, q := range mutating {
		assert.True(t, IsMutating(q), "Expected %q to be mutating", q)
	}
}

func TestHasVolatileFunction(t *testing.T) {
	volatile := []string{
		"SELECT * FROM t WHERE a < RANDOM()",
		"SELECT * FROM t WHERE a < rand()",
		"SELECT * FROM t WHERE ts > NOW ()",
		"SELECT * FROM t WHERE ts > CURRENT_TIMESTAMP",
		"SELECT * FROM t WHERE d = current_date",
		"SELECT * FROM t WHERE u = UUID()",
	}
	for _, q := range volatile {
		assert.True(t, HasVolatileFunction(q), "Expected %q to be volatile", q)
	}

	stable := []string{
		"SELECT * FROM t WHERE a = 2",
		"SELECT * FROM t WHERE UPPER(name) = 'RANDOM()'",
		"SELECT now FROM t",
		"SELECT * FROM t WHERE random = 1",
	}
	for _, q := range stable {
		assert.False(t, HasVolatileFunction(q), "Expected %q to be stable", q)
	}

	ex, err := ParseExpression("a = 1 AND b < NOW()")
	assert.Nil(t, err, "Unexpected error in parsing expression")
	assert.True(t, IsVolatileExpression(ex), "Expected expression to be volatile")
}

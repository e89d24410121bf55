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


package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/dr0pdb/linedb/pkg/linesql"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &linesql.Result{Affected: 3})
	assert.Equal(t, "ok, 3 rows affected\n", buf.String(), "Wrong output of a mutation")

	buf.Reset()
	printResult(&buf, &linesql.Result{
		Columns: []string{"id", "name"},
		Rows: []codec.Row{
			{"id": int64(1), "name": "alice"},
			{"id": int64(22), "name": nil},
		},
		Hit: true,
	})
	expected := "id  name\n" +
		"1   alice\n" +
		"22  NULL\n" +
		"2 rows (cached)\n"
	assert.Equal(t, expected, buf.String(), "Wrong output of a select")
}

func TestShell(t *testing.T) {
	conf := common.NewDefaultConfig()
	conf.DbPath = "/data/shell.db"
	db, err := linesql.Open(conf, afero.NewMemMapFs())
	require.Nil(t, err, "Unexpected error in opening the database")

	in := strings.NewReader("CREATE TABLE T (id INT);\nINSERT INTO T\nVALUES (1);\nSELEC;\nSELECT id FROM T;\n")
	var out bytes.Buffer
	require.Nil(t, runShell(db, in, &out), "Unexpected error in the shell")

	s := out.String()
	assert.Contains(t, s, "ok, 1 rows affected", "Missing result of the multi line insert")
	assert.Contains(t, s, "error: ", "Missing error of the invalid statement")
	assert.Contains(t, s, "1 rows\n", "Missing result of the select")
}

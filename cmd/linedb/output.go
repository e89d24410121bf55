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
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dr0pdb/linedb/pkg/linesql"
)

// printResult writes the rows as an aligned table, or the affected count for statements without columns.
func printResult(w io.Writer, res *linesql.Result) {
	if len(res.Columns) == 0 {
		fmt.Fprintf(w, "ok, %d rows affected\n", res.Affected)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, r := range res.Rows {
		vals := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			vals[i] = formatValue(r[c])
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	tw.Flush()

	suffix := ""
	if res.Hit {
		suffix = " (cached)"
	}
	fmt.Fprintf(w, "%d rows%s\n", len(res.Rows), suffix)
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	}
	return fmt.Sprint(v)
}

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

package linestore

import (
	"fmt"
	"strings"
)

/*
	The database file starts with a fixed header region:

	line 0  linedb 1
	line 1  lock <state> <readers> <owner> <stamp>   (fixed width, rewritten in place)
	line 2  created <unix nanos>

	Every line after the header is a body line: <key><delimiter><payload>.
*/

const (
	// Signature is the first line of every database file
	Signature = "linedb 1"

	// HeaderLines is the number of lines before the first body line
	HeaderLines = 3

	// LockLineIndex is the 0 based line number of the lock line
	LockLineIndex = 1

	// LockLineOffset is the byte offset of the lock line
	LockLineOffset = int64(len(Signature) + 1)

	// UnlockedLockLine is the lock line of a fresh database without the terminator.
	UnlockedLockLine = "lock U 0000 00000000-0000-0000-0000-000000000000 0000000000000000000"

	// LockLineWidth is the length of the lock line without the terminator
	LockLineWidth = len(UnlockedLockLine)
)

// header returns the header region of a new database.
func header(now int64) string {
	return Signature + "\n" + UnlockedLockLine + "\n" + fmt.Sprintf("created %019d\n", now)
}

// Tombstone returns the blank replacement of the line.
// The replacement has the exact byte length of the original line.
func Tombstone(line string) string {
	content := strings.TrimRight(line, "\n")
	return strings.Repeat(" ", len(content)) + line[len(content):]
}

// IsTombstone checks if the line is a blanked line.
func IsTombstone(line string) bool {
	return strings.TrimSpace(line) == ""
}

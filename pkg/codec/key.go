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
	"strings"
)

// Line delimiters. One per subsystem, none of them is part of the key alphabet.
const (
	DelimMeta  byte = '!'
	DelimData  byte = ':'
	DelimCache byte = '#'
	DelimIndex byte = '@' // reserved
	DelimView  byte = '%' // reserved
)

// CacheTable is the reserved hidden table holding the query cache.
const CacheTable = "__query_cache"

// EncodeKey derives the line prefix key of a table or object name.
// The mapping is injective and the output only uses [A-Za-z0-9_-].
func EncodeKey(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

// DecodeKey is the inverse of EncodeKey
func DecodeKey(key string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Prefix returns the prefix shared by all the lines of the name in the given subsystem.
func Prefix(name string, delim byte) string {
	return EncodeKey(name) + string(delim)
}

// FormatLine builds a complete line including the terminator.
func FormatLine(name string, delim byte, payload string) []byte {
	return []byte(Prefix(name, delim) + payload + "\n")
}

// Payload returns the payload of the line if the line starts with prefix.
// The line terminator is not part of the payload.
func Payload(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimRight(line[len(prefix):], "\r\n"), true
}

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
	"io"

	log "github.com/sirupsen/logrus"
)

// RewriteFunc decides the fate of a single line read by Rewrite.
// A nil replacement leaves the line untouched. stop ends the pass after the current line.
type RewriteFunc func(line string) (replacement []byte, stop bool, err error)

// Rewrite walks the body of the database with a reader and a rewriter handle
// positioned at the same line. Every line read by the reader is either skipped or
// overwritten by the rewriter so that both handles stay aligned.
// It returns the number of rewritten lines. The caller must hold the exclusive lock.
func (s *Store) Rewrite(fn RewriteFunc) (n int, err error) {
	reader, err := s.Open(ModeRead)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	rewriter, err := s.Open(ModeRewrite)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := rewriter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = reader.SeekToLine(HeaderLines); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}
	if err = rewriter.SeekToLine(HeaderLines); err != nil {
		return 0, err
	}

	for {
		line, err := reader.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}

		replacement, stop, err := fn(line)
		if err != nil {
			return n, err
		}

		if replacement == nil {
			err = rewriter.Skip()
		} else {
			err = rewriter.WriteLine(replacement)
			n++
		}
		if err != nil {
			return n, err
		}

		if reader.Line() != rewriter.Line() {
			log.WithFields(log.Fields{"reader": reader.Line(), "rewriter": rewriter.Line()}).Error("linestore::rewrite::Rewrite; handles are misaligned")
			return n, fmt.Errorf("linestore::rewrite::Rewrite; reader at line %d, rewriter at line %d", reader.Line(), rewriter.Line())
		}

		if stop {
			break
		}
	}

	return n, nil
}

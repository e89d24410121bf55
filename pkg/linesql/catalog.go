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

package linesql

import (
	"fmt"
	"io"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// catalog reads and writes the metadata lines of tables.
type catalog struct {
	store  *linestore.Store
	locker locker
}

type locker interface {
	AcquireShared() error
	AcquireExclusive() error
	Release() error
}

// TableMeta returns the live metadata of the table under the shared lock.
func (c *catalog) TableMeta(table string) (meta *codec.TableMeta, err error) {
	if err = c.locker.AcquireShared(); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := c.locker.Release(); rerr != nil && err == nil {
			meta, err = nil, rerr
		}
	}()

	meta, _, err = c.read(table)
	return meta, err
}

// LastMod returns the last modification time of the table. The caller holds the lock.
func (c *catalog) LastMod(table string) (int64, error) {
	meta, _, err := c.read(table)
	if err != nil {
		return 0, err
	}
	return meta.LastMod, nil
}

// read returns the live metadata of the table and its line number.
// The live metadata is the last metadata line of the table. The caller holds the lock.
func (c *catalog) read(table string) (*codec.TableMeta, int, error) {
	h, err := c.store.Open(linestore.ModeRead)
	if err != nil {
		return nil, 0, err
	}
	defer h.Close()

	if err = h.SeekToLine(linestore.HeaderLines); err != nil && err != io.EOF {
		return nil, 0, err
	}

	prefix := codec.Prefix(table, codec.DelimMeta)
	var (
		token string
		at    = -1
	)
	for {
		line, err := h.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		if payload, ok := codec.Payload(line, prefix); ok {
			token, at = payload, h.Line()-1
		}
	}

	if at < 0 {
		return nil, 0, icommon.NewNotFoundError(fmt.Sprintf("linesql::catalog::read; table %s doesn't exist", table))
	}

	meta, err := codec.DecodeMeta(token)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "linesql::catalog::read; decoding metadata of %s", table)
	}
	return meta, at, nil
}

// write appends the metadata as the new live line and tombstones the previous one at prev.
// prev < 0 means there is no previous line. The caller holds the exclusive lock.
func (c *catalog) write(meta *codec.TableMeta, prev int) error {
	if prev >= 0 {
		if err := tombstoneLines(c.store, map[int]bool{prev: true}); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{"table": meta.Name, "lastmod": meta.LastMod}).Trace("linesql::catalog::write; writing metadata")
	return c.store.Append(codec.FormatLine(meta.Name, codec.DelimMeta, codec.EncodeMeta(meta)))
}

// touch advances the last modification time of the table. The caller holds the exclusive lock.
func (c *catalog) touch(meta *codec.TableMeta, prev int) error {
	meta.Touch(timeNow().UnixNano())
	return c.write(meta, prev)
}

// tombstoneLines blanks the given 0 based lines. The caller holds the exclusive lock.
func tombstoneLines(store *linestore.Store, lines map[int]bool) error {
	if len(lines) == 0 {
		return nil
	}

	at := linestore.HeaderLines - 1
	left := len(lines)
	_, err := store.Rewrite(func(line string) ([]byte, bool, error) {
		at++
		if !lines[at] {
			return nil, false, nil
		}
		left--
		return []byte(linestore.Tombstone(line)), left == 0, nil
	})
	return err
}

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
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dr0pdb/linedb/internal/common"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Mode is the access mode of a handle.
type Mode int

const (
	// ModeRead opens the file for sequential reading
	ModeRead Mode = iota

	// ModeRewrite opens the file for sequential reading and in place rewriting of the current line
	ModeRewrite

	// ModeAppend opens the file for appending lines at the end
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeRewrite:
		return "rewrite"
	case ModeAppend:
		return "append"
	}
	return "unknown"
}

var timeNow = time.Now

// Store gives line level access to the database file.
// It holds no open file; every Open returns an independent handle.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a new line store for the file at path.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Fs returns the underlying file system
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Path returns the path of the database file
func (s *Store) Path() string {
	return s.path
}

// Size returns the size of the database file in bytes
func (s *Store) Size() (int64, error) {
	fi, err := s.fs.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Init creates the header of the database if the file is missing or empty.
// An existing file has to start with the signature line.
func (s *Store) Init() error {
	size, err := s.Size()
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err == nil && size > 0 {
		h, err := s.Open(ModeRead)
		if err != nil {
			return err
		}
		defer h.Close()

		first, err := h.ReadLine()
		if err != nil && err != io.EOF {
			return err
		}
		if first != Signature+"\n" {
			return common.NewUnknownError(fmt.Sprintf("linestore::store::Init; %s is not a linedb database", s.path))
		}
		return nil
	}

	log.WithFields(log.Fields{"path": s.path}).Info("linestore::store::Init; creating new database")

	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(header(timeNow().UnixNano()))
	return err
}

// Open opens a new handle positioned at the first line of the file.
// Append handles are positioned at the end.
func (s *Store) Open(mode Mode) (*Handle, error) {
	var flag int
	switch mode {
	case ModeRead:
		flag = os.O_RDONLY
	case ModeRewrite:
		flag = os.O_RDWR
	case ModeAppend:
		flag = os.O_WRONLY | os.O_APPEND
	default:
		return nil, fmt.Errorf("linestore::store::Open; unknown mode %d", mode)
	}

	f, err := s.fs.OpenFile(s.path, flag, 0644)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"path": s.path, "mode": mode}).Trace("linestore::store::Open; opened handle")

	h := &Handle{f: f, mode: mode}
	if mode != ModeAppend {
		h.r = bufio.NewReader(f)
	}
	return h, nil
}

// Append appends the given lines at the end of the file with a single handle.
func (s *Store) Append(lines ...[]byte) error {
	h, err := s.Open(ModeAppend)
	if err != nil {
		return err
	}

	for _, l := range lines {
		if err = h.WriteLine(l); err != nil {
			h.Close()
			return err
		}
	}
	return h.Close()
}

// Handle is a cursor over the lines of the database file.
type Handle struct {
	f    afero.File
	r    *bufio.Reader
	mode Mode

	line   int   // 0 based number of the next line
	offset int64 // byte offset of the next line
}

// Line returns the number of the line the handle is positioned at.
func (h *Handle) Line() int {
	return h.line
}

// SeekToLine positions the handle at the beginning of the 0 based line n.
func (h *Handle) SeekToLine(n int) error {
	if h.mode == ModeAppend {
		return fmt.Errorf("linestore::store::SeekToLine; append handles can't seek")
	}

	if n < h.line {
		if _, err := h.f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		h.r.Reset(h.f)
		h.line, h.offset = 0, 0
	}

	for h.line < n {
		if _, err := h.readLine(); err != nil {
			return err
		}
	}
	return nil
}

// ReadLine returns the next line including its terminator.
// It returns io.EOF once there are no more lines.
func (h *Handle) ReadLine() (string, error) {
	if h.mode == ModeAppend {
		return "", fmt.Errorf("linestore::store::ReadLine; append handles can't read")
	}
	return h.readLine()
}

// Skip moves past the next line without modifying it.
func (h *Handle) Skip() error {
	_, err := h.ReadLine()
	return err
}

func (h *Handle) readLine() (string, error) {
	line, err := h.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}

	h.line++
	h.offset += int64(len(line))
	return line, nil
}

// WriteLine writes the line through the handle.
// Append handles add the line at the end of the file. Rewrite handles overwrite the next
// line in place, which requires the replacement to have exactly the same length.
func (h *Handle) WriteLine(b []byte) error {
	switch h.mode {
	case ModeAppend:
		_, err := h.f.Write(b)
		return err

	case ModeRewrite:
		offset := h.offset
		current, err := h.readLine()
		if err != nil {
			return err
		}
		if len(current) != len(b) {
			return fmt.Errorf("linestore::store::WriteLine; length mismatch at line %d: %d != %d", h.line-1, len(b), len(current))
		}

		_, err = h.f.WriteAt(b, offset)
		return err
	}

	return fmt.Errorf("linestore::store::WriteLine; read handles can't write")
}

// Close closes the underlying file.
func (h *Handle) Close() error {
	if h.mode != ModeRead {
		if err := h.f.Sync(); err != nil {
			h.f.Close()
			return err
		}
	}
	return h.f.Close()
}

//go:build unix

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

package lock

import (
	"os"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// latch takes an exclusive advisory lock on the file for the duration of one lock line update.
// Files of in memory file systems fall back to a process wide mutex.
func latch(f afero.File) (func(), error) {
	osf, ok := f.(*os.File)
	if !ok {
		return latchProcess(), nil
	}

	fd := int(osf.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	return func() {
		unix.Flock(fd, unix.LOCK_UN)
	}, nil
}

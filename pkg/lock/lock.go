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
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/dr0pdb/linedb/pkg/linestore"
	"github.com/dr0pdb/linedb/pkg/metrics"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// State is the state of the whole database lock
type State byte

const (
	Unlocked  State = 'U'
	Shared    State = 'S'
	Exclusive State = 'X'
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	}
	return "invalid"
}

const maxReaders = 9999

var (
	timeNow = time.Now
	sleep   = time.Sleep
)

// lockLine is the decoded lock line of the database header.
// format: lock <state> <readers %04d> <owner uuid> <stamp %019d>
type lockLine struct {
	state   State
	readers int
	owner   string
	stamp   int64 // unix nanos of the last acquisition
}

func unlockedLine() *lockLine {
	return &lockLine{state: Unlocked, owner: uuid.Nil.String()}
}

func (l *lockLine) String() string {
	return fmt.Sprintf("lock %c %04d %s %019d", l.state, l.readers, l.owner, l.stamp)
}

func parseLockLine(s string) (*lockLine, error) {
	parts := strings.Fields(s)
	if len(parts) != 5 || parts[0] != "lock" || len(parts[1]) != 1 {
		return nil, fmt.Errorf("lock::lock::parseLockLine; malformed lock line %q", s)
	}

	l := &lockLine{state: State(parts[1][0]), owner: parts[3]}
	if l.state != Unlocked && l.state != Shared && l.state != Exclusive {
		return nil, fmt.Errorf("lock::lock::parseLockLine; invalid lock state %q", parts[1])
	}

	var err error
	if l.readers, err = strconv.Atoi(parts[2]); err != nil {
		return nil, fmt.Errorf("lock::lock::parseLockLine; invalid reader count %q", parts[2])
	}
	if _, err = uuid.Parse(l.owner); err != nil {
		return nil, fmt.Errorf("lock::lock::parseLockLine; invalid owner %q", l.owner)
	}
	if l.stamp, err = strconv.ParseInt(parts[4], 10, 64); err != nil {
		return nil, fmt.Errorf("lock::lock::parseLockLine; invalid stamp %q", parts[4])
	}
	return l, nil
}

// Manager is the whole database lock of one process.
// The lock state is stored in the lock line of the file header so that
// independent processes opening the same file observe each other.
// The lock is not reentrant.
type Manager struct {
	store *linestore.Store
	conf  common.LockConfig
	owner string

	mu   sync.Mutex
	held State
}

// NewManager creates a new lock manager with a fresh owner identity.
func NewManager(store *linestore.Store, conf common.LockConfig) *Manager {
	return &Manager{
		store: store,
		conf:  conf,
		owner: uuid.New().String(),
		held:  Unlocked,
	}
}

// Owner returns the identity written to the lock line by this manager.
func (m *Manager) Owner() string {
	return m.owner
}

// Held returns the state held by this manager.
func (m *Manager) Held() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// AcquireShared blocks until the shared lock is granted or the wait timeout elapses.
func (m *Manager) AcquireShared() error {
	return m.acquire(Shared)
}

// AcquireExclusive blocks until the exclusive lock is granted or the wait timeout elapses.
func (m *Manager) AcquireExclusive() error {
	return m.acquire(Exclusive)
}

func (m *Manager) acquire(mode State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held != Unlocked {
		return fmt.Errorf("lock::lock::acquire; %s lock requested while holding the %s lock", mode, m.held)
	}

	start := timeNow()
	deadline := start.Add(m.conf.WaitTimeout)
	for {
		granted, holder, err := m.transition(func(cur *lockLine, now int64) *lockLine {
			switch {
			case mode == Shared && cur.state == Unlocked:
				return &lockLine{state: Shared, readers: 1, owner: m.owner, stamp: now}
			case mode == Shared && cur.state == Shared && cur.readers < maxReaders:
				return &lockLine{state: Shared, readers: cur.readers + 1, owner: m.owner, stamp: now}
			case mode == Exclusive && cur.state == Unlocked:
				return &lockLine{state: Exclusive, owner: m.owner, stamp: now}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if granted {
			m.held = mode
			metrics.LockWaitSeconds.WithLabelValues(mode.String()).Observe(timeNow().Sub(start).Seconds())
			log.WithFields(log.Fields{"mode": mode, "owner": m.owner}).Trace("lock::lock::acquire; granted")
			return nil
		}

		if !timeNow().Before(deadline) {
			metrics.LockTimeoutsTotal.WithLabelValues(mode.String()).Inc()
			log.WithFields(log.Fields{"mode": mode, "holder": holder, "waited": m.conf.WaitTimeout}).Warn("lock::lock::acquire; timed out")
			return icommon.NewLockTimeoutError(fmt.Sprintf("lock::lock::acquire; timed out waiting for the %s lock", mode), holder)
		}
		sleep(m.conf.PollInterval)
	}
}

// Release releases the lock held by this manager.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held == Unlocked {
		return fmt.Errorf("lock::lock::Release; lock isn't held")
	}

	held := m.held
	_, _, err := m.transition(func(cur *lockLine, now int64) *lockLine {
		switch {
		case held == Shared && cur.state == Shared && cur.readers > 1:
			next := *cur
			next.readers--
			return &next
		case held == Shared && cur.state == Shared:
			return unlockedLine()
		case held == Exclusive && cur.state == Exclusive && cur.owner == m.owner:
			return unlockedLine()
		}

		log.WithFields(log.Fields{"held": held, "found": cur.state, "owner": cur.owner}).Warn("lock::lock::Release; lock was broken while being held")
		return nil
	})

	// the lock isn't ours anymore even if the header couldn't be written
	m.held = Unlocked
	return err
}

// Inspect returns the current lock line of the database.
func (m *Manager) Inspect() (state State, readers int, owner string, err error) {
	_, _, err = m.transition(func(cur *lockLine, now int64) *lockLine {
		state, readers, owner = cur.state, cur.readers, cur.owner
		return nil
	})
	return state, readers, owner, err
}

// transition performs one latched read-modify-write of the lock line.
// fn returns the new lock line or nil to leave the line untouched.
// Stale locks are broken before fn is called.
func (m *Manager) transition(fn func(cur *lockLine, now int64) *lockLine) (changed bool, holder string, err error) {
	f, err := m.store.Fs().OpenFile(m.store.Path(), os.O_RDWR, 0644)
	if err != nil {
		return false, "", err
	}
	defer f.Close()

	unlatch, err := latch(f)
	if err != nil {
		return false, "", err
	}
	defer unlatch()

	buf := make([]byte, linestore.LockLineWidth)
	if _, err = f.ReadAt(buf, linestore.LockLineOffset); err != nil {
		return false, "", fmt.Errorf("lock::lock::transition; reading lock line: %v", err)
	}

	cur, err := parseLockLine(string(buf))
	if err != nil {
		return false, "", err
	}

	now := timeNow().UnixNano()
	if cur.state != Unlocked && now-cur.stamp > m.conf.DeadlockTimeout.Nanoseconds() {
		log.WithFields(log.Fields{
			"state": cur.state,
			"owner": cur.owner,
			"age":   time.Duration(now - cur.stamp),
		}).Warn("lock::lock::transition; breaking stale lock")
		metrics.LockBreaksTotal.Inc()
		cur = unlockedLine()
		changed = true
	}

	next := fn(cur, now)
	if next != nil {
		cur = next
		changed = true
	}

	if changed {
		if _, err = f.WriteAt([]byte(cur.String()), linestore.LockLineOffset); err != nil {
			return false, "", err
		}
		if err = f.Sync(); err != nil {
			return false, "", err
		}
	}

	return next != nil, cur.owner, nil
}

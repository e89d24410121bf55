package common

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrorStack accumulates errors instead of unwinding on the first one.
// Callers inspect it after an operation returned an empty result.
type ErrorStack struct {
	mu   sync.Mutex
	errs []error
}

// Push records err on the stack. A nil err is ignored.
func (s *ErrorStack) Push(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Pushf records a new error wrapping cause with the formatted message.
func (s *ErrorStack) Pushf(cause error, format string, args ...interface{}) {
	if cause == nil {
		return
	}
	s.Push(errors.Wrapf(cause, format, args...))
}

// Pending reports whether any error is on the stack.
func (s *ErrorStack) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) != 0
}

// Errors returns a copy of the errors on the stack, oldest first.
func (s *ErrorStack) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Last returns the most recent error, or nil.
func (s *ErrorStack) Last() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

// Err folds the stack into a single error, or nil when empty.
func (s *ErrorStack) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch len(s.errs) {
	case 0:
		return nil
	case 1:
		return s.errs[0]
	}
	msgs := make([]string, 0, len(s.errs))
	for _, err := range s.errs {
		msgs = append(msgs, err.Error())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Clear empties the stack.
func (s *ErrorStack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = nil
}

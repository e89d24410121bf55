package common

import "sync"

// ProtectedBool is a boolean protected by RW lock
type ProtectedBool struct {
	m     sync.RWMutex
	value bool
}

// NewProtectedBool returns a ProtectedBool holding the given value.
func NewProtectedBool(value bool) *ProtectedBool {
	return &ProtectedBool{value: value}
}

// Set sets the value (surprise surprise!)
func (b *ProtectedBool) Set(nvalue bool) {
	b.m.Lock()
	defer b.m.Unlock()
	b.value = nvalue
}

// Get gets the value
func (b *ProtectedBool) Get() bool {
	b.m.RLock()
	defer b.m.RUnlock()
	return b.value
}

// Swap sets the new value and returns the previous one.
func (b *ProtectedBool) Swap(nvalue bool) bool {
	b.m.Lock()
	defer b.m.Unlock()
	prev := b.value
	b.value = nvalue
	return prev
}

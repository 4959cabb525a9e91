package core

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// HTMLAssignPrefix marks assigns holding the rendered HTML of one element.
// The rest of the key is the element id; the router patches changed ones.
const HTMLAssignPrefix = "html:"

// Assigns holds a component's render state. A Set only marks the key dirty
// when the value differs from what the key held before.
type Assigns struct {
	mu    sync.RWMutex
	data  map[string]any
	dirty map[string]struct{}
}

func NewAssigns() *Assigns {
	return &Assigns{
		data:  make(map[string]any),
		dirty: make(map[string]struct{}),
	}
}

func (a *Assigns) Get(key string) any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data[key]
}

// GetString returns the value under key, or "" when it is absent or not a string.
func (a *Assigns) GetString(key string) string {
	s, _ := a.Get(key).(string)
	return s
}

func (a *Assigns) Set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if old, ok := a.data[key]; ok && sameValue(old, value) {
		return
	}
	a.data[key] = value
	a.dirty[key] = struct{}{}
}

// Data returns a snapshot of every assign.
func (a *Assigns) Data() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]any, len(a.data))
	for k, v := range a.data {
		out[k] = v
	}
	return out
}

// Pending reports whether any key changed since it was last taken.
func (a *Assigns) Pending() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.dirty) > 0
}

// TakeChanged returns the changed keys with the given prefix, sorted, and
// clears them. Changes under other prefixes stay pending.
func (a *Assigns) TakeChanged(prefix string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var keys []string
	for k := range a.dirty {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			delete(a.dirty, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

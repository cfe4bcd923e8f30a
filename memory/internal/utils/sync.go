package utils

import (
	"sync"
)

// OptionalMutex guards resources that can be created externally synchronized. When disabled,
// Lock and Unlock are no-ops. The zero value is disabled.
type OptionalMutex struct {
	mutex   sync.Mutex
	enabled bool
}

var _ sync.Locker = &OptionalMutex{}

// Init switches the mutex on or off. It must be called before the mutex is first used.
func (m *OptionalMutex) Init(enabled bool) {
	m.enabled = enabled
}

func (m *OptionalMutex) Lock() {
	if m.enabled {
		m.mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.enabled {
		m.mutex.Unlock()
	}
}

// OptionalRWMutex is OptionalMutex for owners with read-only queries, which take RLock so they
// can run alongside each other
type OptionalRWMutex struct {
	mutex   sync.RWMutex
	enabled bool
}

var _ sync.Locker = &OptionalRWMutex{}

func (m *OptionalRWMutex) Init(enabled bool) {
	m.enabled = enabled
}

func (m *OptionalRWMutex) Lock() {
	if m.enabled {
		m.mutex.Lock()
	}
}

func (m *OptionalRWMutex) Unlock() {
	if m.enabled {
		m.mutex.Unlock()
	}
}

func (m *OptionalRWMutex) RLock() {
	if m.enabled {
		m.mutex.RLock()
	}
}

func (m *OptionalRWMutex) RUnlock() {
	if m.enabled {
		m.mutex.RUnlock()
	}
}

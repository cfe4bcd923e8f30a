package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalMutexDisabledIsReentrant(t *testing.T) {
	var m OptionalMutex
	m.Lock()
	m.Lock()
	m.Unlock()
	m.Unlock()

	var rw OptionalRWMutex
	rw.Init(false)
	rw.Lock()
	rw.RLock()
	rw.RUnlock()
	rw.Unlock()
}

func TestOptionalMutexEnabledSerializes(t *testing.T) {
	var m OptionalMutex
	m.Init(true)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 8000, counter)
}

func TestOptionalRWMutexEnabledSerializesWriters(t *testing.T) {
	var rw OptionalRWMutex
	rw.Init(true)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				rw.Lock()
				counter++
				rw.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				rw.RLock()
				_ = counter
				rw.RUnlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2000, counter)
}

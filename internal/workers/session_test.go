package workers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionHandleEnforcesMinimumDelay(t *testing.T) {
	r := newSessionRegistry(50 * time.Millisecond)
	h := r.get("session-1")

	release := h.acquire()
	release()

	start := time.Now()
	release2 := h.acquire()
	elapsed := time.Since(start)
	release2()

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestSessionRegistryReturnsSameHandleForSameKey(t *testing.T) {
	r := newSessionRegistry(0)
	assert.Same(t, r.get("a"), r.get("a"))
	assert.NotSame(t, r.get("a"), r.get("b"))
}

func TestSessionHandleSerializesConcurrentAccess(t *testing.T) {
	r := newSessionRegistry(0)
	h := r.get("session-2")

	var wg sync.WaitGroup
	var active int
	var maxActive int
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := h.acquire()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

package vsync

import (
	"sync/atomic"
	"time"
)

// Semaphore admits up to max holders and lets at most maxWaiters queue behind them.
type Semaphore struct {
	c          chan struct{}
	waiterSlot int32
}

func NewSemaphore(max uint, maxWaiters uint) *Semaphore {
	return &Semaphore{c: make(chan struct{}, max), waiterSlot: int32(maxWaiters + max)}
}

func (m *Semaphore) Lock() {
	atomic.AddInt32(&m.waiterSlot, -1)
	m.c <- struct{}{}
}

func (m *Semaphore) Unlock() {
	<-m.c
	atomic.AddInt32(&m.waiterSlot, 1)
}

// TryLock fails fast when the waiter queue is full, otherwise waits up to timeout.
func (m *Semaphore) TryLock(timeout time.Duration) bool {
	slotsLeft := atomic.AddInt32(&m.waiterSlot, -1)
	if slotsLeft < 0 {
		atomic.AddInt32(&m.waiterSlot, 1)
		return false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case m.c <- struct{}{}:
		return true
	case <-t.C:
		atomic.AddInt32(&m.waiterSlot, 1)
	}
	return false
}

// Probe checks the semaphore can still be acquired within timeout and releases it at once.
func (m *Semaphore) Probe(timeout time.Duration) bool {
	if !m.TryLock(timeout) {
		return false
	}
	m.Unlock()
	return true
}

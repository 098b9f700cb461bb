package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestKeyLock_ReleasesEntries(t *testing.T) {
	locks := New()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("k")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected 50 increments, got %d", counter)
	}
	if locks.size() != 0 {
		t.Errorf("Expected no tracked keys, got %d", locks.size())
	}
}

func TestKeyLock_KeysAreIndependent(t *testing.T) {
	locks := New()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Holding key a blocked key b")
	}
}

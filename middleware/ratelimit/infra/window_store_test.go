package infra

import (
	"sync"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

func TestWindowStore_CheckWithoutHistoryAllowsWithZero(t *testing.T) {
	s := NewWindowStore(3, time.Minute)

	allowed, n := s.Check(domain.Key("k"))
	if !allowed || n != 0 {
		t.Fatalf("expected (true, 0) for unknown key, got (%v, %d)", allowed, n)
	}
}

func TestWindowStore_BurstUpToLimitThenRejects(t *testing.T) {
	s := NewWindowStore(3, time.Minute)
	lim := s.Get(domain.Key("k"))

	for i := 0; i < 3; i++ {
		if !lim.Allow() {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}
	if lim.Allow() {
		t.Fatalf("expected request 4 to be rejected")
	}

	// Check não registra: contagem continua 3
	allowed, n := s.Check(domain.Key("k"))
	if allowed || n != 3 {
		t.Fatalf("expected (false, 3), got (%v, %d)", allowed, n)
	}
}

func TestWindowStore_ResetsAfterWindowElapses(t *testing.T) {
	s := NewWindowStore(1, 20*time.Millisecond)
	lim := s.Get(domain.Key("k"))

	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	// rejeições não contam; depois da janela, admite de novo
	for i := 0; i < 3; i++ {
		if lim.Allow() {
			t.Fatalf("expected Allow to be false while window full")
		}
	}

	time.Sleep(30 * time.Millisecond)
	if !lim.Allow() {
		t.Fatalf("expected Allow to be true after window elapsed")
	}
}

func TestWindowStore_RecordOnlyCountsOnExplicitCall(t *testing.T) {
	s := NewWindowStore(10, time.Minute)

	s.Record(domain.Key("k"))
	s.Record(domain.Key("k"))

	_, n := s.Check(domain.Key("k"))
	if n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	s := NewWindowStore(1, time.Minute)

	if !s.Get(domain.Key("a")).Allow() {
		t.Fatalf("expected a to be allowed")
	}
	if !s.Get(domain.Key("b")).Allow() {
		t.Fatalf("expected b to be allowed (janela própria)")
	}
	if s.Get(domain.Key("a")).Allow() {
		t.Fatalf("expected a to be rejected")
	}
}

func TestWindowStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewWindowStore(5, time.Minute, WithWindowIdleTTL(2*time.Millisecond), WithWindowCleanupEvery(0))

	s.Record(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	// remoção é só otimização: ausência == contagem zero
	allowed, n := s.Check(domain.Key("k"))
	if !allowed || n != 0 {
		t.Fatalf("expected fresh state after cleanup, got (%v, %d)", allowed, n)
	}
}

func TestWindowStore_ConcurrentAllowNeverExceedsLimit(t *testing.T) {
	const limit = 50
	s := NewWindowStore(limit, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 4*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Get(domain.Key("k")).Allow() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != limit {
		t.Fatalf("expected exactly %d granted, got %d", limit, granted)
	}
}

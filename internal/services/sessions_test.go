package services

import (
	"sync"
	"testing"
	"time"

	"rentbook/internal/storage/memory"
)

func TestSessionsIsolateRepositories(t *testing.T) {
	st := memory.New()
	created := 0
	sessions := NewSessions(func() *Repository {
		created++
		return NewRepository(st, nil)
	}, 8, time.Hour)

	a1 := sessions.Get("a")
	a2 := sessions.Get("a")
	b := sessions.Get("b")

	if a1 != a2 {
		t.Fatal("same session id should reuse its repository")
	}
	if a1 == b {
		t.Fatal("different sessions must not share a repository")
	}
	if created != 2 || sessions.Len() != 2 {
		t.Fatalf("created=%d len=%d", created, sessions.Len())
	}

	sessions.Drop("a")
	if sessions.Get("a") == a1 {
		t.Fatal("dropped session should get a fresh repository")
	}
}

func TestSessionsConcurrentGetSharesRepository(t *testing.T) {
	sessions := NewSessions(func() *Repository { return NewRepository(memory.New(), nil) }, 8, time.Hour)

	var wg sync.WaitGroup
	got := make([]*Repository, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = sessions.Get("a")
		}()
	}
	wg.Wait()
	for _, r := range got {
		if r != got[0] {
			t.Fatal("concurrent first requests created separate repositories")
		}
	}
}

func TestSessionsExpireIdle(t *testing.T) {
	sessions := NewSessions(func() *Repository { return NewRepository(memory.New(), nil) }, 8, -time.Second)
	sessions.Get("a")
	if n := sessions.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
}

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/robalobadob/whackamole/internal/game"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	e := game.New(nil, game.WithID("abc"), game.WithScheduler(game.NewManualScheduler()))

	if err := st.Save(ctx, e); err != nil {
		t.Fatalf("save: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}

	got, err := st.Get(ctx, "abc")
	if err != nil || got != e {
		t.Fatalf("get returned %v, %v", got, err)
	}

	if err := st.Delete(ctx, "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := st.Delete(ctx, "abc"); err != nil {
		t.Errorf("deleting twice should be fine, got %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("expected empty store, got %d", st.Len())
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	sched := game.NewManualScheduler()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := game.New(nil, game.WithScheduler(sched))
			_ = st.Save(ctx, e)
			_, _ = st.Get(ctx, e.ID())
		}()
	}
	wg.Wait()
	if st.Len() != 50 {
		t.Errorf("expected 50 sessions, got %d", st.Len())
	}
}

package history

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

func TestMemoryStore_EmptyThreadYieldsPlaceholder(t *testing.T) {
	store := NewMemoryStore()

	msgs, err := store.Get(context.Background(), "generator", "thread-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "no message history." {
		t.Errorf("placeholder = %+v", msgs[0])
	}
}

func TestMemoryStore_SetReplacesWholeThread(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := []models.Message{
		{Role: models.RoleUser, Content: "how many orders?"},
		{Role: models.RoleAssistant, Content: "42"},
	}
	if err := store.Set(ctx, "generator", "thread-1", first); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	second := []models.Message{
		{Role: models.RoleUser, Content: "how many customers?"},
	}
	if err := store.Set(ctx, "generator", "thread-1", second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, "generator", "thread-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "how many customers?" {
		t.Errorf("Set should replace, not append; got %+v", got)
	}
}

func TestMemoryStore_ThreadsAreKeyedByAgent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "context", "thread-1", []models.Message{
		{Role: models.RoleAssistant, Content: "schema notes"},
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, "generator", "thread-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "no message history." {
		t.Errorf("generator thread should be untouched by context writes; got %+v", got)
	}
}

func TestMemoryStore_ReturnsDefensiveCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	orig := []models.Message{{Role: models.RoleUser, Content: "original"}}
	if err := store.Set(ctx, "generator", "thread-1", orig); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Mutating the caller's slice must not affect stored state.
	orig[0].Content = "mutated"

	got, err := store.Get(ctx, "generator", "thread-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got[0].Content != "original" {
		t.Error("stored history shares memory with the caller's slice")
	}

	// Mutating a read result must not affect stored state either.
	got[0].Content = "mutated again"
	again, _ := store.Get(ctx, "generator", "thread-1")
	if again[0].Content != "original" {
		t.Error("read results share memory with stored history")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			threadID := fmt.Sprintf("thread-%d", n%4)
			_ = store.Set(ctx, "generator", threadID, []models.Message{
				{Role: models.RoleUser, Content: fmt.Sprintf("turn %d", n)},
			})
			_, _ = store.Get(ctx, "generator", threadID)
		}(i)
	}
	wg.Wait()
}

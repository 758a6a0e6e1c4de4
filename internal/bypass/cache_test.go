package bypass

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	tokens TokenSet
	err    error
}

func (f *fakeProvider) Acquire(_ context.Context, _, _ string, _ []string) (TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.tokens, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCache_SubsetHitInvokesProviderOnce(t *testing.T) {
	provider := &fakeProvider{tokens: TokenSet{"acw_tc": "1", "cdn_sec_tc": "2", "acw_sc__v2": "3"}}
	cache := NewCache(provider, zerolog.Nop())

	ctx := context.Background()
	if _, err := cache.Get(ctx, "anyrouter.top", "https://anyrouter.top/login", []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"}); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Second call asks for a subset of the cached complete set.
	tokens, err := cache.Get(ctx, "anyrouter.top", "https://anyrouter.top/login", []string{"acw_tc"})
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if tokens["acw_tc"] != "1" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
	if provider.callCount() != 1 {
		t.Fatalf("provider should be invoked at most once, got %d calls", provider.callCount())
	}
}

func TestCache_PartialResultNeverStored(t *testing.T) {
	provider := &fakeProvider{tokens: TokenSet{"acw_tc": "1"}}
	cache := NewCache(provider, zerolog.Nop())

	ctx := context.Background()
	required := []string{"acw_tc", "acw_sc__v2"}
	if _, err := cache.Get(ctx, "anyrouter.top", "https://anyrouter.top/login", required); err == nil {
		t.Fatal("incomplete token set must be an error")
	}

	// The partial result was not cached: the next call hits the provider again.
	if _, err := cache.Get(ctx, "anyrouter.top", "https://anyrouter.top/login", required); err == nil {
		t.Fatal("expected second failure")
	}
	if provider.callCount() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", provider.callCount())
	}
}

func TestCache_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("solver offline")
	provider := &fakeProvider{err: boom}
	cache := NewCache(provider, zerolog.Nop())

	_, err := cache.Get(context.Background(), "x.example", "https://x.example/login", []string{"t"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestCache_ClearForcesReacquisition(t *testing.T) {
	provider := &fakeProvider{tokens: TokenSet{"acw_tc": "1"}}
	cache := NewCache(provider, zerolog.Nop())

	ctx := context.Background()
	required := []string{"acw_tc"}
	if _, err := cache.Get(ctx, "anyrouter.top", "https://anyrouter.top/login", required); err != nil {
		t.Fatalf("get: %v", err)
	}

	cache.Clear()

	if _, err := cache.Get(ctx, "anyrouter.top", "https://anyrouter.top/login", required); err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if provider.callCount() != 2 {
		t.Fatalf("clear should force reacquisition, got %d calls", provider.callCount())
	}
}

func TestCache_ConcurrentAccessSerialized(t *testing.T) {
	provider := &fakeProvider{tokens: TokenSet{"acw_tc": "1"}}
	cache := NewCache(provider, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get(context.Background(), "anyrouter.top", "https://anyrouter.top/login", []string{"acw_tc"})
		}()
	}
	wg.Wait()

	if provider.callCount() != 1 {
		t.Fatalf("concurrent gets for one domain must acquire once, got %d", provider.callCount())
	}
	if cache.Acquisitions() != 1 {
		t.Fatalf("acquisition counter should be 1, got %d", cache.Acquisitions())
	}
}

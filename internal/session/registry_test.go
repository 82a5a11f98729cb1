package session

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/conversation"
)

type echoAsker struct{}

func (echoAsker) Ask(_ context.Context, q string) (string, error) { return q, nil }

type blockingAsker struct{}

func (blockingAsker) Ask(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newTestRegistry(clock func() time.Time) *Registry {
	return NewRegistry(func(_, _ string) *conversation.Controller {
		return conversation.New(conversation.Options{Asker: echoAsker{}, Clock: clock})
	})
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	r := newTestRegistry(nil)

	first := r.Get("visitor1", "tab-1")
	second := r.Get("visitor1", "tab-1")

	if first != second {
		t.Fatal("Expected the same controller for the same page session")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Len())
	}
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r := newTestRegistry(nil)

	tab1 := r.Get("visitor1", "tab-1")
	tab2 := r.Get("visitor1", "tab-2")
	other := r.Get("visitor2", "tab-1")

	if tab1 == tab2 || tab1 == other {
		t.Fatal("Expected distinct controllers per page session")
	}

	tab1.Submit(context.Background(), "hello")
	tab1.Wait()

	if got := len(tab2.Snapshot().Messages); got != 0 {
		t.Errorf("Expected tab-2 to stay empty, got %d messages", got)
	}
	if got := len(tab1.Snapshot().Messages); got != 2 {
		t.Errorf("Expected tab-1 to have 2 messages, got %d", got)
	}
}

func TestRegistry_Close(t *testing.T) {
	r := newTestRegistry(nil)
	r.Get("visitor1", "tab-1")

	if !r.Close("visitor1", "tab-1") {
		t.Fatal("Expected Close to report an open session")
	}
	if r.Lookup("visitor1", "tab-1") != nil {
		t.Error("Expected session to be gone")
	}
	if r.Close("visitor1", "tab-1") {
		t.Error("Expected second Close to report nothing closed")
	}
	if r.Len() != 0 {
		t.Errorf("Expected 0 sessions, got %d", r.Len())
	}
}

func TestRegistry_CloseVisitorKeepsOthers(t *testing.T) {
	r := newTestRegistry(nil)
	r.Get("visitor1", "tab-1")
	r.Get("visitor1", "tab-2")
	keep := r.Get("visitor2", "tab-1")

	if n := r.CloseVisitor("visitor1"); n != 2 {
		t.Errorf("Expected 2 sessions closed, got %d", n)
	}
	if r.Lookup("visitor2", "tab-1") != keep {
		t.Error("Expected visitor2 session to remain")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Len())
	}
}

func TestRegistry_EvictIdleCancelsInFlight(t *testing.T) {
	start := time.Now()
	r := NewRegistry(func(_, _ string) *conversation.Controller {
		return conversation.New(conversation.Options{
			Asker: blockingAsker{},
			Clock: func() time.Time { return start },
		})
	})

	hung := r.Get("visitor1", "tab-1")
	hung.Submit(context.Background(), "never answered")

	if n := r.EvictIdle(time.Hour, start.Add(30*time.Minute)); n != 0 {
		t.Fatalf("Expected nothing evicted before ttl, got %d", n)
	}
	if n := r.EvictIdle(time.Hour, start.Add(2*time.Hour)); n != 1 {
		t.Fatalf("Expected 1 eviction, got %d", n)
	}

	done := make(chan struct{})
	go func() {
		hung.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected in-flight query to be cancelled on eviction")
	}
	if hung.Busy() {
		t.Error("Expected evicted controller to be idle")
	}
}

func TestRegistry_EvictIdleKeepsSubscribedSession(t *testing.T) {
	start := time.Now()
	r := newTestRegistry(func() time.Time { return start })

	c := r.Get("visitor1", "tab-1")
	c.Submit(context.Background(), "first")
	c.Wait()
	c.Submit(context.Background(), "second")
	c.Wait()
	before := len(c.Snapshot().Messages)

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()
	<-updates

	if n := r.EvictIdle(time.Hour, start.Add(2*time.Hour)); n != 0 {
		t.Fatalf("Expected subscribed session to survive eviction, evicted %d", n)
	}
	if got := r.Lookup("visitor1", "tab-1"); got != c {
		t.Fatal("Expected the same controller after eviction sweep")
	}
	if got := len(r.Get("visitor1", "tab-1").Snapshot().Messages); got != before {
		t.Errorf("Expected %d messages to survive, got %d", before, got)
	}
	select {
	case _, ok := <-updates:
		if !ok {
			t.Error("Expected subscription to stay open")
		}
	default:
	}

	unsubscribe()
	if n := r.EvictIdle(time.Hour, start.Add(2*time.Hour)); n != 1 {
		t.Errorf("Expected 1 eviction once the session is idle and unwatched, got %d", n)
	}
}

func TestRegistry_EvictIdleSparesFreshSubmit(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	r := NewRegistry(func(_, _ string) *conversation.Controller {
		return conversation.New(conversation.Options{Asker: blockingAsker{}, Clock: clock})
	})
	c := r.Get("visitor1", "tab-1")

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	if !c.Submit(context.Background(), "just sent") {
		t.Fatal("Expected submit to be accepted")
	}

	if n := r.EvictIdle(time.Hour, clock()); n != 0 {
		t.Fatalf("Expected session with a fresh submit to survive, evicted %d", n)
	}
	if !c.Busy() {
		t.Error("Expected the fresh query to stay in flight")
	}
	c.Cancel()
	c.Wait()
}

func TestRegistry_CloseAll(t *testing.T) {
	r := newTestRegistry(nil)
	for i := 0; i < 5; i++ {
		r.Get("visitor", "tab-"+strconv.Itoa(i))
	}

	r.CloseAll()

	if r.Len() != 0 {
		t.Errorf("Expected 0 sessions, got %d", r.Len())
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	r := newTestRegistry(nil)

	var wg sync.WaitGroup
	results := make([]*conversation.Controller, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Get("visitor", "tab-shared")
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		if c != results[0] {
			t.Fatal("Expected every goroutine to get the same controller")
		}
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Len())
	}
}

func TestStartEvictionWorkerStopsOnCancel(t *testing.T) {
	r := newTestRegistry(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	r.Get("visitor", "tab-1")

	ctx, cancel := context.WithCancel(context.Background())
	StartEvictionWorker(ctx, r, time.Hour, 10*time.Millisecond)
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for r.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Errorf("Expected idle session to be evicted, %d left", r.Len())
	}
}

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/hr-resource-chat/internal/chatbot"
	"github.com/ashureev/hr-resource-chat/internal/domain"
	"github.com/ashureev/hr-resource-chat/internal/render"
)

type fakeAsker struct {
	mu    sync.Mutex
	calls []string
	reply string
	err   error
	gate  chan struct{}
}

func (f *fakeAsker) Ask(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeAsker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	mu   sync.Mutex
	msgs []domain.Message
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeRecorder) recorded() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.msgs...)
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 5, 1, 15, 4, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newController(asker chatbot.Asker, rec Recorder) *Controller {
	return New(Options{Asker: asker, Recorder: rec, Clock: fixedClock()})
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	asker := &fakeAsker{reply: "unused"}
	c := newController(asker, nil)
	c.SetInput("   ")
	before := c.Snapshot()

	for _, text := range []string{"", "   ", "\n\t ", "\uFEFF "} {
		assert.False(t, c.Submit(context.Background(), text))
	}
	c.Wait()

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, 0, asker.callCount())
}

func TestSubmitAppendsUserMessageBeforeReply(t *testing.T) {
	asker := &fakeAsker{reply: "ok", gate: make(chan struct{})}
	c := newController(asker, nil)
	c.SetInput("Find Python developers")

	require.True(t, c.Submit(context.Background(), "Find Python developers"))

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, domain.OriginUser, snap.Messages[0].Origin)
	assert.Equal(t, "Find Python developers", snap.Messages[0].Text)
	assert.Equal(t, "03:04 PM", snap.Messages[0].Timestamp)
	assert.True(t, snap.Waiting)
	assert.Empty(t, snap.PendingInput)
	assert.True(t, c.Busy())

	close(asker.gate)
	c.Wait()
	assert.False(t, c.Busy())
}

func TestSubmitKeepsTextVerbatim(t *testing.T) {
	asker := &fakeAsker{reply: "ok"}
	c := newController(asker, nil)

	require.True(t, c.Submit(context.Background(), "  padded query \n"))
	c.Wait()

	snap := c.Snapshot()
	require.NotEmpty(t, snap.Messages)
	assert.Equal(t, "  padded query \n", snap.Messages[0].Text)
	assert.Equal(t, []string{"  padded query \n"}, asker.calls)
}

func TestSubmitWhileWaitingIsIgnored(t *testing.T) {
	asker := &fakeAsker{reply: "first reply", gate: make(chan struct{})}
	c := newController(asker, nil)

	require.True(t, c.Submit(context.Background(), "first"))
	assert.False(t, c.Submit(context.Background(), "second"))

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 1)

	close(asker.gate)
	c.Wait()

	assert.Equal(t, 1, asker.callCount())
	snap = c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "first", snap.Messages[0].Text)
	assert.Equal(t, "first reply", snap.Messages[1].Text)

	// The slot is free again once the first query settles.
	assert.True(t, c.Submit(context.Background(), "third"))
	c.Wait()
	assert.Equal(t, 2, asker.callCount())
}

func TestSubmitSuccessAppendsAssistantMessage(t *testing.T) {
	asker := &fakeAsker{reply: "Hello **world**"}
	c := newController(asker, nil)

	require.True(t, c.Submit(context.Background(), "hi"))
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.False(t, snap.Waiting)
	assert.Empty(t, snap.ErrorText)

	bot := snap.Messages[1]
	assert.Equal(t, domain.OriginAssistant, bot.Origin)
	assert.Equal(t, "03:04 PM", bot.Timestamp)

	paragraphs := render.RenderText(bot.Text)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, []render.Span{{Text: "Hello "}, {Text: "world", Emphasis: true}}, paragraphs[0].Spans)
}

func TestSubmitFailureSetsErrorAndKeepsUserMessage(t *testing.T) {
	asker := &fakeAsker{err: errors.New("dial tcp: connection refused")}
	c := newController(asker, nil)

	require.True(t, c.Submit(context.Background(), "hi"))
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, domain.OriginUser, snap.Messages[0].Origin)
	assert.Equal(t, FailureText, snap.ErrorText)
	assert.False(t, snap.Waiting)
}

func TestSubmitClearsPreviousError(t *testing.T) {
	asker := &fakeAsker{err: errors.New("boom")}
	c := newController(asker, nil)

	require.True(t, c.Submit(context.Background(), "one"))
	c.Wait()
	require.Equal(t, FailureText, c.Snapshot().ErrorText)

	asker.mu.Lock()
	asker.err = nil
	asker.reply = "fine"
	asker.gate = make(chan struct{})
	asker.mu.Unlock()

	require.True(t, c.Submit(context.Background(), "two"))
	assert.Empty(t, c.Snapshot().ErrorText)

	close(asker.gate)
	c.Wait()
	snap := c.Snapshot()
	assert.Empty(t, snap.ErrorText)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, []string{"one", "two", "fine"}, []string{snap.Messages[0].Text, snap.Messages[1].Text, snap.Messages[2].Text})
}

func TestSubmitOutlivesCallerContext(t *testing.T) {
	asker := &fakeAsker{reply: "late", gate: make(chan struct{})}
	c := newController(asker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, c.Submit(ctx, "q"))
	cancel()

	close(asker.gate)
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Empty(t, snap.ErrorText)
}

func TestCancelSettlesAsFailure(t *testing.T) {
	asker := &fakeAsker{gate: make(chan struct{})}
	c := newController(asker, nil)

	assert.False(t, c.Cancel())
	require.True(t, c.Submit(context.Background(), "slow"))
	assert.True(t, c.Cancel())
	c.Wait()

	snap := c.Snapshot()
	assert.False(t, snap.Waiting)
	assert.Equal(t, FailureText, snap.ErrorText)
	require.Len(t, snap.Messages, 1)
}

func TestWaitContextTimesOut(t *testing.T) {
	asker := &fakeAsker{gate: make(chan struct{})}
	c := newController(asker, nil)
	defer func() {
		close(asker.gate)
		c.Wait()
	}()

	require.NoError(t, c.WaitContext(context.Background()))
	require.True(t, c.Submit(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitContext(ctx), context.DeadlineExceeded)
}

func TestRecorderReceivesMessagesInOrder(t *testing.T) {
	asker := &fakeAsker{reply: "answer"}
	rec := &fakeRecorder{}
	c := newController(asker, rec)

	require.True(t, c.Submit(context.Background(), "question"))
	c.Wait()

	got := rec.recorded()
	require.Len(t, got, 2)
	assert.Equal(t, domain.OriginUser, got[0].Origin)
	assert.Equal(t, "question", got[0].Text)
	assert.Equal(t, domain.OriginAssistant, got[1].Origin)
	assert.Equal(t, "answer", got[1].Text)
}

func TestRecorderErrorDoesNotSurface(t *testing.T) {
	asker := &fakeAsker{reply: "answer"}
	rec := &fakeRecorder{err: errors.New("disk full")}
	c := newController(asker, rec)

	require.True(t, c.Submit(context.Background(), "question"))
	c.Wait()

	snap := c.Snapshot()
	assert.Empty(t, snap.ErrorText)
	assert.Len(t, snap.Messages, 2)
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	asker := &fakeAsker{reply: "done", gate: make(chan struct{})}
	c := newController(asker, nil)

	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	initial := <-ch
	assert.Empty(t, initial.Messages)

	require.True(t, c.Submit(context.Background(), "q"))
	close(asker.gate)
	c.Wait()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok)
			if !snap.Waiting && len(snap.Messages) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for settled snapshot")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := newController(&fakeAsker{}, nil)
	ch, unsubscribe := c.Subscribe()
	<-ch

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestCloseStopsController(t *testing.T) {
	asker := &fakeAsker{gate: make(chan struct{})}
	c := newController(asker, nil)
	ch, _ := c.Subscribe()
	<-ch

	require.True(t, c.Submit(context.Background(), "in flight"))
	c.Close()
	c.Wait()

	for range ch {
	}

	assert.False(t, c.Submit(context.Background(), "after close"))
	assert.Equal(t, FailureText, c.Snapshot().ErrorText)

	late, _ := c.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}

func TestSetInputTracksPendingText(t *testing.T) {
	c := newController(&fakeAsker{}, nil)
	before := c.LastActive()

	c.SetInput("Find")
	c.SetInput("Find Go devs")

	assert.Equal(t, "Find Go devs", c.Snapshot().PendingInput)
	assert.False(t, c.LastActive().Before(before))
}

func TestDefaultsApplied(t *testing.T) {
	c := New(Options{Asker: &fakeAsker{reply: "x"}})

	require.True(t, c.Submit(context.Background(), "q"))
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	_, err := time.Parse(DefaultTimestampLayout, snap.Messages[0].Timestamp)
	assert.NoError(t, err)
}

func TestCloseIfIdleSkipsSubscribedController(t *testing.T) {
	start := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	c := New(Options{Asker: &fakeAsker{reply: "ok"}, Clock: func() time.Time { return start }})
	require.True(t, c.Submit(context.Background(), "q"))
	c.Wait()

	ch, unsubscribe := c.Subscribe()
	<-ch
	assert.Equal(t, 1, c.Subscribers())
	assert.False(t, c.CloseIfIdle(time.Hour, start.Add(2*time.Hour)))

	unsubscribe()
	assert.Equal(t, 0, c.Subscribers())
	assert.False(t, c.CloseIfIdle(time.Hour, start.Add(30*time.Minute)))
	assert.True(t, c.CloseIfIdle(time.Hour, start.Add(2*time.Hour)))
	assert.False(t, c.CloseIfIdle(time.Hour, start.Add(3*time.Hour)), "already closed")
	assert.False(t, c.Submit(context.Background(), "after eviction"))
}

func TestSubscribeCountsAsActivity(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := New(Options{Asker: &fakeAsker{}, Clock: clock})

	mu.Lock()
	now = now.Add(45 * time.Minute)
	mu.Unlock()
	_, unsubscribe := c.Subscribe()
	assert.Equal(t, clock(), c.LastActive())

	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()
	unsubscribe()
	assert.Equal(t, clock(), c.LastActive())
}

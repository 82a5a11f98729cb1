// Package conversation owns the state of one chat page session and the
// submit round trip to the chatbot service.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/chatbot"
	"github.com/ashureev/hr-resource-chat/internal/domain"
	"github.com/ashureev/hr-resource-chat/internal/metrics"
)

// FailureText is the only error users ever see.
const FailureText = "Failed to process query. Please try again."

// DefaultTimestampLayout renders hour:minute the way en-US locales do.
const DefaultTimestampLayout = "03:04 PM"

// ErrClosed is returned by WaitContext on a closed controller with nothing in flight.
var ErrClosed = errors.New("conversation closed")

// Recorder receives every message appended to the conversation.
type Recorder interface {
	Record(ctx context.Context, msg domain.Message) error
}

// Options configures a Controller.
type Options struct {
	Asker           chatbot.Asker
	Recorder        Recorder
	Clock           func() time.Time
	TimestampLayout string
	Logger          *slog.Logger
}

// Controller holds a ConversationState and runs at most one query at a time.
// All methods are safe for concurrent use.
type Controller struct {
	asker    chatbot.Asker
	recorder Recorder
	clock    func() time.Time
	layout   string
	logger   *slog.Logger

	mu         sync.Mutex
	state      domain.ConversationState
	cancel     context.CancelFunc
	inflight   chan struct{} // closed when the running query settles
	subs       map[int]chan domain.ConversationState
	nextSubID  int
	lastActive time.Time
	closed     bool
}

// New creates a controller with an empty conversation.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TimestampLayout == "" {
		opts.TimestampLayout = DefaultTimestampLayout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Controller{
		asker:    opts.Asker,
		recorder: opts.Recorder,
		clock:    opts.Clock,
		layout:   opts.TimestampLayout,
		logger:   opts.Logger,
		subs:     make(map[int]chan domain.ConversationState),
	}
	c.state.Messages = []domain.Message{}
	c.lastActive = c.clock()
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Busy reports whether a query is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Waiting
}

// LastActive returns the time of the last state change.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// SetInput stores the text currently typed in the input box.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.PendingInput == text {
		return
	}
	c.state.PendingInput = text
	c.changedLocked()
}

// Submit starts a query round trip and reports whether it was accepted.
// Blank text and submits while another query is in flight are ignored
// without touching state. The user message is appended before Submit
// returns; the reply or failure lands asynchronously.
//
// The outbound request keeps ctx's values but not its cancellation, so
// an HTTP handler may return before the reply arrives. Use Cancel to abort.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	if domain.IsBlank(text) {
		metrics.QueriesIgnored.WithLabelValues("blank").Inc()
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		metrics.QueriesIgnored.WithLabelValues("closed").Inc()
		return false
	}
	if c.state.Waiting {
		c.mu.Unlock()
		metrics.QueriesIgnored.WithLabelValues("in_flight").Inc()
		return false
	}

	msg := domain.NewMessage(domain.OriginUser, text, c.clock(), c.layout)
	c.state.Messages = append(c.state.Messages, msg)
	c.state.ErrorText = ""
	c.state.Waiting = true
	c.state.PendingInput = ""

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.inflight = done
	c.changedLocked()
	c.mu.Unlock()

	metrics.QueriesSubmitted.Inc()
	c.record(taskCtx, msg)

	go c.run(taskCtx, cancel, text, done)
	return true
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, query string, done chan struct{}) {
	defer close(done)
	defer cancel()

	reply, err := c.asker.Ask(ctx, query)

	c.mu.Lock()
	var appended *domain.Message
	if err != nil {
		c.state.ErrorText = FailureText
		metrics.QueriesFailed.Inc()
		c.logger.Warn("Chatbot query failed", "error", err, "query_length", len(query))
	} else {
		msg := domain.NewMessage(domain.OriginAssistant, reply, c.clock(), c.layout)
		c.state.Messages = append(c.state.Messages, msg)
		appended = &msg
	}
	c.state.Waiting = false
	c.cancel = nil
	c.inflight = nil
	c.changedLocked()
	c.mu.Unlock()

	if appended != nil {
		c.record(context.WithoutCancel(ctx), *appended)
	}
}

func (c *Controller) record(ctx context.Context, msg domain.Message) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, msg); err != nil {
		metrics.ArchiveWriteErrors.Inc()
		c.logger.Warn("Failed to archive message", "error", err, "message_id", msg.ID, "origin", msg.Origin)
	}
}

// Cancel aborts the in-flight query, which then settles as a failure.
// Returns false if nothing was in flight.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Wait blocks until no query is in flight.
func (c *Controller) Wait() {
	_ = c.WaitContext(context.Background())
}

// WaitContext blocks until no query is in flight or ctx is done.
func (c *Controller) WaitContext(ctx context.Context) error {
	c.mu.Lock()
	done := c.inflight
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel that receives a snapshot after every state
// change, starting with the current state. Slow readers skip intermediate
// snapshots but always see the latest. The channel is closed on unsubscribe
// or Close.
func (c *Controller) Subscribe() (<-chan domain.ConversationState, func()) {
	ch := make(chan domain.ConversationState, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.lastActive = c.clock()
	ch <- c.state.Clone()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(existing)
				c.lastActive = c.clock()
			}
		})
	}
}

// Subscribers returns the number of open subscriptions.
func (c *Controller) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close cancels any in-flight query and closes all subscriptions.
// Later submits are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// CloseIfIdle closes the controller if nobody is subscribed and its last
// activity is older than ttl. Check and close run under the same lock as Submit.
func (c *Controller) CloseIfIdle(ttl time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.subs) > 0 || now.Sub(c.lastActive) <= ttl {
		return false
	}
	c.closeLocked()
	return true
}

func (c *Controller) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// changedLocked must be called with c.mu held.
func (c *Controller) changedLocked() {
	c.lastActive = c.clock()
	snap := c.state.Clone()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale snapshot the reader has not picked up yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

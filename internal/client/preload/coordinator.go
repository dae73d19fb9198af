// Package preload prepares the next random image in the background so that
// the viewer can show it without waiting on the network.
//
// The coordinator owns one slot and an active session token. Every attempt
// runs under the token it was started with; when it finishes it may only
// fill the slot if that token is still active. Invalidate advances the token,
// so in-flight work is never cancelled, its result is simply discarded.
package preload

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/randpic/internal/client/models"
	"github.com/dmitrijs2005/randpic/internal/logging"
)

type State int

const (
	Idle State = iota
	Fetching
	Ready
	Discarded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Discarded:
		return "discarded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Token identifies one preload attempt. Tokens only grow.
type Token uint64

// Producer fetches a new image and stores it under a fresh id.
type Producer func(ctx context.Context) (*models.ImageRecord, error)

type Status struct {
	Token Token
	State State
}

type Coordinator struct {
	produce   Producer
	log       logging.Logger
	onSettled func(Token, State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active Token
	state  State
	record *models.ImageRecord
	closed bool
}

type Option func(*Coordinator)

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithOnSettled registers fn to be called after every attempt settles with
// Ready, Discarded or Failed. fn runs on the attempt's goroutine.
func WithOnSettled(fn func(Token, State)) Option {
	return func(c *Coordinator) { c.onSettled = fn }
}

func New(produce Producer, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		produce: produce,
		log:     logging.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a background attempt under a new token and returns it. It is
// a no-op, returning the current token, while an attempt for the active token
// is Fetching or its result is Ready.
func (c *Coordinator) Start() Token {
	c.mu.Lock()
	if c.closed || c.state == Fetching || c.state == Ready {
		t := c.active
		c.mu.Unlock()
		return t
	}
	c.active++
	token := c.active
	c.state = Fetching
	c.record = nil
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Debug(c.ctx, "preload started", "token", uint64(token))

	go c.run(token)
	return token
}

func (c *Coordinator) run(token Token) {
	defer c.wg.Done()

	rec, err := c.produce(c.ctx)

	c.mu.Lock()
	var settled State
	switch {
	case token != c.active:
		settled = Discarded
	case err != nil:
		settled = Failed
		c.state = Failed
		c.record = nil
	default:
		settled = Ready
		c.state = Ready
		c.record = rec
	}
	c.mu.Unlock()

	switch settled {
	case Discarded:
		args := []any{"token", uint64(token)}
		if rec != nil {
			args = append(args, "orphan_id", rec.ID)
		}
		c.log.Debug(c.ctx, "preload result discarded", args...)
	case Failed:
		c.log.Warn(c.ctx, "preload failed", "token", uint64(token), "error", err)
	case Ready:
		c.log.Debug(c.ctx, "preload ready", "token", uint64(token), "id", rec.ID)
	}

	if c.onSettled != nil {
		c.onSettled(token, settled)
	}
}

// Invalidate advances the active token and empties the slot. Any attempt
// still in flight will be discarded when it completes.
func (c *Coordinator) Invalidate() Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active++
	c.state = Idle
	c.record = nil
	return c.active
}

// Take returns the ready record and empties the slot. ok is false unless the
// slot is Ready under the active token.
func (c *Coordinator) Take() (rec *models.ImageRecord, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Ready || c.record == nil {
		return nil, false
	}
	rec = c.record
	c.record = nil
	c.state = Idle
	return rec, true
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Token: c.active, State: c.state}
}

// Close stops accepting new attempts, cancels the context handed to
// producers and waits for running attempts to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

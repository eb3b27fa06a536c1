package messenger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/observability"
	"github.com/matzehuels/modgraph/pkg/protocol"
)

// ErrClosed is returned to every caller whose request can no longer be
// answered because the port was torn down.
var ErrClosed error = errors.New(errors.ErrCodeChannelClosed, "channel closed")

// RemoteError is returned by [Messenger.Send] when the peer's handler failed.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote: " + e.Message
}

// Handler answers inbound requests. For requests that expect a response the
// returned message (nil encodes as JSON null) or error is sent back to the
// peer. For fire-and-forget requests the result is discarded and errors are
// logged.
type Handler func(ctx context.Context, req protocol.Message) (protocol.Message, error)

// envelope is the wire frame. A frame with a request is inbound work; a frame
// without one is a response to a request this side sent.
type envelope struct {
	ID       *uint64         `json:"id,omitempty"`
	Request  json.RawMessage `json:"request,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type result struct {
	msg protocol.Message
	err error
}

// Messenger correlates requests and responses over a [Port]. Both ends of a
// port run their own Messenger; either may send at any time.
type Messenger struct {
	port    Port
	handler Handler
	logger  *log.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan result
	closed  bool
	done    chan struct{}

	// Fire-and-forget requests are handled one at a time in arrival order.
	inboxMu sync.Mutex
	inbox   []json.RawMessage
	wake    chan struct{}

	handlers sync.WaitGroup
}

// Option configures a Messenger.
type Option func(*Messenger)

// WithLogger sets the logger used for protocol diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(m *Messenger) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Messenger over port. handler may be nil when this side only
// sends; inbound requests are then answered with an UNKNOWN_MESSAGE error.
// Call [Messenger.Run] to start processing inbound frames.
func New(port Port, handler Handler, opts ...Option) *Messenger {
	m := &Messenger{
		port:    port,
		handler: handler,
		logger:  log.New(io.Discard),
		pending: make(map[uint64]chan result),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run reads frames from the port until it closes or ctx is done. It then
// fails every pending [Messenger.Send] with [ErrClosed] and waits for running
// handlers to return. A port closing is a normal exit and returns nil.
//
// Requests without a response reach the handler serially, in the order they
// were read. Requests that expect a response each run on their own goroutine.
func (m *Messenger) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		m.shutdown()
		m.handlers.Wait()
	}()

	m.handlers.Add(1)
	go func() {
		defer m.handlers.Done()
		m.drain(ctx)
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = m.port.Close()
		case <-m.done:
		}
	}()

	for {
		data, err := m.port.Read(ctx)
		if err != nil {
			if stderrors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(errors.ErrCodeChannelClosed, err, "read")
		}
		m.dispatch(ctx, data)
	}
}

// Send delivers req to the peer. When req expects a response, Send blocks
// until the correlated response arrives, the port closes, or ctx is done.
// Fire-and-forget requests return (nil, nil) once written.
func (m *Messenger) Send(ctx context.Context, req protocol.Message) (protocol.Message, error) {
	payload, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}

	msgType := string(req.Type())
	observability.Channel().OnSend(ctx, msgType)
	if !req.ExpectsResponse() {
		return nil, m.notify(ctx, payload)
	}

	start := time.Now()
	resp, err := m.call(ctx, payload)
	observability.Channel().OnResponse(ctx, msgType, time.Since(start), err)
	return resp, err
}

func (m *Messenger) notify(ctx context.Context, payload []byte) error {
	if m.isClosed() {
		return ErrClosed
	}
	return m.write(ctx, envelope{Request: payload})
}

func (m *Messenger) call(ctx context.Context, payload []byte) (protocol.Message, error) {
	id := m.nextID.Add(1)
	ch := make(chan result, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.pending[id] = ch
	m.mu.Unlock()

	if err := m.write(ctx, envelope{ID: &id, Request: payload}); err != nil {
		m.forget(id)
		return nil, err
	}

	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		m.forget(id)
		return nil, ctx.Err()
	}
}

// Close tears down the port. Pending and later sends fail with [ErrClosed].
func (m *Messenger) Close() error {
	m.shutdown()
	return nil
}

// Done is closed once the messenger has shut down.
func (m *Messenger) Done() <-chan struct{} {
	return m.done
}

// Pending returns the number of requests awaiting a response.
func (m *Messenger) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// =============================================================================
// Inbound
// =============================================================================

func (m *Messenger) dispatch(ctx context.Context, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	if len(env.Request) > 0 {
		if env.ID == nil {
			m.enqueue(env.Request)
			return
		}
		m.handlers.Add(1)
		go func() {
			defer m.handlers.Done()
			m.serve(ctx, env.ID, env.Request)
		}()
		return
	}

	if env.ID == nil {
		m.logger.Debug("dropping response without id")
		return
	}
	m.resolve(*env.ID, env)
}

// enqueue appends a fire-and-forget request to the inbox without blocking
// the read loop.
func (m *Messenger) enqueue(raw json.RawMessage) {
	m.inboxMu.Lock()
	m.inbox = append(m.inbox, raw)
	m.inboxMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// drain serves queued fire-and-forget requests in FIFO order until ctx is
// done. Requests still queued at that point are dropped.
func (m *Messenger) drain(ctx context.Context) {
	for {
		m.inboxMu.Lock()
		if len(m.inbox) == 0 {
			m.inboxMu.Unlock()
			select {
			case <-m.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		raw := m.inbox[0]
		m.inbox[0] = nil
		m.inbox = m.inbox[1:]
		m.inboxMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		m.serve(ctx, nil, raw)
	}
}

func (m *Messenger) serve(ctx context.Context, id *uint64, raw json.RawMessage) {
	req, err := protocol.Decode(raw)
	if err == nil {
		observability.Channel().OnReceive(ctx, string(req.Type()))
	}

	var resp protocol.Message
	switch {
	case err != nil:
	case m.handler == nil:
		err = errors.New(errors.ErrCodeUnknownMessage, "no handler for %s", req.Type())
	default:
		resp, err = m.handler(ctx, req)
	}

	if id == nil {
		if err != nil {
			m.logger.Warn("request failed", "error", err)
		}
		return
	}

	reply := envelope{ID: id, Response: json.RawMessage("null")}
	if err != nil {
		reply.Error = errors.UserMessage(err)
	} else if resp != nil {
		payload, encErr := protocol.Encode(resp)
		if encErr != nil {
			reply.Error = errors.UserMessage(encErr)
		} else {
			reply.Response = payload
		}
	}

	if err := m.write(ctx, reply); err != nil && !stderrors.Is(err, ErrClosed) {
		m.logger.Debug("write response", "id", *id, "error", err)
	}
}

// resolve hands a response to its waiting caller. Responses nobody waits for
// (expired or unknown ids) are dropped.
func (m *Messenger) resolve(id uint64, env envelope) {
	m.mu.Lock()
	ch, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("dropping response for unknown id", "id", id)
		return
	}

	var r result
	switch {
	case env.Error != "":
		r.err = &RemoteError{Message: env.Error}
	case len(env.Response) == 0 || string(env.Response) == "null":
	default:
		r.msg, r.err = protocol.Decode(env.Response)
	}
	ch <- r
}

// =============================================================================
// Lifecycle
// =============================================================================

func (m *Messenger) write(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode frame")
	}
	if err := m.port.Write(ctx, data); err != nil {
		if m.isClosed() {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (m *Messenger) forget(id uint64) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func (m *Messenger) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// shutdown fails every pending caller exactly once and closes the port.
func (m *Messenger) shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.pending
	m.pending = make(map[uint64]chan result)
	close(m.done)
	m.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: ErrClosed}
	}
	_ = m.port.Close()
}

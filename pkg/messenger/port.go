package messenger

import (
	"context"
	"sync"
)

// Port is a duplex, message-oriented transport. Each Write delivers one whole
// message to the peer's Read. Implementations must allow Write and Read to be
// called from different goroutines, and Close must unblock a pending Read.
type Port interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// pipeBuffer is the number of messages each direction of a [Pipe] holds
// before Write blocks.
const pipeBuffer = 64

// pipePort is one end of an in-memory [Pipe].
type pipePort struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-memory ports. Messages written to one are read
// from the other. Closing either end closes both; pending and later calls
// on either end return [ErrClosed].
func Pipe() (Port, Port) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	once := &sync.Once{}
	return &pipePort{in: ba, out: ab, done: done, once: once},
		&pipePort{in: ab, out: ba, done: done, once: once}
}

func (p *pipePort) Write(ctx context.Context, data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	msg := make([]byte, len(data))
	copy(msg, data)
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipePort) Read(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipePort) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

var _ Port = (*pipePort)(nil)

package worker

import (
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes a single accepted connection until the client is done.
type Handler interface {
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn net.Conn)

func (f HandlerFunc) Handle(ctx context.Context, conn net.Conn) { f(ctx, conn) }

// Pool runs a fixed number of connection workers. Connections are handed
// over on an unbuffered channel, so Dispatch blocks until a worker is free.
// That keeps the number of concurrently served clients bounded by the pool
// size without any extra queueing.
type Pool struct {
	size    int
	conns   chan net.Conn
	handler Handler
	logger  *zerolog.Logger
	wg      sync.WaitGroup
}

// NewPool builds a pool of size workers delegating to handler.
func NewPool(size int, handler Handler, logger *zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:    size,
		conns:   make(chan net.Conn),
		handler: handler,
		logger:  logger,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug().Int("worker", id).Msg("worker started")
	defer p.logger.Debug().Int("worker", id).Msg("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-p.conns:
			p.handler.Handle(ctx, conn)
		}
	}
}

// Dispatch hands conn to the next free worker, blocking until one takes it
// or ctx is cancelled. On cancellation the connection is closed and the
// context error returned.
func (p *Pool) Dispatch(ctx context.Context, conn net.Conn) error {
	select {
	case p.conns <- conn:
		return nil
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

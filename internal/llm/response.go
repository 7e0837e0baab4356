package llm

import (
	"context"
	"sync"
)

// Result is one item on a response stream: a message fragment or the
// error that terminated the stream.
type Result struct {
	Message Message
	Err     error
}

// pipe is an unbounded single-producer/single-consumer FIFO. Sends never
// block, so a slow consumer cannot stall the transport's read loop.
type pipe struct {
	mu         sync.Mutex
	queue      []Result
	notify     chan struct{}
	done       chan struct{}
	sendClosed bool
	recvClosed bool
	cancel     context.CancelFunc
}

// Response is the consumer side of a provider's response stream.
type Response struct {
	p *pipe
}

// Sender is the producer side of a response stream. It is owned by the
// provider's background loop.
type Sender struct {
	p *pipe
}

// NewResponse creates a connected Response/Sender pair.
func NewResponse() (*Response, *Sender) {
	p := &pipe{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	return &Response{p: p}, &Sender{p: p}
}

// NewResponseContext is NewResponse plus a context derived from parent
// that is cancelled once the consumer closes the Response or the
// producer closes the Sender. Providers issue their network request
// with it so that dropping the Response stops network reads.
func NewResponseContext(parent context.Context) (context.Context, *Response, *Sender) {
	ctx, cancel := context.WithCancel(parent)
	resp, sender := NewResponse()
	resp.p.cancel = cancel
	return ctx, resp, sender
}

func (p *pipe) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next fragment is available. The end-of-stream
// sentinel is returned as a Message with empty content. An error pushed by
// the producer is returned as the error. Once the producer has closed and
// the queue is drained Next returns ErrStreamClosed.
func (r *Response) Next(ctx context.Context) (Message, error) {
	p := r.p
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			res := p.queue[0]
			p.queue[0] = Result{}
			p.queue = p.queue[1:]
			p.mu.Unlock()
			if res.Err != nil {
				return Message{}, res.Err
			}
			return res.Message, nil
		}
		closed := p.sendClosed || p.recvClosed
		p.mu.Unlock()
		if closed {
			return Message{}, ErrStreamClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-p.notify:
		}
	}
}

// Close drops the consumer. Pending items are discarded and any later
// Send fails with ErrConsumerClosed. Safe to call more than once.
func (r *Response) Close() {
	p := r.p
	p.mu.Lock()
	if p.recvClosed {
		p.mu.Unlock()
		return
	}
	p.recvClosed = true
	p.queue = nil
	cancel := p.cancel
	close(p.done)
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wake()
}

// Send queues res for the consumer. It never blocks. After the consumer
// closed it returns ErrConsumerClosed and the item is dropped.
func (s *Sender) Send(res Result) error {
	p := s.p
	p.mu.Lock()
	if p.recvClosed {
		p.mu.Unlock()
		return ErrConsumerClosed
	}
	if p.sendClosed {
		p.mu.Unlock()
		return ErrStreamClosed
	}
	p.queue = append(p.queue, res)
	p.mu.Unlock()
	p.wake()
	return nil
}

// SendMessage is shorthand for Send(Result{Message: msg}).
func (s *Sender) SendMessage(msg Message) error {
	return s.Send(Result{Message: msg})
}

// SendError is shorthand for Send(Result{Err: err}).
func (s *Sender) SendError(err error) error {
	return s.Send(Result{Err: err})
}

// Close marks the producer finished. Items already queued are still
// delivered. Safe to call more than once.
func (s *Sender) Close() {
	p := s.p
	p.mu.Lock()
	if p.sendClosed {
		p.mu.Unlock()
		return
	}
	p.sendClosed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wake()
}

// Done is closed when the consumer closes the Response.
func (s *Sender) Done() <-chan struct{} {
	return s.p.done
}

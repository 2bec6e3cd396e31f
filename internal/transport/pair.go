package transport

import (
	"context"
	"sync"
)

const pairBuffer = 64

// Pair creates two connected in-memory endpoints. Payloads written to one
// endpoint arrive at the other in send order. Used by tests and by embedders
// that run host and sandbox in the same process.
func Pair() (Transport, Transport) {
	ab := make(chan []byte, pairBuffer)
	ba := make(chan []byte, pairBuffer)
	done := make(chan struct{})

	a := &pairEnd{out: ab, in: ba, done: done}
	b := &pairEnd{out: ba, in: ab, done: done}
	return a, b
}

type pairEnd struct {
	out  chan []byte
	in   chan []byte
	done chan struct{}

	bindOnce  sync.Once
	closeOnce sync.Once
}

func (p *pairEnd) Send(ctx context.Context, payload []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.out <- payload:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pairEnd) Bind(h Handler) {
	p.bindOnce.Do(func() {
		go func() {
			for {
				select {
				case payload := <-p.in:
					h(payload)
				case <-p.done:
					// Drain what was sent before closure.
					for {
						select {
						case payload := <-p.in:
							h(payload)
						default:
							return
						}
					}
				}
			}
		}()
	})
}

func (p *pairEnd) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}

func (p *pairEnd) Done() <-chan struct{} {
	return p.done
}

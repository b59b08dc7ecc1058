package detector

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Get after the pool has been closed.
var ErrPoolClosed = errors.New("detector pool closed")

// Pool lends detectors to concurrent callers so that no two callers ever use
// the same instance at once. Detectors are created lazily, up to size.
type Pool struct {
	factory Factory
	idle    chan Detector
	slots   chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewPool creates a Pool holding at most size detectors.
func NewPool(factory Factory, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		factory: factory,
		idle:    make(chan Detector, size),
		slots:   make(chan struct{}, size),
		done:    make(chan struct{}),
	}
}

// Get borrows a detector, creating one if the pool has spare capacity.
// It blocks until a detector is free, the pool is closed or ctx is done.
func (p *Pool) Get(ctx context.Context) (Detector, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	select {
	case d := <-p.idle:
		return d, nil
	default:
	}

	select {
	case d := <-p.idle:
		return d, nil
	case p.slots <- struct{}{}:
		d, err := p.factory()
		if err != nil {
			<-p.slots
			return nil, err
		}
		if p.isClosed() {
			d.Close()
			<-p.slots
			return nil, ErrPoolClosed
		}
		return d, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a borrowed detector to the pool. A detector returned after
// Close is closed here.
func (p *Pool) Put(d Detector) {
	if d == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		d.Close()
		return
	}
	// idle has room for every detector the pool can create.
	p.idle <- d
}

// Close closes the idle detectors. Detectors still borrowed are closed
// when they are returned with Put.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var errs []error
	for {
		select {
		case d := <-p.idle:
			if err := d.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

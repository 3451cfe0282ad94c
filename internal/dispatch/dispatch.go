// Package dispatch runs fire-and-forget work on a fixed set of goroutines.
package dispatch

import "sync"

// Pool is a bounded queue drained by a fixed number of workers.
// Submit never blocks: when the queue is full the task is dropped.
type Pool struct {
	q  chan func()
	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(workers, qlen int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	p := &Pool{q: make(chan func(), qlen)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for f := range p.q {
				f()
			}
		}()
	}
	return p
}

// Submit queues f. It reports false when f was dropped.
func (p *Pool) Submit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.q <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting work and waits for queued tasks to finish.
// Safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.q)
	p.mu.Unlock()
	p.wg.Wait()
}

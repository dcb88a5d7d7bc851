package host

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/aixgo-dev/axon/agent"
)

// task is one unit of work: a method call against an actor, bound to the
// pendingCall that observers are waiting on.
type task struct {
	pending *pendingCall
	method  string
	args    []agent.Value
}

// workerPool runs units of work on a fixed number of workers. Work is
// scheduled per actor: a runnable actor is handed to one worker, which
// drains that actor's backlog in FIFO order before picking up another.
// That gives per-actor serialization while unrelated actors run in
// parallel, capped at the pool size.
//
// The total number of queued-but-unfinished units is bounded; when the
// bound is hit, submit fails fast instead of growing memory.
type workerPool struct {
	runnable chan *actorRecord
	exec     func(*actorRecord, *task)
	bound    int64
	queued   atomic.Int64

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newWorkerPool(size, queueBound int, exec func(*actorRecord, *task)) *workerPool {
	p := &workerPool{
		// One slot per admissible unit: a wake-up send can never block.
		runnable: make(chan *actorRecord, queueBound),
		exec:     exec,
		bound:    int64(queueBound),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	return p
}

// submit queues one unit of work for the actor. Fails with ErrOverloaded
// when the queue bound is reached and ErrHostStopped after close.
func (p *workerPool) submit(rec *actorRecord, t *task) error {
	if p.queued.Add(1) > p.bound {
		p.queued.Add(-1)
		return fmt.Errorf("%w: worker queue full (%d units)", agent.ErrOverloaded, p.bound)
	}

	rec.mu.Lock()
	if rec.destroyed {
		rec.mu.Unlock()
		p.queued.Add(-1)
		return fmt.Errorf("%w: actor %s", agent.ErrNotFound, rec.id)
	}
	rec.backlog = append(rec.backlog, t)
	wake := !rec.running
	if wake {
		rec.running = true
	}
	rec.mu.Unlock()

	if !wake {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		// Roll back this unit only. Another submit may have appended its
		// own task behind ours between the locks; that task was accepted
		// and is not ours to drop.
		rec.mu.Lock()
		for i, queued := range rec.backlog {
			if queued == t {
				rec.backlog = append(rec.backlog[:i], rec.backlog[i+1:]...)
				break
			}
		}
		if len(rec.backlog) == 0 {
			rec.running = false
		}
		rec.mu.Unlock()
		p.queued.Add(-1)
		return agent.ErrHostStopped
	}
	p.runnable <- rec
	return nil
}

// queuedUnits reports how many units are admitted but not yet finished.
func (p *workerPool) queuedUnits() int {
	return int(p.queued.Load())
}

// close stops the workers after they finish their current actors.
func (p *workerPool) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.runnable)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *workerPool) runWorker() {
	defer p.wg.Done()
	defer func() {
		// A worker must never take the pool down with it. exec already
		// captures actor panics; this guards the pool's own machinery.
		if r := recover(); r != nil {
			log.Printf("[Host] worker crashed: %v; restarting", r)
			p.wg.Add(1)
			go p.runWorker()
		}
	}()

	for rec := range p.runnable {
		p.drain(rec)
	}
}

func (p *workerPool) drain(rec *actorRecord) {
	for {
		rec.mu.Lock()
		if len(rec.backlog) == 0 {
			rec.running = false
			rec.mu.Unlock()
			return
		}
		t := rec.backlog[0]
		rec.backlog = rec.backlog[1:]
		rec.mu.Unlock()

		p.exec(rec, t)
		p.queued.Add(-1)
	}
}

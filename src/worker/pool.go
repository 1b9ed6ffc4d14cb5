package worker

import (
	"context"
	"log"
	"sync"

	"gemini-assistant/src/assistant"
	"gemini-assistant/src/screenshot"
)

// Processor runs one capture. *assistant.Assistant satisfies it.
type Processor interface {
	Process(ctx context.Context, region screenshot.Region) assistant.Exchange
}

// ResultCallback is invoked on completion from a worker goroutine. The event
// loop passes a closure that posts back into the loop.
type ResultCallback func(x assistant.Exchange)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	proc Processor
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

type job struct {
	ctx    context.Context
	region screenshot.Region
	cb     ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0. Queue is 1 slot.
func New(proc Processor, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{proc: proc, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: processing region %dx%d at %d,%d", j.region.Width, j.region.Height, j.region.X, j.region.Y)
				x := p.proc.Process(j.ctx, j.region)
				log.Printf("Worker: done, answer length=%d", len(x.Answer))
				j.cb(x)
			}
		}()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, region screenshot.Region, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, region: region, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work. It is safe to call twice.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

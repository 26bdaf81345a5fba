package face

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"faceattend/internal/domain"
	"faceattend/internal/metrics"
)

// Pool runs embedding inference on a fixed set of workers behind a bounded
// queue. Callers block up to the pool timeout; a full queue or a slow
// model produces a timeout error instead of an unbounded wait.
type Pool struct {
	embedder Embedder
	jobs     chan job
	timeout  time.Duration

	closeOnce sync.Once
	wg        sync.WaitGroup
}

type job struct {
	ctx context.Context
	img image.Image
	out chan result
}

type result struct {
	vec []float32
	err error
}

// NewPool starts workers goroutines over a queue of queueSize slots.
func NewPool(embedder Embedder, workers, queueSize int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Pool{
		embedder: embedder,
		jobs:     make(chan job, queueSize),
		timeout:  timeout,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		if j.ctx.Err() != nil {
			continue
		}
		start := time.Now()
		vec, err := p.embedder.Describe(j.ctx, j.img)
		metrics.EmbedDuration.Observe(time.Since(start).Seconds())
		j.out <- result{vec: vec, err: err}
	}
}

// Describe queues a frame for embedding and waits for the result.
func (p *Pool) Describe(ctx context.Context, img image.Image) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	j := job{ctx: ctx, img: img, out: make(chan result, 1)}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, domain.Wrap(domain.KindTimeout, "embedding queue is full", ctx.Err())
	}

	select {
	case res := <-j.out:
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, domain.Wrap(domain.KindTimeout, "embedding timed out", res.err)
		}
		return res.vec, res.err
	case <-ctx.Done():
		return nil, domain.Wrap(domain.KindTimeout, "embedding timed out", ctx.Err())
	}
}

// Close stops the workers after draining queued jobs. Describe must not be
// called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

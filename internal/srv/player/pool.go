package player

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ResolvePool runs resolver calls on a fixed set of worker goroutines, throttled by
// a token bucket, so lookups never run on the scheduler.
type ResolvePool struct {
	resolver Resolver
	limiter  *rate.Limiter
	workers  int

	jobChannel chan resolveJob
	closeOnce  sync.Once
	closed     chan struct{}
	wg         sync.WaitGroup
}

type resolveJob struct {
	ctx    context.Context
	query  string
	result chan resolveOutcome
}

type resolveOutcome struct {
	track Track
	err   error
}

// NewResolvePool builds a pool of workers goroutines. A nil limiter means no throttling.
func NewResolvePool(resolver Resolver, workers int, limiter *rate.Limiter) *ResolvePool {
	if workers < 1 {
		workers = 1
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &ResolvePool{
		resolver:   resolver,
		limiter:    limiter,
		workers:    workers,
		jobChannel: make(chan resolveJob),
		closed:     make(chan struct{}),
	}
}

func (p *ResolvePool) Start() {
	logrus.Debugf("Start %d resolver workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Close stops the workers once their current lookup returns.
func (p *ResolvePool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}

func (p *ResolvePool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobChannel:
			track, err := p.resolver.Resolve(job.ctx, job.query)
			job.result <- resolveOutcome{track: track, err: err}
		case <-p.closed:
			return
		}
	}
}

// Resolve waits for a rate token and a free worker, then for the lookup itself.
func (p *ResolvePool) Resolve(ctx context.Context, query string) (Track, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Track{}, err
	}
	job := resolveJob{ctx: ctx, query: query, result: make(chan resolveOutcome, 1)}
	select {
	case p.jobChannel <- job:
	case <-ctx.Done():
		return Track{}, ctx.Err()
	case <-p.closed:
		return Track{}, ErrPoolClosed
	}
	select {
	case outcome := <-job.result:
		return outcome.track, outcome.err
	case <-ctx.Done():
		return Track{}, ctx.Err()
	}
}

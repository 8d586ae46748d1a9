// Package dispatch bounds outbound calls to the speech-synthesis vendor.
// A global sliding window is the hard ceiling; per-tier windows gate
// admission as a fairness mechanism inside it. Queued jobs are served by
// priority with wait-time decay, and jobs sharing a cache key coalesce into
// one upstream call.
package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adaptivefit/coachpipe/internal/observability"
	"github.com/adaptivefit/coachpipe/internal/speech"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

var (
	// ErrRateLimited means the tier quota is spent or the queue is full.
	// Callers fall back to text-only delivery.
	ErrRateLimited = errors.New("synthesis rate limited")
	ErrStopped     = errors.New("dispatcher stopped")
)

// Job is one synthesis request. Jobs with equal non-empty Keys may share a
// single execution.
type Job struct {
	Key      string
	Tier     trigger.Tier
	Priority int
	Fn       func(ctx context.Context) (speech.Audio, error)
}

type Config struct {
	Workers    int
	QueueDepth int

	GlobalLimit  int
	GlobalWindow time.Duration

	TierLimits map[trigger.Tier]int
	TierWindow time.Duration

	DecayInterval time.Duration
	// JobTimeout bounds one upstream execution, independent of any
	// waiter's request budget.
	JobTimeout time.Duration
}

type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobQueue
	byKey   map[string]*queuedJob
	global  *window
	tiers   map[trigger.Tier]*window
	seq     uint64
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	queueDepth int
	jobTimeout time.Duration
	metrics    *observability.Metrics
}

func New(cfg Config, metrics *observability.Metrics) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 64
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Second
	}
	tierWindow := cfg.TierWindow
	if tierWindow <= 0 {
		tierWindow = time.Hour
	}

	d := &Dispatcher{
		queue:      jobQueue{decay: cfg.DecayInterval},
		byKey:      make(map[string]*queuedJob),
		global:     newWindow(cfg.GlobalLimit, cfg.GlobalWindow),
		tiers:      make(map[trigger.Tier]*window, len(cfg.TierLimits)),
		stopCh:     make(chan struct{}),
		queueDepth: depth,
		jobTimeout: jobTimeout,
		metrics:    metrics,
	}
	d.cond = sync.NewCond(&d.mu)
	for tier, limit := range cfg.TierLimits {
		d.tiers[tier] = newWindow(limit, tierWindow)
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Dispatch queues a job and waits for its result. When ctx expires first,
// the wait is abandoned but the job keeps running so other waiters and
// future cache lookups still benefit.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (speech.Audio, error) {
	now := time.Now()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return speech.Audio{}, ErrStopped
	}
	if job.Key != "" {
		if qj, ok := d.byKey[job.Key]; ok {
			d.mu.Unlock()
			d.count(job.Tier, "coalesced")
			return d.await(ctx, qj)
		}
	}

	if d.queue.Len() >= d.queueDepth {
		d.mu.Unlock()
		d.count(job.Tier, "queue_full")
		return speech.Audio{}, ErrRateLimited
	}

	// Tier quota is charged only for admitted jobs. Coalesced waiters ride
	// an execution someone already paid for, and rejections keep the credit.
	if w, ok := d.tiers[job.Tier]; ok && !w.Allow(now) {
		d.mu.Unlock()
		d.count(job.Tier, "tier_limited")
		return speech.Audio{}, ErrRateLimited
	}

	d.seq++
	qj := &queuedJob{
		job:        job,
		seq:        d.seq,
		enqueuedAt: now,
		done:       make(chan struct{}),
	}
	heap.Push(&d.queue, qj)
	if job.Key != "" {
		d.byKey[job.Key] = qj
	}
	d.metrics.DispatchDepth.Set(float64(d.queue.Len()))
	d.cond.Signal()
	d.mu.Unlock()

	return d.await(ctx, qj)
}

func (d *Dispatcher) await(ctx context.Context, qj *queuedJob) (speech.Audio, error) {
	select {
	case <-qj.done:
		return qj.res.audio, qj.res.err
	case <-ctx.Done():
		return speech.Audio{}, ctx.Err()
	}
}

// Stop fails all queued jobs, waits for in-flight executions, and rejects
// further dispatches.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	drained := make([]*queuedJob, 0, d.queue.Len())
	for d.queue.Len() > 0 {
		drained = append(drained, heap.Pop(&d.queue).(*queuedJob))
	}
	for _, qj := range drained {
		if qj.job.Key != "" {
			delete(d.byKey, qj.job.Key)
		}
		qj.res = result{err: ErrStopped}
	}
	d.metrics.DispatchDepth.Set(0)
	d.cond.Broadcast()
	d.mu.Unlock()

	for _, qj := range drained {
		close(qj.done)
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for !d.stopped && d.queue.Len() == 0 {
			d.cond.Wait()
		}
		if d.stopped {
			d.mu.Unlock()
			return
		}

		now := time.Now()
		if wait := d.global.NextCredit(now); wait > 0 {
			// Budget exhausted: hold the job in the queue and retry when
			// the oldest credit expires.
			d.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-d.stopCh:
				return
			}
			continue
		}

		// Re-rank so wait-time decay is reflected before picking.
		d.queue.now = now
		heap.Init(&d.queue)
		qj := heap.Pop(&d.queue).(*queuedJob)
		d.global.Allow(now)
		d.metrics.DispatchDepth.Set(float64(d.queue.Len()))
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
		runStart := time.Now()
		audio, err := qj.job.Fn(ctx)
		cancel()
		if err == nil {
			d.metrics.ObserveSynthesisLatency(time.Since(runStart))
		}

		d.mu.Lock()
		qj.res = result{audio: audio, err: err}
		if qj.job.Key != "" {
			delete(d.byKey, qj.job.Key)
		}
		d.mu.Unlock()
		close(qj.done)

		if err != nil {
			d.count(qj.job.Tier, "error")
		} else {
			d.count(qj.job.Tier, "ok")
		}
	}
}

func (d *Dispatcher) count(tier trigger.Tier, outcome string) {
	d.metrics.DispatchOutcomes.WithLabelValues(string(tier), outcome).Inc()
}

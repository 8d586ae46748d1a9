package dispatch

import (
	"time"

	"github.com/adaptivefit/coachpipe/internal/speech"
)

// maxEffectiveRank caps wait promotion. A job at the cap still decays no
// further, but nothing fresh can outrank it either, so two capped jobs
// resolve by trigger weight and then arrival order.
const maxEffectiveRank = 10

type result struct {
	audio speech.Audio
	err   error
}

type queuedJob struct {
	job        Job
	seq        uint64
	enqueuedAt time.Time
	done       chan struct{}
	res        result
	index      int
}

// jobQueue orders by subscription tier first: a job's rank is its tier
// weight plus one level per decay interval waited, so sustained high-tier
// load promotes old low-tier jobs across tiers instead of starving them.
// Ties resolve by trigger weight, then arrival order. The dispatcher
// re-inits the heap against a fresh timestamp before each pop so wait
// promotion takes effect.
type jobQueue struct {
	items []*queuedJob
	decay time.Duration
	now   time.Time
}

func (q *jobQueue) rank(j *queuedJob) int {
	r := j.job.Tier.Weight()
	if q.decay > 0 {
		r += int(q.now.Sub(j.enqueuedAt) / q.decay)
	}
	if r > maxEffectiveRank {
		r = maxEffectiveRank
	}
	return r
}

func (q *jobQueue) Len() int { return len(q.items) }

func (q *jobQueue) Less(i, j int) bool {
	ri, rj := q.rank(q.items[i]), q.rank(q.items[j])
	if ri != rj {
		return ri > rj
	}
	if q.items[i].job.Priority != q.items[j].job.Priority {
		return q.items[i].job.Priority > q.items[j].job.Priority
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *jobQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*queuedJob)
	j.index = len(q.items)
	q.items = append(q.items, j)
}

func (q *jobQueue) Pop() any {
	old := q.items
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	q.items = old[:n-1]
	return j
}

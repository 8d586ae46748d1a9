package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adaptivefit/coachpipe/internal/observability"
	"github.com/adaptivefit/coachpipe/internal/speech"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

func testMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(fmt.Sprintf("test_dispatch_%d", time.Now().UnixNano()))
}

func testConfig() Config {
	return Config{
		Workers:       1,
		QueueDepth:    16,
		GlobalLimit:   1000,
		GlobalWindow:  time.Minute,
		TierLimits:    map[trigger.Tier]int{trigger.TierFree: 100, trigger.TierPro: 100, trigger.TierElite: 100},
		TierWindow:    time.Hour,
		DecayInterval: time.Second,
		JobTimeout:    time.Second,
	}
}

func okJob(key string, tier trigger.Tier, priority int, fn func()) Job {
	return Job{
		Key:      key,
		Tier:     tier,
		Priority: priority,
		Fn: func(context.Context) (speech.Audio, error) {
			if fn != nil {
				fn()
			}
			return speech.Audio{Bytes: []byte(key)}, nil
		},
	}
}

func TestDispatchRunsJob(t *testing.T) {
	d := New(testConfig(), testMetrics(t))
	defer d.Stop()

	audio, err := d.Dispatch(context.Background(), okJob("k1", trigger.TierFree, 5, nil))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if string(audio.Bytes) != "k1" {
		t.Fatalf("audio = %q", audio.Bytes)
	}
}

func TestDispatchPriorityOrderUnderSaturation(t *testing.T) {
	d := New(testConfig(), testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	var order []string
	var orderMu sync.Mutex
	record := func(name string) func() {
		return func() {
			orderMu.Lock()
			order = append(order, name)
			orderMu.Unlock()
		}
	}

	// Occupy the single worker so subsequent jobs queue up.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("blocker", trigger.TierFree, 9, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("low", trigger.TierFree, 2, record("low")))
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("high", trigger.TierElite, 8, record("high")))
	}()
	time.Sleep(20 * time.Millisecond)

	close(block)
	wg.Wait()

	orderMu.Lock()
	defer orderMu.Unlock()
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("execution order = %v, want [high low]", order)
	}
}

func TestDispatchTierOutranksTriggerWeight(t *testing.T) {
	d := New(testConfig(), testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	var order []string
	var orderMu sync.Mutex
	record := func(name string) func() {
		return func() {
			orderMu.Lock()
			order = append(order, name)
			orderMu.Unlock()
		}
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("blocker", trigger.TierFree, 9, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	// A free set-start carries a heavier trigger weight than an elite
	// workout-end, but the elite subscriber is served first.
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("free-set-start", trigger.TierFree, 8, record("free-set-start")))
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("elite-workout-end", trigger.TierElite, 6, record("elite-workout-end")))
	}()
	time.Sleep(20 * time.Millisecond)

	close(block)
	wg.Wait()

	orderMu.Lock()
	defer orderMu.Unlock()
	if len(order) != 2 || order[0] != "elite-workout-end" || order[1] != "free-set-start" {
		t.Fatalf("execution order = %v, want [elite-workout-end free-set-start]", order)
	}
}

func TestDispatchQueueOverflowFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.QueueDepth = 1
	d := New(cfg, testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	defer close(block)
	go func() {
		_, _ = d.Dispatch(context.Background(), okJob("busy", trigger.TierFree, 5, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	// Queue slot 1 fills, the next distinct key must be rejected.
	go func() {
		_, _ = d.Dispatch(context.Background(), okJob("queued", trigger.TierFree, 5, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := d.Dispatch(context.Background(), okJob("overflow", trigger.TierFree, 5, nil))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Dispatch() error = %v, want ErrRateLimited", err)
	}
}

func TestDispatchTierQuota(t *testing.T) {
	cfg := testConfig()
	cfg.TierLimits = map[trigger.Tier]int{trigger.TierFree: 1}
	d := New(cfg, testMetrics(t))
	defer d.Stop()

	if _, err := d.Dispatch(context.Background(), okJob("a", trigger.TierFree, 5, nil)); err != nil {
		t.Fatalf("first dispatch error = %v", err)
	}
	_, err := d.Dispatch(context.Background(), okJob("b", trigger.TierFree, 5, nil))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second dispatch error = %v, want ErrRateLimited", err)
	}
}

func TestDispatchQueueFullKeepsTierCredit(t *testing.T) {
	cfg := testConfig()
	cfg.QueueDepth = 1
	cfg.TierLimits = map[trigger.Tier]int{trigger.TierFree: 3}
	d := New(cfg, testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("busy", trigger.TierFree, 5, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("queued", trigger.TierFree, 5, nil))
	}()
	time.Sleep(20 * time.Millisecond)

	// Two credits spent, one left. The overflow rejection must not take it.
	if _, err := d.Dispatch(context.Background(), okJob("overflow", trigger.TierFree, 5, nil)); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("overflow dispatch error = %v, want ErrRateLimited", err)
	}

	close(block)
	wg.Wait()

	if _, err := d.Dispatch(context.Background(), okJob("last", trigger.TierFree, 5, nil)); err != nil {
		t.Fatalf("final dispatch error = %v, want the remaining tier credit honored", err)
	}
}

func TestDispatchCoalescesSharedKeys(t *testing.T) {
	d := New(testConfig(), testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(context.Background(), okJob("busy", trigger.TierFree, 5, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	var calls atomic.Int32
	shared := Job{
		Key:      "shared",
		Tier:     trigger.TierPro,
		Priority: 5,
		Fn: func(context.Context) (speech.Audio, error) {
			calls.Add(1)
			return speech.Audio{Bytes: []byte("shared-audio")}, nil
		},
	}

	var wg sync.WaitGroup
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			audio, err := d.Dispatch(context.Background(), shared)
			if err != nil {
				t.Errorf("Dispatch() error = %v", err)
				return
			}
			results[i] = string(audio.Bytes)
		}(i)
	}
	time.Sleep(30 * time.Millisecond)
	close(block)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("shared job executed %d times, want 1", got)
	}
	for i, r := range results {
		if r != "shared-audio" {
			t.Fatalf("waiter %d result = %q", i, r)
		}
	}
}

func TestDispatchPriorityDecayPreventsStarvation(t *testing.T) {
	cfg := testConfig()
	cfg.DecayInterval = 10 * time.Millisecond
	d := New(cfg, testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	var order []string
	var orderMu sync.Mutex
	record := func(name string) func() {
		return func() {
			orderMu.Lock()
			order = append(order, name)
			orderMu.Unlock()
		}
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("blocker", trigger.TierFree, 9, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	// The free job waits long enough for decay to outrank the fresher,
	// nominally higher-priority job.
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("patient-free", trigger.TierFree, 1, record("patient-free")))
	}()
	time.Sleep(80 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), okJob("fresh-pro", trigger.TierPro, 6, record("fresh-pro")))
	}()
	time.Sleep(20 * time.Millisecond)

	close(block)
	wg.Wait()

	orderMu.Lock()
	defer orderMu.Unlock()
	if len(order) != 2 || order[0] != "patient-free" {
		t.Fatalf("execution order = %v, want patient-free first", order)
	}
}

func TestDispatchAbandonedWaiterDoesNotCancelJob(t *testing.T) {
	d := New(testConfig(), testMetrics(t))
	defer d.Stop()

	block := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(context.Background(), okJob("busy", trigger.TierFree, 5, func() { <-block }))
	}()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	job := okJob("slow", trigger.TierPro, 5, func() { close(done) })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, job)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dispatch() error = %v, want deadline exceeded", err)
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("job should still execute after its waiter gave up")
	}
}

func TestDispatchAfterStop(t *testing.T) {
	d := New(testConfig(), testMetrics(t))
	d.Stop()
	_, err := d.Dispatch(context.Background(), okJob("late", trigger.TierFree, 5, nil))
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Dispatch() error = %v, want ErrStopped", err)
	}
}

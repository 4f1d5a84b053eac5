package worker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFixedPoolRunsTasks(t *testing.T) {
	p, err := NewPool(Options{InitSize: 2, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Stop()

	var counter atomic.Int64
	futures := make([]*Future, 0, 10)
	for i := 0; i < 10; i++ {
		f, err := p.Submit(func() error {
			counter.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		futures = append(futures, f)
	}

	for i, f := range futures {
		if err := f.Wait(); err != nil {
			t.Errorf("task %d returned error: %v", i, err)
		}
	}
	if counter.Load() != 10 {
		t.Errorf("ran %d tasks, want 10", counter.Load())
	}
}

func TestFuturePropagatesError(t *testing.T) {
	p, err := NewPool(Options{InitSize: 1, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Stop()

	boom := errors.New("boom")
	f, err := p.Submit(func() error { return boom })
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := f.Wait(); !errors.Is(got, boom) {
		t.Errorf("Wait = %v, want boom", got)
	}
}

func TestSubmitFullQueueReturnsError(t *testing.T) {
	p, err := NewPool(Options{
		InitSize:      1,
		QueueCapacity: 1,
		SubmitWait:    50 * time.Millisecond,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Stop()

	release := make(chan struct{})
	// Occupy the single worker.
	busy, err := p.Submit(func() error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// Fill the single queue slot.
	queued, err := p.Submit(func() error { return nil })
	if err != nil {
		t.Fatalf("Submit to queue failed: %v", err)
	}

	// Queue is now full and the worker is blocked.
	start := time.Now()
	_, err = p.Submit(func() error { return nil })
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit on full queue = %v, want ErrQueueFull", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Error("Submit gave up before the submit wait elapsed")
	}

	close(release)
	if err := busy.Wait(); err != nil {
		t.Errorf("busy task error: %v", err)
	}
	if err := queued.Wait(); err != nil {
		t.Errorf("queued task error: %v", err)
	}
}

func TestElasticPoolGrowsUnderLoad(t *testing.T) {
	p, err := NewPool(Options{
		InitSize:      1,
		MaxSize:       4,
		QueueCapacity: 16,
		IdleBudget:    time.Hour,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Stop()

	release := make(chan struct{})
	var futures []*Future
	for i := 0; i < 8; i++ {
		f, err := p.Submit(func() error {
			<-release
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		futures = append(futures, f)
	}

	time.Sleep(50 * time.Millisecond)
	if size := p.Size(); size <= 1 {
		t.Errorf("pool size = %d under load, expected growth above 1", size)
	}
	if size := p.Size(); size > 4 {
		t.Errorf("pool size = %d, exceeds max 4", size)
	}

	close(release)
	for _, f := range futures {
		if err := f.Wait(); err != nil {
			t.Errorf("task error: %v", err)
		}
	}
}

func TestElasticPoolShrinksWhenIdle(t *testing.T) {
	p, err := NewPool(Options{
		InitSize:      1,
		MaxSize:       4,
		QueueCapacity: 16,
		IdleBudget:    50 * time.Millisecond,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Stop()

	release := make(chan struct{})
	var futures []*Future
	for i := 0; i < 8; i++ {
		f, _ := p.Submit(func() error {
			<-release
			return nil
		})
		if f != nil {
			futures = append(futures, f)
		}
	}
	time.Sleep(30 * time.Millisecond)
	grown := p.Size()
	close(release)
	for _, f := range futures {
		f.Wait()
	}

	// Surplus workers should hit their idle budget and retire.
	deadline := time.Now().Add(2 * time.Second)
	for p.Size() > 1 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if size := p.Size(); size != 1 {
		t.Errorf("pool size = %d after idle period (was %d), want 1", size, grown)
	}
}

func TestStopWaitsForWorkers(t *testing.T) {
	p, err := NewPool(Options{InitSize: 3, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var running atomic.Int64
	for i := 0; i < 3; i++ {
		p.Submit(func() error {
			running.Add(1)
			time.Sleep(50 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	time.Sleep(20 * time.Millisecond)

	p.Stop()
	if n := running.Load(); n != 0 {
		t.Errorf("%d tasks still running after Stop returned", n)
	}
	if size := p.Size(); size != 0 {
		t.Errorf("pool size = %d after Stop, want 0", size)
	}
}

func TestStopFailsQueuedTasks(t *testing.T) {
	p, err := NewPool(Options{
		InitSize:      1,
		QueueCapacity: 4,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	release := make(chan struct{})
	p.Submit(func() error {
		<-release
		return nil
	})
	time.Sleep(20 * time.Millisecond)

	queued := make([]*Future, 0, 3)
	for i := 0; i < 3; i++ {
		f, err := p.Submit(func() error { return nil })
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		queued = append(queued, f)
	}

	close(release)
	p.Stop()

	for i, f := range queued {
		select {
		case <-f.Done():
		case <-time.After(time.Second):
			t.Fatalf("queued task %d future never resolved", i)
		}
		// Ran before shutdown or failed with ErrStopped; both resolve.
		if err := f.Wait(); err != nil && !errors.Is(err, ErrStopped) {
			t.Errorf("queued task %d error = %v", i, err)
		}
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p, err := NewPool(Options{InitSize: 1, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	p.Stop()

	if _, err := p.Submit(func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after Stop = %v, want ErrStopped", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	p, err := NewPool(Options{InitSize: 2, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	p.Stop()
	p.Stop()
}

func TestConcurrentSubmitAndStop(t *testing.T) {
	p, err := NewPool(Options{
		InitSize:      2,
		QueueCapacity: 8,
		SubmitWait:    10 * time.Millisecond,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f, err := p.Submit(func() error { return nil })
				if err != nil {
					return
				}
				f.Wait()
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	p.Stop()
	wg.Wait()
}

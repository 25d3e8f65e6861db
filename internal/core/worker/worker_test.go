package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQueue_FIFOAndSerial(t *testing.T) {
	q := New(Options{Size: 4})

	var (
		mu       sync.Mutex
		order    []int
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)
	for i := range 20 {
		err := q.Submit("t", func(context.Context) error {
			n := inFlight.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			inFlight.Add(-1)
			return nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if maxSeen.Load() != 1 {
		t.Fatalf("expected at most one task in flight, saw %d", maxSeen.Load())
	}
	if len(order) != 20 {
		t.Fatalf("expected 20 tasks run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks out of order: %v", order)
		}
	}
}

func TestQueue_ErrorsAndPanicsDoNotStopLoop(t *testing.T) {
	errBefore := testutil.ToFloat64(tasksTotal.WithLabelValues("error"))
	panicBefore := testutil.ToFloat64(tasksTotal.WithLabelValues("panic"))

	q := New(Options{})
	defer q.Close()

	_ = q.Submit("fail", func(context.Context) error { return errors.New("boom") })
	_ = q.Submit("panic", func(context.Context) error { panic("oops") })

	var ran atomic.Bool
	_ = q.Submit("after", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !ran.Load() {
		t.Fatal("task after failures did not run")
	}
	if got := testutil.ToFloat64(tasksTotal.WithLabelValues("error")) - errBefore; got != 1 {
		t.Fatalf("expected 1 error counted, got %v", got)
	}
	if got := testutil.ToFloat64(tasksTotal.WithLabelValues("panic")) - panicBefore; got != 1 {
		t.Fatalf("expected 1 panic counted, got %v", got)
	}
}

func TestQueue_SubmitAfterClose(t *testing.T) {
	q := New(Options{})
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := q.Submit("late", func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_CloseRunsQueuedTasks(t *testing.T) {
	q := New(Options{})
	var n atomic.Int32
	for range 5 {
		_ = q.Submit("count", func(context.Context) error {
			n.Add(1)
			return nil
		})
	}
	_ = q.Close()
	if n.Load() != 5 {
		t.Fatalf("expected queued tasks to finish before close returns, got %d", n.Load())
	}
}

func TestQueue_CloseReleasesBlockedSubmit(t *testing.T) {
	q := New(Options{Size: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	var ranB, ranC atomic.Bool

	if err := q.Submit("a", func(context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	<-started
	if err := q.Submit("b", func(context.Context) error { ranB.Store(true); return nil }); err != nil {
		t.Fatalf("submit b: %v", err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Submit("c", func(context.Context) error { ranC.Store(true); return nil })
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = q.Close()
		close(closed)
	}()

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("blocked submit err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("submit on a full queue still blocked after Close")
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not return")
	}
	if !ranB.Load() || ranC.Load() {
		t.Fatalf("ranB=%v ranC=%v", ranB.Load(), ranC.Load())
	}
}

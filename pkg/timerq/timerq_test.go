package timerq

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRunAtFires(t *testing.T) {
	q := New()
	defer q.Close()

	fired := make(chan struct{})
	q.RunAt(time.Now().Add(20*time.Millisecond), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestRunAtPastFiresImmediately(t *testing.T) {
	q := New()
	defer q.Close()

	fired := make(chan struct{})
	q.RunAt(time.Now().Add(-time.Minute), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("past-due timer never fired")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	q := New()
	defer q.Close()

	var count atomic.Int32
	cancel := q.RunAt(time.Now().Add(50*time.Millisecond), func() { count.Add(1) })
	cancel()
	cancel() // double cancel is safe

	time.Sleep(150 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("canceled timer fired %d times", got)
	}
}

func TestRunEveryRepeats(t *testing.T) {
	q := New()
	defer q.Close()

	var count atomic.Int32
	cancel := q.RunEvery(20*time.Millisecond, func() { count.Add(1) })
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("interval timer fired only %d times", count.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRescheduleEarlierTimerWins(t *testing.T) {
	q := New()
	defer q.Close()

	order := make(chan string, 2)
	q.RunAt(time.Now().Add(100*time.Millisecond), func() { order <- "late" })
	q.RunAt(time.Now().Add(20*time.Millisecond), func() { order <- "early" })

	select {
	case first := <-order:
		if first != "early" {
			t.Fatalf("first fire = %q, want early", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no timer fired")
	}
}

func TestCloseStopsPending(t *testing.T) {
	q := New()
	var count atomic.Int32
	q.RunAt(time.Now().Add(50*time.Millisecond), func() { count.Add(1) })
	q.Close()

	time.Sleep(120 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("timer fired %d times after Close", got)
	}
	// Scheduling after Close is a no-op.
	cancel := q.RunAt(time.Now(), func() { count.Add(1) })
	cancel()
}

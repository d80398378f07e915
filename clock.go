package reliant

import (
	"container/heap"
	"time"
)

// Canceler stops a previously scheduled callback. Stopping a callback that
// already fired, or fired concurrently with the Stop call, is a no-op.
type Canceler interface {
	Stop()
}

// Clock is the time source every timer-driven piece of the channel goes
// through, instead of calling the time package directly, so tests can drive
// retransmission, handshake, and closing timers deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Canceler
}

// RealClock returns the production Clock, backed by the runtime timer
// wheel. Config leaves this as the default when Clock is nil; carriers
// outside the reliant package (e.g. mockcarrier) that want the real clock
// instead of a manual one construct it explicitly through this.
func RealClock() Clock {
	return realClock{}
}

// realClock is the production Clock, backed by the runtime timer wheel.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Canceler {
	return (*timerCanceler)(time.AfterFunc(d, f))
}

type timerCanceler time.Timer

func (t *timerCanceler) Stop() {
	(*time.Timer)(t).Stop()
}

// ManualClock is a Clock whose notion of "now" only advances when Advance is
// called, firing any due callbacks synchronously on the calling goroutine in
// deadline order. It is the deterministic substitute for real timers in
// tests: spec scenarios like "advance mock time by 1000ms, assert state ==
// CLOSED" are exactly ManualClock.Advance calls.
//
// Grounded in spec.md's own suggested design: "a monotonic priority queue
// keyed on deadline, driven by the cooperative event loop."
type ManualClock struct {
	now   time.Time
	queue pendingQueue
	seq   uint64
}

// NewManualClock creates a clock starting at the given time (or, if zero,
// an arbitrary fixed epoch — tests should not depend on its absolute value).
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Canceler {
	c.seq++
	p := &pending{deadline: c.now.Add(d), fn: f, seq: c.seq}
	heap.Push(&c.queue, p)
	return p
}

// Advance moves the clock forward by d, firing every callback now due, in
// deadline order (ties broken by scheduling order). A callback that
// schedules another callback during Advance will run too, if its own
// deadline is still within the advanced window.
func (c *ManualClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for c.queue.Len() > 0 && !c.queue[0].deadline.After(target) {
		p := heap.Pop(&c.queue).(*pending)
		if p.canceled {
			continue
		}
		c.now = p.deadline
		p.fn()
	}
	c.now = target
}

type pending struct {
	deadline time.Time
	fn       func()
	seq      uint64
	canceled bool
	index    int
}

func (p *pending) Stop() {
	p.canceled = true
}

type pendingQueue []*pending

func (q pendingQueue) Len() int { return len(q) }
func (q pendingQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}
func (q pendingQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *pendingQueue) Push(x interface{}) {
	p := x.(*pending)
	p.index = len(*q)
	*q = append(*q, p)
}
func (q *pendingQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

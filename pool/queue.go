package pool

import "sync"

// ringQueue is a bounded, power-of-two-sized ring buffer of Tasks. It is
// shared by exactly one owning consumer (a worker, or nobody for the
// global overflow queue), any number of producers (submitters), and any
// number of thieves stealing from the opposite end.
//
// Ownership of the two ends is fixed for the life of the queue:
//   - push (producer) and popFront (owner consumer) work the tail/head
//     pair as an ordinary FIFO.
//   - stealBack removes from the producer end instead, so a thief never
//     contends with the owner's popFront on the same index.
//
// There is no separate length field: the length is head - tail, computed
// under mu. The pool reads it through snapshotLen, which takes mu, for
// idle detection (Pool.queuesEmptyLocked) and depth reporting
// (Pool.QueueDepths).
type ringQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf  []Task
	mask int // capacity - 1 (capacity is a power of two)
	head int // next write position, monotonic mod capacity
	tail int // next read position (owner's FIFO end), monotonic mod capacity

	pool *Pool // weak back-reference, used only to observe shutdown
}

func newRingQueue(capacity int, p *Pool) *ringQueue {
	capacity = nextPowerOfTwo(capacity)
	q := &ringQueue{
		buf:  make([]Task, capacity),
		mask: capacity - 1,
		pool: p,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (q *ringQueue) lenLocked() int {
	return q.head - q.tail
}

func (q *ringQueue) isFullLocked() bool {
	return q.lenLocked() == len(q.buf)
}

// snapshotLen reads the current length without any ordering guarantee
// beyond "some length this queue held recently" — used only for the
// idle-detection heuristic, never for correctness-critical decisions.
func (q *ringQueue) snapshotLen() int {
	q.mu.Lock()
	n := q.lenLocked()
	q.mu.Unlock()
	return n
}

// tryPush attempts a non-blocking push. Returns false if the queue is full.
func (q *ringQueue) tryPush(t Task) bool {
	q.mu.Lock()
	if q.isFullLocked() {
		q.mu.Unlock()
		return false
	}
	q.buf[q.head&q.mask] = t
	q.head++
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// pushWait pushes, blocking on notFull while the queue is full and the
// pool is not shutting down. Returns false if shutdown wins the race.
func (q *ringQueue) pushWait(t Task) bool {
	q.mu.Lock()
	for q.isFullLocked() && !q.pool.isShuttingDown() {
		q.notFull.Wait()
	}
	if q.pool.isShuttingDown() {
		q.mu.Unlock()
		return false
	}
	q.buf[q.head&q.mask] = t
	q.head++
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// tryPopFront attempts a non-blocking pop from the owner's FIFO end.
func (q *ringQueue) tryPopFront() (Task, bool) {
	q.mu.Lock()
	if q.lenLocked() == 0 {
		q.mu.Unlock()
		return nil, false
	}
	t := q.buf[q.tail&q.mask]
	q.buf[q.tail&q.mask] = nil
	q.tail++
	q.mu.Unlock()
	q.notFull.Signal()
	return t, true
}

// popFrontWait blocks on notEmpty until an item appears or shutdown is
// observed with nothing left to drain. This is the only suspension point
// in a worker's steady-state loop.
func (q *ringQueue) popFrontWait() (Task, bool) {
	q.mu.Lock()
	for q.lenLocked() == 0 && !q.pool.isShuttingDown() {
		q.notEmpty.Wait()
	}
	if q.lenLocked() == 0 {
		q.mu.Unlock()
		return nil, false
	}
	t := q.buf[q.tail&q.mask]
	q.buf[q.tail&q.mask] = nil
	q.tail++
	q.mu.Unlock()
	q.notFull.Signal()
	return t, true
}

// stealBack attempts a non-blocking steal from the producer end, the end
// opposite the owner's popFront. Never blocks: if the lock is contended
// the caller should move on to the next victim rather than wait for it.
func (q *ringQueue) stealBack() (Task, bool) {
	if !q.mu.TryLock() {
		return nil, false
	}
	if q.lenLocked() == 0 {
		q.mu.Unlock()
		return nil, false
	}
	q.head--
	t := q.buf[q.head&q.mask]
	q.buf[q.head&q.mask] = nil
	q.mu.Unlock()
	q.notFull.Signal()
	return t, true
}

// wakeAll broadcasts both condition variables, used during shutdown to
// release every blocked producer and consumer.
func (q *ringQueue) wakeAll() {
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

package pool

import (
	"math/rand/v2"

	"go.uber.org/zap"
)

// worker owns a single local queue and runs the steady-state loop:
// local -> global -> steal -> block. Stable id is used only for logging
// and as the stealer's own index when picking victims.
type worker struct {
	id    int
	local *ringQueue
	pool  *Pool
}

func newWorker(id int, localQueueSize int, p *Pool) *worker {
	return &worker{
		id:    id,
		local: newRingQueue(localQueueSize, p),
		pool:  p,
	}
}

func (w *worker) run() {
	defer w.pool.wg.Done()

	for {
		task, ok := w.local.tryPopFront()
		if !ok {
			task, ok = w.pool.global.tryPopFront()
		}
		if !ok {
			task, ok = w.pool.stealFrom(w)
		}
		if !ok {
			task, ok = w.local.popFrontWait()
		}
		if !ok {
			// Shutdown observed with nothing left for this worker.
			if w.pool.isShuttingDown() {
				return
			}
			continue
		}

		w.execute(task)
	}
}

func (w *worker) execute(task Task) {
	p := w.pool
	p.countMu.Lock()
	p.working++
	p.countMu.Unlock()

	func() {
		defer func() {
			p.countMu.Lock()
			p.working--
			idle := p.working == 0 && p.queuesEmptyLocked()
			if idle {
				p.allIdle.Broadcast()
			}
			p.countMu.Unlock()
			p.executed.Add(1)
		}()
		task()
	}()
}

// stealFrom iterates the other workers starting at a pseudo-random
// offset, attempting a non-blocking steal from each. Never holds more
// than one queue mutex at a time — it releases the attempted victim's
// queue before moving to the next.
func (p *Pool) stealFrom(thief *worker) (Task, bool) {
	n := len(p.workers)
	if n <= 1 {
		return nil, false
	}
	offset := rand.IntN(n)
	for i := 0; i < n; i++ {
		victimIdx := (offset + i) % n
		if victimIdx == thief.id {
			continue
		}
		victim := p.workers[victimIdx]
		if task, ok := victim.local.stealBack(); ok {
			p.stolen.Add(1)
			p.logger.Debug("work stolen",
				zap.Int("thief", thief.id),
				zap.Int("victim", victimIdx))
			return task, true
		}
	}
	return nil, false
}

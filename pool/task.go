package pool

// Task is a caller-owned unit of work. The closure carries its own
// argument by capture; the pool never copies or inspects it. A task must
// keep whatever it captures alive until it has run — the pool gives no
// other lifetime guarantee.
//
// A task that panics is the caller's problem: worker.execute installs no
// recover, so the panic unwinds past its deferred bookkeeping (which
// still runs — that's what defer guarantees) and crashes the worker
// goroutine, and with it the process. The pool does not isolate tasks
// from each other or from itself.
type Task func()

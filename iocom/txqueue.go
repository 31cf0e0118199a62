// File: iocom/txqueue.go
// Package iocom
// License: Apache-2.0
//
// txQueue is the cross-thread outbound queue fed by msg_write from
// arbitrary goroutines and drained by the IO core's flush1. Adapted from
// the teacher's internal/concurrency/executor.go, which queues TaskFunc
// items on github.com/eapache/queue and pops them for a worker pool;
// here the queued item is a *wire.Msg and there is exactly one drainer
// (the IO core goroutine), so no worker pool is needed.

package iocom

import (
	"github.com/eapache/queue"

	"github.com/clusterkit/dmsgcore/wire"
)

type txQueue struct {
	q *queue.Queue
}

func newTxQueue() *txQueue {
	return &txQueue{q: queue.New()}
}

// Push enqueues msg for transmission. Caller holds the IOCOM mutex.
func (t *txQueue) Push(msg *wire.Msg) {
	t.q.Add(msg)
}

// DrainAll removes and returns every currently queued message, in FIFO
// order. Caller holds the IOCOM mutex; per spec.md §4.2.2 flush1 then
// releases the mutex before touching the drained list.
func (t *txQueue) DrainAll() []*wire.Msg {
	n := t.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]*wire.Msg, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, t.q.Remove().(*wire.Msg))
	}
	return out
}

// Len reports the number of queued messages.
func (t *txQueue) Len() int { return t.q.Length() }

package fiber

import (
	"sync"
	"sync/atomic"
)

// waitNodeState is the three-state lifecycle of a parked waiter, mirroring
// the ready/notified/cancelled semantics described for pollDesc-style
// readiness waiters: a node starts waiting, and a single transition, made
// under the owning queue's mutex, decides whether a notifier or a timeout/cancellation wins the
// race to wake it.
type waitNodeState uint32

const (
	waitStateWaiting waitNodeState = iota
	waitStateNotified
	waitStateCancelled
)

// waitNode is a single parked task, linked into exactly one WaitQueue at a
// time. The token is a per-queue sequence number assigned by Push; nothing
// reads it. A late timer fire (arriving after a notify already claimed the
// node) recognizes it missed the race from the node's state and becomes a
// no-op.
type waitNode struct {
	task  *Task
	token uint64

	state waitNodeState

	prev, next *waitNode
	owner      *WaitQueue
}

// tryCancel attempts to claim this node for cancellation (e.g. on timeout).
// It returns true only if the node was still waiting, meaning the caller
// (not a concurrent NotifyOne/NotifyAll) now owns waking the task.
func (n *waitNode) tryCancel() bool {
	if n.state != waitStateWaiting {
		return false
	}
	n.state = waitStateCancelled
	return true
}

// WaitQueue is a FIFO of parked tasks, the building block every blocking
// primitive (Mutex, Cond, WaitGroup, Channel) is layered on. Per §5 of the
// specification, wait-queues may protect their internal state with
// lock-free techniques "or internal mutexes" — this implementation uses a
// small internal mutex guarding an intrusive doubly-linked list, trading
// the teacher's pure-atomics MicrotaskRing style for O(1) arbitrary-node
// removal, which the timeout/cancellation paths require (a node parked in
// the middle of the queue must be removable without scanning).
type WaitQueue struct {
	mu         sync.Mutex
	head, tail *waitNode
	len        int
	tokenGen   atomic.Uint64
}

// NewWaitQueue constructs an empty wait-queue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{}
}

// Len reports the number of parked waiters. Intended for diagnostics/tests.
func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// Push enqueues the given task and returns a handle that the caller must
// retain to later Cancel (on timeout) or to ignore (on normal notify).
// The task must not already be parked in any other wait-queue.
func (q *WaitQueue) Push(t *Task) *waitNode {
	n := &waitNode{
		task:  t,
		token: q.tokenGen.Add(1),
		state: waitStateWaiting,
		owner: q,
	}
	q.mu.Lock()
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		n.prev = q.tail
		q.tail.next = n
		q.tail = n
	}
	q.len++
	q.mu.Unlock()
	return n
}

// remove unlinks n from the queue. Caller must hold q.mu.
func (q *WaitQueue) remove(n *waitNode) {
	if n.owner != q {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else if q.head == n {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if q.tail == n {
		q.tail = n.prev
	}
	n.prev, n.next, n.owner = nil, nil, nil
	q.len--
}

// Cancel removes n from the queue if it is still waiting (i.e. no
// NotifyOne/NotifyAll has claimed it yet). Returns true if the caller won
// the race and is responsible for resuming the task itself (typically with
// a "timed out" result); false means a notify already woke it and this
// call is a no-op, exactly per the late-timer-fire rule in §4.5.
func (q *WaitQueue) Cancel(n *waitNode) bool {
	q.mu.Lock()
	won := n.tryCancel()
	if won {
		q.remove(n)
	}
	q.mu.Unlock()
	return won
}

// NotifyOne wakes the single longest-waiting task, if any, and returns it.
// The returned task has already been unlinked from the queue; the caller
// is responsible for handing it to the scheduler's ready queue.
func (q *WaitQueue) NotifyOne() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for n := q.head; n != nil; n = n.next {
		if n.state == waitStateWaiting {
			n.state = waitStateNotified
			q.remove(n)
			return n.task
		}
	}
	return nil
}

// NotifyAll wakes every waiting task and returns them in FIFO order.
func (q *WaitQueue) NotifyAll() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var woken []*Task
	n := q.head
	for n != nil {
		next := n.next
		if n.state == waitStateWaiting {
			n.state = waitStateNotified
			q.remove(n)
			woken = append(woken, n.task)
		}
		n = next
	}
	return woken
}

// Empty reports whether the queue currently holds no waiting tasks.
func (q *WaitQueue) Empty() bool {
	return q.Len() == 0
}

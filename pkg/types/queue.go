package types

import (
	"sync"
)

// FIFO with unlimited capacity
// not thread safe
type queue[T any] struct {
	data []T
}

func (q *queue[T]) len() int {
	return len(q.data)
}

func (q *queue[T]) push(v T) {
	q.data = append(q.data, v)
}

// panics if empty
func (q *queue[T]) pop() T {
	var zero T
	v := q.data[0]
	q.data[0] = zero
	q.data = q.data[1:]
	return v
}

// 1 ctrl M send N recv
// items sent before Close are still received after it
type ControlledQueue[T any] struct {
	data          queue[T]
	mu            sync.Mutex
	closed        bool
	requestRecvCh chan struct{}
	stopCh        chan struct{}
}

func NewControlledQueue[T any]() *ControlledQueue[T] {
	return &ControlledQueue[T]{
		stopCh:        make(chan struct{}),
		requestRecvCh: make(chan struct{}, 1),
	}
}

// stops further Sends and wakes blocked receivers
// only call once from ctrl
func (cq *ControlledQueue[T]) Close() {
	cq.mu.Lock()
	cq.closed = true
	close(cq.stopCh)
	cq.mu.Unlock()
}

// return true on Send
// return false if closed and not Send
func (cq *ControlledQueue[T]) Send(v T) bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	if cq.closed {
		return false
	}
	cq.data.push(v)
	cq.signal()
	return true
}

// blocks on empty to wait to receive
func (cq *ControlledQueue[T]) Recv() (T, bool) {
	_, v, ok := cq.AttemptRecv(true)
	return v, ok
}

// return (false, zero, true) on empty
// return (true, v, true) on recv
// return (true, zero, false) on closed and drained
// can opt out of blocking on empty
func (cq *ControlledQueue[T]) AttemptRecv(blockOnEmpty bool) (canRecv bool, v T, ok bool) {
	for {
		cq.mu.Lock()
		if cq.data.len() > 0 {
			break
		}
		if cq.closed {
			cq.mu.Unlock()
			return true, v, false
		}
		cq.mu.Unlock()
		if !blockOnEmpty {
			return false, v, true
		}
		select {
		case <-cq.requestRecvCh:
		case <-cq.stopCh:
		}
	}

	v = cq.data.pop()
	// pass the wake-up on to the next receiver
	if cq.data.len() > 0 {
		cq.signal()
	}
	cq.mu.Unlock()
	return true, v, true
}

func (cq *ControlledQueue[T]) Len() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return cq.data.len()
}

// call with mu held
func (cq *ControlledQueue[T]) signal() {
	select {
	case cq.requestRecvCh <- struct{}{}:
	default:
	}
}

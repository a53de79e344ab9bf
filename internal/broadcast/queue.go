package broadcast

import "sync"

// Queue is a bounded outbound message queue for one subscriber. When full, the
// oldest message is evicted so Push never blocks the publisher.
type Queue struct {
	mu     sync.Mutex
	buf    [][]byte
	head   int
	size   int
	closed bool
	notify chan struct{}
	onDrop func()

	dropped uint64
}

// NewQueue creates a queue holding at most capacity messages. onDrop, if set,
// is called for every evicted message.
func NewQueue(capacity int, onDrop func()) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		buf:    make([][]byte, capacity),
		notify: make(chan struct{}, 1),
		onDrop: onDrop,
	}
}

// Push appends msg and reports false if the queue is closed.
func (q *Queue) Push(msg []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	evicted := false
	if q.size == len(q.buf) {
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = msg
	q.size++
	q.mu.Unlock()

	if evicted && q.onDrop != nil {
		q.onDrop()
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// PushFront places msgs, in order, ahead of every pending message. When the
// queue overflows the oldest pending messages are evicted, never msgs
// themselves unless they alone exceed the capacity.
func (q *Queue) PushFront(msgs ...[]byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if len(msgs) > len(q.buf) {
		msgs = msgs[:len(q.buf)]
	}
	evicted := 0
	for q.size+len(msgs) > len(q.buf) {
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		evicted++
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
		q.buf[q.head] = msgs[i]
		q.size++
	}
	q.dropped += uint64(evicted)
	q.mu.Unlock()

	if q.onDrop != nil {
		for i := 0; i < evicted; i++ {
			q.onDrop()
		}
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest message without blocking.
func (q *Queue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil, false
	}
	msg := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return msg, true
}

// Ready is signalled after a Push; drain with Pop until it reports false.
func (q *Queue) Ready() <-chan struct{} { return q.notify }

// Close stops accepting messages. Pending messages remain poppable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns the number of evicted messages.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

package connection

// sendQueue is a fixed-capacity FIFO ring of pending payloads. When
// full, push evicts the oldest entry so the newest traffic wins. Not
// safe for concurrent use; the manager guards it with its own mutex.
type sendQueue struct {
	items [][]byte
	head  int
	count int
}

// newSendQueue creates a queue bounded at capacity entries.
func newSendQueue(capacity int) *sendQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &sendQueue{items: make([][]byte, capacity)}
}

// push appends data, evicting the oldest entry when full. It reports
// whether an eviction happened.
func (q *sendQueue) push(data []byte) bool {
	evicted := false
	if q.count == len(q.items) {
		q.items[q.head] = nil
		q.head = (q.head + 1) % len(q.items)
		q.count--
		evicted = true
	}
	q.items[(q.head+q.count)%len(q.items)] = data
	q.count++
	return evicted
}

// pop removes and returns the oldest entry.
func (q *sendQueue) pop() ([]byte, bool) {
	if q.count == 0 {
		return nil, false
	}
	data := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return data, true
}

// pushFront returns a just-popped entry to the head after a failed
// send, preserving drain order. No-op when the queue is full.
func (q *sendQueue) pushFront(data []byte) {
	if q.count == len(q.items) {
		return
	}
	q.head = (q.head - 1 + len(q.items)) % len(q.items)
	q.items[q.head] = data
	q.count++
}

// depth returns the number of pending entries.
func (q *sendQueue) depth() int {
	return q.count
}

// capacity returns the queue bound.
func (q *sendQueue) capacity() int {
	return len(q.items)
}

// clear drops every pending entry.
func (q *sendQueue) clear() {
	for i := range q.items {
		q.items[i] = nil
	}
	q.head = 0
	q.count = 0
}

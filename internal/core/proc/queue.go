package proc

import "sync"

// lineQueue is an unbounded single-consumer FIFO. close() is the end-of-stream
// sentinel; the producer never blocks.
type lineQueue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	ready  chan struct{}
}

func newLineQueue() *lineQueue {
	return &lineQueue{ready: make(chan struct{}, 1)}
}

func (q *lineQueue) push(line []byte) {
	q.mu.Lock()
	q.items = append(q.items, line)
	q.mu.Unlock()
	q.signal()
}

func (q *lineQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *lineQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop blocks until a line is available, the queue is closed or abort fires.
func (q *lineQueue) pop(abort <-chan struct{}) ([]byte, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			line := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return line, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-abort:
			return nil, false
		}
	}
}

// drain waits for the sentinel and returns everything queued.
func (q *lineQueue) drain(abort <-chan struct{}) []byte {
	var out []byte
	for {
		line, ok := q.pop(abort)
		if !ok {
			return out
		}
		out = append(out, line...)
	}
}

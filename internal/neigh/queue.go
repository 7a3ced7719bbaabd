package neigh

import (
	"time"
)

// PendingFrame is a frame waiting for its next hop to be resolved.
type PendingFrame struct {
	Data       []byte
	EnqueuedAt time.Time
}

// SendQueue is a bounded FIFO ring of pending frames.
//
// It is not safe for concurrent use; the owning entry's lock protects it.
type SendQueue struct {
	frames  []PendingFrame
	head    int
	len     int
	size    int
	maxLen  int
	maxSize int
}

// NewSendQueue creates an empty queue holding at most maxLen frames of at
// most maxSize bytes in total.
func NewSendQueue(maxLen int, maxSize int) SendQueue {
	return SendQueue{
		maxLen:  maxLen,
		maxSize: maxSize,
	}
}

// Len returns the number of queued frames.
func (m *SendQueue) Len() int {
	return m.len
}

// Bytes returns the total size of queued frames.
func (m *SendQueue) Bytes() int {
	return m.size
}

// Append adds the frame to the tail.
//
// The queue takes ownership of the data on success.
func (m *SendQueue) Append(data []byte, now time.Time) error {
	if m.len >= m.maxLen || m.size+len(data) > m.maxSize {
		return ErrQueueFull
	}

	if m.len == len(m.frames) {
		m.grow()
	}

	m.frames[(m.head+m.len)%len(m.frames)] = PendingFrame{
		Data:       data,
		EnqueuedAt: now,
	}
	m.len++
	m.size += len(data)
	return nil
}

// Drain passes every frame to fn from head to tail, leaving the queue empty.
//
// Returns the number of drained frames.
func (m *SendQueue) Drain(fn func(frame PendingFrame)) int {
	n := m.len
	for m.len > 0 {
		frame := m.frames[m.head]
		m.frames[m.head] = PendingFrame{}
		m.head = (m.head + 1) % len(m.frames)
		m.len--
		m.size -= len(frame.Data)

		fn(frame)
	}
	m.head = 0
	return n
}

// Clear discards every queued frame and returns how many were dropped.
func (m *SendQueue) Clear() int {
	return m.Drain(func(PendingFrame) {})
}

func (m *SendQueue) grow() {
	capacity := max(4, 2*len(m.frames))
	capacity = min(capacity, m.maxLen)

	frames := make([]PendingFrame, capacity)
	for idx := range m.len {
		frames[idx] = m.frames[(m.head+idx)%len(m.frames)]
	}
	m.frames = frames
	m.head = 0
}

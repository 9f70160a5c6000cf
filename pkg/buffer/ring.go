package buffer

import (
	"fmt"
	"io"
	"sync"
)

// RingBuffer is a thread-safe circular buffer over elements of type T.
// Writes never block: when capacity is exceeded the oldest elements are
// overwritten. Reads come in two flavors: Read blocks until data arrives
// or the buffer is closed, TryRead returns immediately.
type RingBuffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// Ring creates a RingBuffer holding at most size elements.
func Ring[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &RingBuffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, size),
	}
}

// Len returns the number of elements currently buffered.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Write appends p to the buffer, overwriting the oldest elements when the
// buffer is full. It returns the number of elements accepted, which is
// always len(p) unless the buffer is closed.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", rb.closeErr)
	}
	if rb.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}

	size := int64(len(rb.buf))
	if int64(len(p)) >= size {
		// Only the last size elements survive; reset the window.
		copy(rb.buf, p[int64(len(p))-size:])
		rb.head = 0
		rb.tail = size
	} else {
		for _, v := range p {
			rb.buf[rb.tail%size] = v
			rb.tail++
		}
		if rb.tail-rb.head > size {
			rb.head = rb.tail - size
		}
	}

	select {
	case rb.writeNotify <- struct{}{}:
	default:
	}
	return len(p), nil
}

// TryRead copies up to len(p) elements into p without blocking.
// It returns 0, nil when the buffer is empty; io.EOF after CloseWrite once
// the buffer has drained.
func (rb *RingBuffer[T]) TryRead(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed buffer: %w", rb.closeErr)
	}
	if rb.head == rb.tail {
		if rb.closeWrite {
			return 0, io.EOF
		}
		return 0, nil
	}
	return rb.readLocked(p), nil
}

// Read copies up to len(p) elements into p, blocking until at least one
// element is available or the buffer is closed.
func (rb *RingBuffer[T]) Read(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for {
		if rb.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed buffer: %w", rb.closeErr)
		}
		if rb.head != rb.tail {
			return rb.readLocked(p), nil
		}
		if rb.closeWrite {
			return 0, io.EOF
		}
		rb.mu.Unlock()
		<-rb.writeNotify
		rb.mu.Lock()
	}
}

func (rb *RingBuffer[T]) readLocked(p []T) int {
	size := int64(len(rb.buf))
	n := 0
	for n < len(p) && rb.head < rb.tail {
		p[n] = rb.buf[rb.head%size]
		rb.head++
		n++
	}
	return n
}

// Discard drops the next n buffered elements without reading them.
// If n exceeds the buffered count, everything is dropped.
func (rb *RingBuffer[T]) Discard(n int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if int64(n) > rb.tail-rb.head {
		rb.head = rb.tail
		return
	}
	rb.head += int64(n)
}

// DiscardAll drops every buffered element. Safe to call on an empty buffer.
func (rb *RingBuffer[T]) DiscardAll() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = rb.tail
}

// CloseWrite closes the write side. Reads drain remaining data, then
// return io.EOF.
func (rb *RingBuffer[T]) CloseWrite() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeWrite {
		return nil
	}
	rb.closeWrite = true
	close(rb.writeNotify)
	return nil
}

// CloseWithError closes the buffer; pending and future operations return err.
func (rb *RingBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return nil
	}
	rb.closeErr = err
	if !rb.closeWrite {
		rb.closeWrite = true
		close(rb.writeNotify)
	}
	return nil
}

// Close closes the buffer. Equivalent to CloseWithError(io.ErrClosedPipe).
func (rb *RingBuffer[T]) Close() error {
	return rb.CloseWithError(io.ErrClosedPipe)
}
